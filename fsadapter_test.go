package usftp

import (
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirFSRejectsInvalidName(t *testing.T) {
	c, _ := newTestClient(t)
	fsys := c.DirFS("/")

	_, err := fsys.Open("../escape")
	var perr *fs.PathError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, fs.ErrInvalid)

	_, err = fsys.(fs.StatFS).Stat("/rooted")
	assert.ErrorIs(t, err, fs.ErrInvalid)
}

func TestDirFSStatAndReadDir(t *testing.T) {
	c, server := newTestClient(t)
	fsys := c.DirFS("/")

	go func() {
		// Stat
		typ, payload, err := recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpStat), typ)
		id, rest, err := getUint32(payload)
		require.NoError(t, err)
		target, _, err := getString(rest)
		require.NoError(t, err)
		assert.Equal(t, "/some/dir", target)
		b := putUint32(nil, id)
		b = putUint32(b, sshFileXferAttrPermissions)
		b = putUint32(b, uint32(ModeDir|0755))
		require.NoError(t, sendFrame(server, nil, sshFxpAttrs, b))

		// ReadDir: OPENDIR, READDIR, READDIR(EOF), CLOSE. Entries arrive
		// unsorted and include the dot links servers like to add.
		typ, payload, err = recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpOpendir), typ)
		id, _, err = getUint32(payload)
		require.NoError(t, err)
		require.NoError(t, sendFrame(server, nil, sshFxpHandle, putString(putUint32(nil, id), "dh")))

		typ, payload, err = recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpReaddir), typ)
		id, _, err = getUint32(payload)
		require.NoError(t, err)
		nb := putUint32(nil, id)
		nb = putUint32(nb, 4)
		for _, name := range []string{".", "beta", "..", "alpha"} {
			nb = putString(nb, name)
			nb = putString(nb, "-rw-r--r-- "+name)
			nb = putUint32(nb, 0)
		}
		require.NoError(t, sendFrame(server, nil, sshFxpName, nb))

		typ, payload, err = recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpReaddir), typ)
		id, _, err = getUint32(payload)
		require.NoError(t, err)
		require.NoError(t, sendFrame(server, nil, sshFxpStatus, putUint32(putUint32(nil, id), sshFxEOF)))

		typ, payload, err = recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpClose), typ)
		id, _, err = getUint32(payload)
		require.NoError(t, err)
		require.NoError(t, sendFrame(server, nil, sshFxpStatus, putUint32(putUint32(nil, id), sshFxOk)))
	}()

	info, err := fsys.(fs.StatFS).Stat("some/dir")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := fsys.(fs.ReadDirFS).ReadDir("some/dir")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Name())
	assert.Equal(t, "beta", entries[1].Name())
}

func TestDirFSOpenReadClose(t *testing.T) {
	c, server := newTestClient(t)
	fsys := c.DirFS("/")
	content := []byte("hello from the adapter")

	go func() {
		typ, payload, err := recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpOpen), typ)
		id, rest, err := getUint32(payload)
		require.NoError(t, err)
		target, _, err := getString(rest)
		require.NoError(t, err)
		assert.Equal(t, "/some/file", target)
		require.NoError(t, sendFrame(server, nil, sshFxpHandle, putString(putUint32(nil, id), "fh")))

		typ, payload, err = recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpRead), typ)
		id, _, err = getUint32(payload)
		require.NoError(t, err)
		require.NoError(t, sendFrame(server, nil, sshFxpData, putBytes(putUint32(nil, id), content)))

		typ, payload, err = recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpRead), typ)
		id, _, err = getUint32(payload)
		require.NoError(t, err)
		require.NoError(t, sendFrame(server, nil, sshFxpData, putBytes(putUint32(nil, id), nil)))

		typ, payload, err = recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpClose), typ)
		id, _, err = getUint32(payload)
		require.NoError(t, err)
		require.NoError(t, sendFrame(server, nil, sshFxpStatus, putUint32(putUint32(nil, id), sshFxOk)))
	}()

	f, err := fsys.Open("some/file")
	require.NoError(t, err)

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	require.NoError(t, f.Close())
}
