package usftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobBadPattern(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Glob("[")
	assert.ErrorIs(t, err, ErrBadPattern)
}

func TestGlobEmptyPattern(t *testing.T) {
	c, _ := newTestClient(t)
	matches, err := c.Glob("")
	assert.NoError(t, err)
	assert.Nil(t, matches)
}

func TestGlobNoMetaMissingFile(t *testing.T) {
	c, server := newTestClient(t)
	go func() {
		typ, payload, err := recvFrame(server, defaultMaxPacket)
		if err != nil {
			return
		}
		assert.Equal(t, byte(sshFxpLstat), typ)
		id, _, _ := getUint32(payload)
		_ = sendFrame(server, nil, sshFxpStatus, putString(putUint32(putUint32(nil, id), sshFxNoSuchFile), "no such file"))
	}()

	matches, err := c.Glob("/no/such/file")
	assert.NoError(t, err)
	assert.Nil(t, matches)
}

func TestGlobExpandsWildcardSegment(t *testing.T) {
	c, server := newTestClient(t)

	go func() {
		typ, payload, err := recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpOpendir), typ)
		id, rest, err := getUint32(payload)
		require.NoError(t, err)
		dir, _, err := getString(rest)
		require.NoError(t, err)
		assert.Equal(t, "/dir", dir)
		require.NoError(t, sendFrame(server, nil, sshFxpHandle, putString(putUint32(nil, id), "dh")))

		typ, payload, err = recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpReaddir), typ)
		id, _, err = getUint32(payload)
		require.NoError(t, err)
		nb := putUint32(nil, id)
		nb = putUint32(nb, 3)
		for _, name := range []string{"a.txt", "b.log", "c.txt"} {
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

	matches, err := c.Glob("/dir/*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/dir/a.txt", "/dir/c.txt"}, matches)
}
