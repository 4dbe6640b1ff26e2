package usftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkVisitsTree(t *testing.T) {
	c, server := newTestClient(t)

	go func() {
		// Lstat root
		typ, payload, err := recvFrame(server, defaultMaxPacket)
		require.NoError(t, err)
		assert.Equal(t, byte(sshFxpLstat), typ)
		id, _, err := getUint32(payload)
		require.NoError(t, err)
		b := putUint32(nil, id)
		b = putUint32(b, sshFileXferAttrPermissions)
		b = putUint32(b, uint32(ModeDir|0755))
		require.NoError(t, sendFrame(server, nil, sshFxpAttrs, b))

		// ReadDir root: one child "a.txt"
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
		nb = putUint32(nb, 1)
		nb = putString(nb, "a.txt")
		nb = putString(nb, "-rw-r--r-- a.txt")
		ab := putUint32(nil, sshFileXferAttrPermissions)
		ab = putUint32(ab, uint32(ModeRegular|0644))
		nb = append(nb, ab...)
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

	w := c.Walk("/root")
	var paths []string
	for w.Step() {
		require.NoError(t, w.Err())
		paths = append(paths, w.Path())
	}
	assert.Equal(t, []string{"/root", "/root/a.txt"}, paths)
}
