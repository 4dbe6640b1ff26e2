package usftp

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainErrorWrapsCause(t *testing.T) {
	err := chainError(io.ErrUnexpectedEOF, "usftp: read %s", "handle-1")
	require.Error(t, err)
	assert.Equal(t, "usftp: read handle-1: unexpected EOF", err.Error())
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestChainErrorNilCause(t *testing.T) {
	err := chainError(nil, "usftp: %s failed", "open")
	require.Error(t, err)
	assert.Equal(t, "usftp: open failed", err.Error())
}

func TestStatusMessageKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "no such file", statusMessage(sshFxNoSuchFile))
	assert.Equal(t, "unknown error code", statusMessage(999))
}

func TestStatusErrorIsEOF(t *testing.T) {
	err := &StatusError{Code: sshFxEOF, Msg: "EOF"}
	assert.True(t, IsEOF(err))

	other := &StatusError{Code: sshFxFailure, Msg: "failure"}
	assert.False(t, IsEOF(other))
	assert.False(t, IsEOF(io.ErrClosedPipe))
}

func TestErrorChannelSetStatusAndProtocolError(t *testing.T) {
	var ch errorChannel
	ch.setStatus(sshFxPermissionDenied, "permission denied")
	typ, msg := ch.Err()
	assert.EqualValues(t, sshFxPermissionDenied, typ)
	assert.Equal(t, "permission denied", msg)

	ch.setProtocolError("malformed packet")
	typ, msg = ch.Err()
	assert.EqualValues(t, -1, typ)
	assert.Equal(t, "malformed packet", msg)
}
