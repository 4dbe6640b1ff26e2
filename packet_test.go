package usftp

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	var b []byte
	b = putByte(b, 0x2a)
	b = putUint32(b, 1<<20)
	b = putUint64(b, 1<<40)
	b = putString(b, "hello")
	b = putBytes(b, []byte{1, 2, 3})

	v, rest, err := getByte(b)
	require.NoError(t, err)
	assert.EqualValues(t, 0x2a, v)

	u32, rest, err := getUint32(rest)
	require.NoError(t, err)
	assert.EqualValues(t, 1<<20, u32)

	u64, rest, err := getUint64(rest)
	require.NoError(t, err)
	assert.EqualValues(t, 1<<40, u64)

	s, rest, err := getString(rest)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	bs, rest, err := getBytes(rest)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, bs)
	assert.Empty(t, rest)
}

func TestGetShortPacket(t *testing.T) {
	_, _, err := getUint32([]byte{0, 0})
	assert.ErrorIs(t, err, errShortPacket)

	_, _, err = getString(putUint32(nil, 10))
	assert.ErrorIs(t, err, errShortPacket)

	_, _, err = getByte(nil)
	assert.ErrorIs(t, err, errShortPacket)
}

func TestBeginEndString(t *testing.T) {
	b, mark := beginString(nil)
	b = append(b, "abc"...)
	b = append(b, "defg"...)
	b = endString(b, mark)

	s, rest, err := getString(b)
	require.NoError(t, err)
	assert.Equal(t, "abcdefg", s)
	assert.Empty(t, rest)
}

func TestPutGetAttrsRoundTrip(t *testing.T) {
	a := &Attributes{
		Flags:       sshFileXferAttrSize | sshFileXferAttrUIDGID | sshFileXferAttrPermissions | sshFileXferAttrACmodTime,
		Size:        1234,
		UID:         10,
		GID:         20,
		Permissions: 0644,
		Atime:       111,
		Mtime:       222,
	}
	b := putAttrs(nil, a)
	got, rest, err := getAttrs(b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, *a, got)
}

func TestPutGetAttrsExtended(t *testing.T) {
	a := &Attributes{
		Flags:    sshFileXferAttrExtended,
		Extended: []ExtendedAttr{{Type: "foo", Data: "bar"}, {Type: "baz", Data: ""}},
	}
	b := putAttrs(nil, a)
	got, rest, err := getAttrs(b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, a.Extended, got.Extended)
}

// pipePair wires two in-memory Transports together so sendFrame/recvFrame
// can be exercised without a real network or subprocess. Each direction
// buffers internally, so writes never block: a single-goroutine test
// server can pipeline replies while the client is still sending requests.
func pipePair() (client, server Transport) {
	clientToServer := newBufPipe()
	serverToClient := newBufPipe()
	client = NewPipeTransport(serverToClient, clientToServer)
	server = NewPipeTransport(clientToServer, serverToClient)
	return
}

// bufPipe is a one-direction in-memory byte stream. Reads block until
// data arrives or the pipe closes; writes always succeed.
type bufPipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newBufPipe() *bufPipe {
	p := &bufPipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *bufPipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := p.buf.Write(b)
	p.cond.Broadcast()
	return n, err
}

func (p *bufPipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.buf.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.buf.Len() == 0 {
		return 0, io.EOF
	}
	return p.buf.Read(b)
}

func (p *bufPipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

func TestSendRecvFrame(t *testing.T) {
	client, server := pipePair()
	go func() {
		_ = sendFrame(client, nil, sshFxpInit, putUint32(nil, sftpProtocolVersion))
	}()

	typ, payload, err := recvFrame(server, defaultMaxPacket)
	require.NoError(t, err)
	assert.Equal(t, byte(sshFxpInit), typ)
	version, _, err := getUint32(payload)
	require.NoError(t, err)
	assert.EqualValues(t, sftpProtocolVersion, version)
}

func TestRecvFrameTooLong(t *testing.T) {
	client, server := pipePair()
	go func() {
		big := make([]byte, 100)
		_ = sendFrame(client, nil, sshFxpData, big)
	}()
	_, _, err := recvFrame(server, 10)
	assert.ErrorIs(t, err, errLongPacket)
}
