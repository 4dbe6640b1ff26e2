package usftp

import (
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client) error

// WithMaxPacket sets the largest data payload accepted in an inbound packet;
// File.ReadAt also caps each READ at this size. Outbound WRITE payloads are
// not split or capped by it. The default is 32768, the smallest size every
// compliant SFTP v3 server must support.
func WithMaxPacket(size int) ClientOption {
	return func(c *Client) error {
		if size < 8192 {
			return fmt.Errorf("usftp: maxPacket must be >= 8192, got %d", size)
		}
		c.maxPacket = size
		return nil
	}
}

// WithWindowSize sets a transfer's in-flight byte budget: a new request is
// issued while fewer than n bytes are in flight, so the last one issued may
// take the total past n by less than one request's size. The default is
// 1 MiB.
func WithWindowSize(n int) ClientOption {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("usftp: window size must be positive, got %d", n)
		}
		c.windowSize = n
		return nil
	}
}

// WithReadSize sets the per-request read size used by download transfers.
// The default is 32768.
func WithReadSize(n int) ClientOption {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("usftp: read size must be positive, got %d", n)
		}
		c.readSize = n
		return nil
	}
}

// WithOnProtocolError installs a hook invoked when an inbound reply cannot
// be routed: a packet too short for its request id, an unknown request id,
// or a request with no handler. Malformed payloads found by the individual
// calls are returned to the caller without invoking it. The client never
// logs on its own; this is how an embedder wires it to its own logger.
func WithOnProtocolError(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onProtocolError = fn
		return nil
	}
}

// NameEntry is one decoded entry from a NAME reply. The two strings are
// owned copies, not borrows into the wire buffer.
type NameEntry struct {
	Filename string
	Longname string
	Attrs    Attributes
}

// reqCallback is the userdata shape a synchronous primitive call attaches
// to its request: invoked once, from Client.recvOne, with the reply type
// and its payload (already past the leading id field).
type reqCallback func(typ byte, payload []byte)

// Client is an SFTP v3 client session: the packet codec, request
// registry, error channel, and protocol primitives bound to one
// Transport. Its synchronous methods send, then loop receiving until
// that call's own reply arrives, routing anything else through the
// registry. The client is single threaded; nothing here is safe for
// concurrent use without external locking.
type Client struct {
	transport Transport
	registry  requestRegistry
	errCh     errorChannel

	maxPacket  int
	windowSize int
	readSize   int

	onProtocolError func(error)

	extensions map[string]string
	sendBuf    []byte
}

// NewClient opens the "sftp" subsystem on conn and starts a session.
func NewClient(conn *ssh.Client, opts ...ClientOption) (*Client, error) {
	transport, err := NewSSHTransport(conn)
	if err != nil {
		return nil, err
	}
	client, err := newClient(transport, opts...)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return client, nil
}

// NewClientPipe creates a client given a reader and a write-closer,
// suitable for a TCP/TLS channel or a subprocess's stdio.
func NewClientPipe(r io.Reader, w io.WriteCloser, opts ...ClientOption) (*Client, error) {
	return newClient(NewPipeTransport(r, w), opts...)
}

func newClient(transport Transport, opts ...ClientOption) (client *Client, err error) {
	client = &Client{
		transport:  transport,
		maxPacket:  defaultMaxPacket,
		windowSize: 1 << 20,
		readSize:   1 << 15,
	}
	client.sendBuf = make([]byte, 0, client.maxPacket+16)

	for _, opt := range opts {
		if err = opt(client); err != nil {
			return nil, err
		}
	}

	client.extensions, err = client.init()
	if err != nil {
		return nil, err
	}
	return client, nil
}

// init performs the INIT/VERSION handshake. Neither packet carries a
// request id.
func (c *Client) init() (exts map[string]string, err error) {
	payload := putUint32(nil, sftpProtocolVersion)
	if err = sendFrame(c.transport, c.sendBuf, sshFxpInit, payload); err != nil {
		return nil, chainError(err, "usftp: send INIT")
	}

	typ, body, err := recvFrame(c.transport, c.maxPacket)
	if err != nil {
		return nil, chainError(err, "usftp: receive VERSION")
	}
	if typ != sshFxpVersion {
		return nil, newProtocolError("expected VERSION packet, got type %d", typ)
	}

	version, rest, err := getUint32(body)
	if err != nil {
		return nil, newProtocolError("malformed VERSION packet: %v", err)
	}
	if version > sftpProtocolVersion {
		return nil, newProtocolError(
			"server speaks a more advanced SFTP version (%d) than supported (%d)",
			version, sftpProtocolVersion)
	}

	for len(rest) > 0 {
		var name, data string
		name, rest, err = getString(rest)
		if err != nil {
			return nil, newProtocolError("malformed VERSION extension: %v", err)
		}
		data, rest, err = getString(rest)
		if err != nil {
			return nil, newProtocolError("malformed VERSION extension: %v", err)
		}
		if exts == nil {
			exts = make(map[string]string)
		}
		exts[name] = data
	}
	return exts, nil
}

// HasExtension reports whether the server advertised the named extension
// during VERSION negotiation.
func (c *Client) HasExtension(name string) (data string, ok bool) {
	data, ok = c.extensions[name]
	return
}

// LastError returns the (errtype, message) pair last recorded in the
// error channel.
func (c *Client) LastError() (errType int32, message string) {
	return c.errCh.Err()
}

func (c *Client) reportProtocolError(err error) {
	if c.onProtocolError != nil {
		c.onProtocolError(err)
	}
}

// recvOne reads exactly one inbound packet and routes it to the request
// it answers, via the registry. It never blocks on anything but the
// transport.
func (c *Client) recvOne() error {
	typ, payload, err := recvFrame(c.transport, c.maxPacket)
	if err != nil {
		return err
	}
	return c.dispatch(typ, payload)
}

func (c *Client) dispatch(typ byte, payload []byte) error {
	id, rest, err := getUint32(payload)
	if err != nil {
		msg := "malformed reply: packet too short for request id"
		c.errCh.setProtocolError(msg)
		perr := newProtocolError("%s", msg)
		c.reportProtocolError(perr)
		return perr
	}

	req, ok := c.registry.remove(id)
	if !ok {
		msg := fmt.Sprintf("unexpected SFTP request id %d in response", id)
		c.errCh.setProtocolError(msg)
		perr := newProtocolError("%s", msg)
		c.reportProtocolError(perr)
		return perr
	}

	switch u := req.userdata.(type) {
	case reqCallback:
		u(typ, rest)
	case transferHandoff:
		u.xfer.gotPacket(int(u.slot), typ, rest)
	default:
		msg := fmt.Sprintf("request id %d has no registered handler", id)
		c.errCh.setProtocolError(msg)
		perr := newProtocolError("%s", msg)
		c.reportProtocolError(perr)
		return perr
	}
	return nil
}

// roundTrip allocates a request, lets build fill in the payload (which
// must start by writing the id with putUint32(b, id)), sends it, then
// blocks receiving packets (dispatching any unrelated replies through the
// registry as usual) until this request's own reply arrives.
func (c *Client) roundTrip(typ byte, build func(id uint32) []byte) (respType byte, respPayload []byte, err error) {
	req := c.registry.allocAndInsert(nil)
	var done bool
	req.userdata = reqCallback(func(t byte, p []byte) {
		respType, respPayload, done = t, p, true
	})

	payload := build(req.id)
	if err = sendFrame(c.transport, c.sendBuf, typ, payload); err != nil {
		c.registry.remove(req.id)
		return 0, nil, err
	}

	for !done {
		if err = c.recvOne(); err != nil {
			return 0, nil, err
		}
	}
	return respType, respPayload, nil
}

// decodeStatusAsError decodes a STATUS payload and records it on the
// error channel. Returns nil for SSH_FX_OK.
func (c *Client) decodeStatusAsError(payload []byte) error {
	code, rest, err := getUint32(payload)
	if err != nil {
		c.errCh.setProtocolError("malformed STATUS reply")
		return newProtocolError("malformed STATUS reply: %v", err)
	}
	msg, rest, err := getString(rest)
	if err != nil {
		msg = ""
	}
	lang, _, err := getString(rest)
	if err != nil {
		lang = ""
	}
	if msg == "" {
		msg = statusMessage(code)
	}
	c.errCh.setStatus(code, msg)
	if code == sshFxOk {
		return nil
	}
	return &StatusError{Code: code, Msg: msg, Lang: lang}
}

// simpleStatusCall performs a round trip whose only valid reply is STATUS
// (CLOSE, WRITE, MKDIR, RMDIR, REMOVE, RENAME, SETSTAT, FSETSTAT).
func (c *Client) simpleStatusCall(typ byte, build func(id uint32) []byte) error {
	respType, payload, err := c.roundTrip(typ, build)
	if err != nil {
		return err
	}
	if respType != sshFxpStatus {
		return newProtocolError("expected STATUS reply, got packet type %d", respType)
	}
	return c.decodeStatusAsError(payload)
}

// dataOrStatusCall performs a round trip expecting either a data-bearing
// reply of type `expect`, or a STATUS (always an error in this path, since
// success would have been the data reply).
func (c *Client) dataOrStatusCall(typ byte, expect byte, build func(id uint32) []byte) ([]byte, error) {
	respType, payload, err := c.roundTrip(typ, build)
	if err != nil {
		return nil, err
	}
	if respType == expect {
		return payload, nil
	}
	if respType == sshFxpStatus {
		if err = c.decodeStatusAsError(payload); err != nil {
			return nil, err
		}
		return nil, newProtocolError("expected packet type %d, got STATUS OK", expect)
	}
	return nil, newProtocolError("expected packet type %d, got %d", expect, respType)
}

func decodeNameList(payload []byte) ([]NameEntry, error) {
	count, rest, err := getUint32(payload)
	if err != nil {
		return nil, newProtocolError("malformed FXP_NAME packet: %v", err)
	}
	// Validate the count can possibly fit before allocating for it: 12
	// bytes is the smallest possible entry (two empty strings, a zero
	// attrs flags word).
	if uint64(count) > uint64(len(rest))/12 {
		return nil, newProtocolError("malformed FXP_NAME packet")
	}
	names := make([]NameEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var filename, longname string
		var attrs Attributes
		filename, rest, err = getString(rest)
		if err != nil {
			return nil, newProtocolError("malformed FXP_NAME packet: %v", err)
		}
		longname, rest, err = getString(rest)
		if err != nil {
			return nil, newProtocolError("malformed FXP_NAME packet: %v", err)
		}
		attrs, rest, err = getAttrs(rest)
		if err != nil {
			return nil, newProtocolError("malformed FXP_NAME packet: %v", err)
		}
		names = append(names, NameEntry{Filename: filename, Longname: longname, Attrs: attrs})
	}
	return names, nil
}

// RealPath canonicalises path on the server. The reply must contain
// exactly one name.
func (c *Client) RealPath(path string) (string, error) {
	payload, err := c.dataOrStatusCall(sshFxpRealpath, sshFxpName, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, path)
	})
	if err != nil {
		return "", err
	}
	names, err := decodeNameList(payload)
	if err != nil {
		return "", err
	}
	if len(names) != 1 {
		return "", newProtocolError("REALPATH: expected 1 name, got %d", len(names))
	}
	return names[0].Filename, nil
}

// Getwd returns the server's notion of the current working directory.
func (c *Client) Getwd() (string, error) {
	return c.RealPath(".")
}

// Open issues OPEN with the given pflags (SSH_FXF_* bits, passed through
// verbatim) and an empty attribute record. No permission bits are
// conveyed at create time; callers needing specific create permissions
// follow up with Setstat or Fsetstat.
func (c *Client) Open(path string, pflags uint32) (string, error) {
	payload, err := c.dataOrStatusCall(sshFxpOpen, sshFxpHandle, func(id uint32) []byte {
		b := putUint32(nil, id)
		b = putString(b, path)
		b = putUint32(b, pflags)
		b = putUint32(b, 0) // empty ATTRS, see above
		return b
	})
	if err != nil {
		return "", err
	}
	handle, _, err := getString(payload)
	if err != nil {
		return "", newProtocolError("malformed HANDLE packet: %v", err)
	}
	return handle, nil
}

// closeHandle releases a file or directory handle. The public Close tears
// down the whole session instead.
func (c *Client) closeHandle(handle string) error {
	return c.simpleStatusCall(sshFxpClose, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, handle)
	})
}

// ReadAt issues one READ for up to length bytes at offset. eof is true
// when the server reported SSH_FX_EOF or an empty DATA reply; both are
// treated as clean EOF at any offset, including zero.
func (c *Client) ReadAt(handle string, offset uint64, length uint32) (data []byte, eof bool, err error) {
	respType, payload, err := c.roundTrip(sshFxpRead, func(id uint32) []byte {
		b := putUint32(nil, id)
		b = putString(b, handle)
		b = putUint64(b, offset)
		return putUint32(b, length)
	})
	if err != nil {
		return nil, false, err
	}
	switch respType {
	case sshFxpData:
		data, _, err = getBytes(payload)
		if err != nil {
			return nil, false, newProtocolError("malformed DATA packet: %v", err)
		}
		if uint32(len(data)) > length {
			return nil, false, newProtocolError(
				"READ: got %d bytes, requested %d", len(data), length)
		}
		if len(data) == 0 {
			return nil, true, nil
		}
		return data, false, nil
	case sshFxpStatus:
		statusErr := c.decodeStatusAsError(payload)
		if statusErr == nil {
			return nil, false, newProtocolError("READ: STATUS OK is not a valid reply")
		}
		if se, ok := statusErr.(*StatusError); ok && se.Code == sshFxEOF {
			return nil, true, nil
		}
		return nil, false, statusErr
	default:
		return nil, false, newProtocolError("expected DATA or STATUS, got packet type %d", respType)
	}
}

// WriteAt issues one WRITE of data at offset.
func (c *Client) WriteAt(handle string, offset uint64, data []byte) error {
	return c.simpleStatusCall(sshFxpWrite, func(id uint32) []byte {
		b := putUint32(nil, id)
		b = putString(b, handle)
		b = putUint64(b, offset)
		return putBytes(b, data)
	})
}

// OpenDir opens path as a directory handle for ReadDir.
func (c *Client) OpenDir(path string) (string, error) {
	payload, err := c.dataOrStatusCall(sshFxpOpendir, sshFxpHandle, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, path)
	})
	if err != nil {
		return "", err
	}
	handle, _, err := getString(payload)
	if err != nil {
		return "", newProtocolError("malformed HANDLE packet: %v", err)
	}
	return handle, nil
}

// readDirOnce issues one READDIR, returning (nil, nil) at EOF.
func (c *Client) readDirOnce(handle string) ([]NameEntry, error) {
	respType, payload, err := c.roundTrip(sshFxpReaddir, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, handle)
	})
	if err != nil {
		return nil, err
	}
	switch respType {
	case sshFxpName:
		return decodeNameList(payload)
	case sshFxpStatus:
		statusErr := c.decodeStatusAsError(payload)
		if se, ok := statusErr.(*StatusError); ok && se.Code == sshFxEOF {
			return nil, nil
		}
		if statusErr == nil {
			return nil, newProtocolError("READDIR: STATUS OK is not a valid reply")
		}
		return nil, statusErr
	default:
		return nil, newProtocolError("expected NAME or STATUS, got packet type %d", respType)
	}
}

// ReadDir opens path, reads every entry via repeated READDIR until EOF, and
// closes the handle.
func (c *Client) ReadDir(path string) ([]NameEntry, error) {
	handle, err := c.OpenDir(path)
	if err != nil {
		return nil, err
	}
	defer c.closeHandle(handle)

	var all []NameEntry
	for {
		batch, err := c.readDirOnce(handle)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return all, nil
		}
		all = append(all, batch...)
	}
}

func (c *Client) statCall(typ byte, build func(id uint32) []byte) (*Attributes, error) {
	payload, err := c.dataOrStatusCall(typ, sshFxpAttrs, build)
	if err != nil {
		return nil, err
	}
	attrs, _, err := getAttrs(payload)
	if err != nil {
		return nil, newProtocolError("malformed ATTRS packet: %v", err)
	}
	return &attrs, nil
}

// Stat follows symlinks; Lstat does not.
func (c *Client) Stat(path string) (*Attributes, error) {
	return c.statCall(sshFxpStat, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, path)
	})
}

func (c *Client) Lstat(path string) (*Attributes, error) {
	return c.statCall(sshFxpLstat, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, path)
	})
}

// Fstat stats an already-open handle.
func (c *Client) Fstat(handle string) (*Attributes, error) {
	return c.statCall(sshFxpFstat, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, handle)
	})
}

// Setstat applies attrs to path.
func (c *Client) Setstat(path string, attrs *Attributes) error {
	a := *attrs
	a.Flags &^= sshFileXferAttrExtended // extended attributes are never sent
	return c.simpleStatusCall(sshFxpSetstat, func(id uint32) []byte {
		b := putUint32(nil, id)
		b = putString(b, path)
		return putAttrs(b, &a)
	})
}

// Fsetstat applies attrs to an already-open handle.
func (c *Client) Fsetstat(handle string, attrs *Attributes) error {
	a := *attrs
	a.Flags &^= sshFileXferAttrExtended // extended attributes are never sent
	return c.simpleStatusCall(sshFxpFsetstat, func(id uint32) []byte {
		b := putUint32(nil, id)
		b = putString(b, handle)
		return putAttrs(b, &a)
	})
}

// Mkdir creates path with an empty attribute record, the same create-time
// limitation Open has.
func (c *Client) Mkdir(path string) error {
	return c.simpleStatusCall(sshFxpMkdir, func(id uint32) []byte {
		b := putUint32(nil, id)
		b = putString(b, path)
		return putUint32(b, 0)
	})
}

// Rmdir removes an empty directory.
func (c *Client) Rmdir(path string) error {
	return c.simpleStatusCall(sshFxpRmdir, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, path)
	})
}

// Remove deletes a file.
func (c *Client) Remove(path string) error {
	return c.simpleStatusCall(sshFxpRemove, func(id uint32) []byte {
		b := putUint32(nil, id)
		return putString(b, path)
	})
}

// Rename renames oldpath to newpath.
func (c *Client) Rename(oldpath, newpath string) error {
	return c.simpleStatusCall(sshFxpRename, func(id uint32) []byte {
		b := putUint32(nil, id)
		b = putString(b, oldpath)
		return putString(b, newpath)
	})
}

// Close releases the underlying transport. Any in-flight requests are
// abandoned; SFTP has no in-protocol cancel.
func (c *Client) Close() error {
	return c.transport.Close()
}
