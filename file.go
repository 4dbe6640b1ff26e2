package usftp

import (
	"io"
	"os"
	"path"
)

// toPflags converts the os.O_* flags passed to OpenFile into SSH_FXF_*
// bits.
func toPflags(f int) uint32 {
	var out uint32
	switch f & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_RDONLY:
		out |= sshFxfRead
	case os.O_WRONLY:
		out |= sshFxfWrite
	case os.O_RDWR:
		out |= sshFxfRead | sshFxfWrite
	}
	if f&os.O_APPEND == os.O_APPEND {
		out |= sshFxfAppend
	}
	if f&os.O_CREATE == os.O_CREATE {
		out |= sshFxfCreat
	}
	if f&os.O_TRUNC == os.O_TRUNC {
		out |= sshFxfTrunc
	}
	if f&os.O_EXCL == os.O_EXCL {
		out |= sshFxfExcl
	}
	return out
}

// File is a convenience wrapper around a Client and an open handle for
// synchronous callers: it alternates send/receive itself (via
// Client.recvOne) instead of requiring its caller to drive an event loop
// directly.
//
// Calls that change the offset (Read/Write/WriteTo/ReadFrom/Seek) are not
// safe for concurrent use on the same File.
type File struct {
	client *Client
	name   string
	handle string // empty if not open
	offset int64
	attrs  *Attributes // cached; nil until populated by Stat
}

// Name returns the path as presented to OpenFile/Create/OpenRead.
func (f *File) Name() string { return f.name }

// IsOpen reports whether the file currently holds a server handle.
func (f *File) IsOpen() bool { return f.handle != "" }

// OpenFile opens path with os.O_* flags.
func (c *Client) OpenFile(path string, flags int) (*File, error) {
	return c.openFile(path, toPflags(flags))
}

// Create creates path, truncating it if it already exists, and opens it
// read/write. Like Open, it sends no permission bits, so the server picks
// the new file's mode. Some servers (e.g. AWS Transfer)
// reject O_RDWR opens; use OpenFile with O_WRONLY in that case.
func (c *Client) Create(path string) (*File, error) {
	return c.openFile(path, toPflags(os.O_RDWR|os.O_CREATE|os.O_TRUNC))
}

// OpenRead opens path for reading only.
func (c *Client) OpenRead(path string) (*File, error) {
	return c.openFile(path, toPflags(os.O_RDONLY))
}

func (c *Client) openFile(name string, pflags uint32) (*File, error) {
	handle, err := c.Open(name, pflags)
	if err != nil {
		return nil, chainError(err, "usftp: open %s", name)
	}
	return &File{client: c, name: name, handle: handle}, nil
}

// Close releases the file's handle, if open.
func (f *File) Close() error {
	if f.handle == "" {
		return nil
	}
	handle := f.handle
	f.handle = ""
	return f.client.closeHandle(handle)
}

// Stat returns the file's attributes, using FSTAT if the file is open and
// STAT otherwise.
func (f *File) Stat() (*Attributes, error) {
	var attrs *Attributes
	var err error
	if f.handle != "" {
		attrs, err = f.client.Fstat(f.handle)
	} else {
		attrs, err = f.client.Stat(f.name)
	}
	if err != nil {
		return nil, err
	}
	f.attrs = attrs
	return attrs, nil
}

// CachedStat returns the previously fetched attributes, if any, without a
// round trip. Populated only by Stat (including the Stat that Seek makes).
func (f *File) CachedStat() *Attributes { return f.attrs }

// IsDir reports whether cached attributes describe a directory.
func (f *File) IsDir() bool { return f.attrs != nil && f.attrs.IsDir() }

// IsRegular reports whether cached attributes describe a regular file.
func (f *File) IsRegular() bool { return f.attrs != nil && f.attrs.IsRegular() }

// BaseName returns the last path element of the file's name.
func (f *File) BaseName() string { return path.Base(f.name) }

// ReadAt reads up to len(b) bytes at offset, leaving the File's own offset
// unchanged. Implements io.ReaderAt via a single protocol READ (no
// pipelining); use WriteTo for bulk transfers.
func (f *File) ReadAt(b []byte, offset int64) (int, error) {
	if f.handle == "" {
		return 0, os.ErrClosed
	}
	if len(b) == 0 {
		return 0, nil
	}
	length := uint32(len(b))
	if max := uint32(f.client.maxPacket); length > max {
		length = max
	}
	data, eof, err := f.client.ReadAt(f.handle, uint64(offset), length)
	if err != nil {
		return 0, err
	}
	if eof {
		return 0, io.EOF
	}
	n := copy(b, data)
	return n, nil
}

// Read implements io.Reader at the File's current offset.
func (f *File) Read(b []byte) (int, error) {
	n, err := f.ReadAt(b, f.offset)
	f.offset += int64(n)
	return n, err
}

// WriteAt writes data at offset, leaving the File's own offset unchanged.
// Implements io.WriterAt via a single protocol WRITE; use ReadFrom for bulk
// transfers that need pipelining.
func (f *File) WriteAt(data []byte, offset int64) (int, error) {
	if f.handle == "" {
		return 0, os.ErrClosed
	}
	if len(data) == 0 {
		return 0, nil
	}
	if err := f.client.WriteAt(f.handle, uint64(offset), data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Write implements io.Writer at the File's current offset.
func (f *File) Write(b []byte) (int, error) {
	n, err := f.WriteAt(b, f.offset)
	f.offset += int64(n)
	return n, err
}

// Seek implements io.Seeker. Seeking relative to the end fetches attributes
// via Stat if they have not been cached yet.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.handle == "" {
		return 0, os.ErrClosed
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		if f.attrs == nil {
			if _, err := f.Stat(); err != nil {
				return f.offset, err
			}
		}
		offset += int64(f.attrs.Size)
	default:
		return f.offset, os.ErrInvalid
	}
	if offset < 0 {
		return f.offset, os.ErrInvalid
	}
	f.offset = offset
	return f.offset, nil
}

// WriteTo implements io.WriterTo: it drives the pipelined download engine
// from the File's current offset to EOF, writing each delivered chunk to
// w as soon as it is ready regardless of completion order at the
// transport layer.
func (f *File) WriteTo(w io.Writer) (written int64, err error) {
	if f.handle == "" {
		return 0, os.ErrClosed
	}
	xfer := newDownloadTransfer(f.client, f.handle, uint64(f.offset), f.client.windowSize, f.client.readSize)
	defer xfer.cleanup()

	for !xfer.done() {
		if data, ok := xfer.pullData(); ok {
			var n int
			n, err = w.Write(data)
			written += int64(n)
			if err != nil {
				return written, err
			}
			xfer.queueMore()
			continue
		}
		if xfer.done() {
			break
		}
		if err = f.client.recvOne(); err != nil {
			return written, err
		}
		xfer.queueMore()
	}
	f.offset += written
	if xfer.Err() != nil {
		return written, xfer.Err()
	}
	return written, nil
}

// ReadFrom implements io.ReaderFrom: it drives the pipelined upload
// engine, queueing WRITE requests as fast as r can supply data while the
// transfer window has room, and tolerates the server acknowledging
// them out of order.
func (f *File) ReadFrom(r io.Reader) (read int64, err error) {
	if f.handle == "" {
		return 0, os.ErrClosed
	}
	xfer := newUploadTransfer(f.client, f.handle, uint64(f.offset), f.client.windowSize, f.client.readSize)
	defer xfer.cleanup()

	buf := make([]byte, f.client.readSize)
	eofSeen := false
	for !eofSeen {
		if !xfer.ready() {
			if err = f.client.recvOne(); err != nil {
				return read, err
			}
			if xfer.Err() != nil {
				return read, xfer.Err()
			}
			continue
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if werr := xfer.data(buf[:n]); werr != nil {
				return read, werr
			}
			read += int64(n)
		}
		if rerr != nil {
			if rerr != io.EOF {
				return read, rerr
			}
			eofSeen = true
		}
	}
	for !xfer.done() {
		if err = f.client.recvOne(); err != nil {
			return read, err
		}
	}
	f.offset += read
	if xfer.Err() != nil {
		return read, xfer.Err()
	}
	return read, nil
}

// Remove deletes the file. It may remain open.
func (f *File) Remove() error { return f.client.Remove(f.name) }

// Rename renames the file on the server and, on success, updates the
// File's cached name.
func (f *File) Rename(newName string) error {
	if err := f.client.Rename(f.name, newName); err != nil {
		return err
	}
	f.name = newName
	return nil
}

// Chmod changes the file's permission bits.
func (f *File) Chmod(mode os.FileMode) error {
	attrs := &Attributes{Flags: sshFileXferAttrPermissions, Permissions: fromFileMode(mode)}
	if f.handle != "" {
		return f.client.Fsetstat(f.handle, attrs)
	}
	return f.client.Setstat(f.name, attrs)
}

// Truncate sets the file's size.
func (f *File) Truncate(size int64) error {
	attrs := &Attributes{Flags: sshFileXferAttrSize, Size: uint64(size)}
	if f.handle != "" {
		return f.client.Fsetstat(f.handle, attrs)
	}
	return f.client.Setstat(f.name, attrs)
}

// SetAttrsFromInfo mirrors a local file's size, permissions, and
// access/modification times onto this file, for callers that want an
// uploaded file to carry the same metadata as its local source.
func (f *File) SetAttrsFromInfo(fi os.FileInfo) error {
	_, attrs := attributesFromInfo(fi)
	if f.handle != "" {
		return f.client.Fsetstat(f.handle, attrs)
	}
	return f.client.Setstat(f.name, attrs)
}

// Chown changes the file's uid/gid.
func (f *File) Chown(uid, gid int) error {
	attrs := &Attributes{Flags: sshFileXferAttrUIDGID, UID: uint32(uid), GID: uint32(gid)}
	if f.handle != "" {
		return f.client.Fsetstat(f.handle, attrs)
	}
	return f.client.Setstat(f.name, attrs)
}
