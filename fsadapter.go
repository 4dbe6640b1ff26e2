package usftp

import (
	"io/fs"
	"path"
	"sort"
)

// DirFS returns a read-only file system rooted at dir on the server,
// analogous to os.DirFS. The result also implements fs.StatFS and
// fs.ReadDirFS. Names follow the io/fs convention: slash-separated,
// unrooted, with "." naming the root itself; errors come back as
// *fs.PathError so callers can use errors.Is/errors.As the way they
// would with any other fs.FS.
func (c *Client) DirFS(dir string) fs.FS {
	return &remoteFS{client: c, root: dir}
}

type remoteFS struct {
	client *Client
	root   string
}

// resolve maps an io/fs name onto the server path, rejecting names that
// violate the fs.ValidPath contract before any wire traffic happens.
func (rfs *remoteFS) resolve(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return rfs.root, nil
	}
	return path.Join(rfs.root, name), nil
}

func (rfs *remoteFS) Open(name string) (fs.File, error) {
	target, err := rfs.resolve("open", name)
	if err != nil {
		return nil, err
	}
	f, err := rfs.client.OpenRead(target)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &remoteFile{file: f, name: name}, nil
}

func (rfs *remoteFS) Stat(name string) (fs.FileInfo, error) {
	target, err := rfs.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	attrs, err := rfs.client.Stat(target)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return FileInfoFromAttrs(attrs, path.Base(target)), nil
}

// ReadDir lists a remote directory per the fs.ReadDirFS contract:
// entries come back sorted by name, and the "." and ".." links some
// servers include are dropped.
func (rfs *remoteFS) ReadDir(name string) ([]fs.DirEntry, error) {
	target, err := rfs.resolve("readdir", name)
	if err != nil {
		return nil, err
	}
	names, err := rfs.client.ReadDir(target)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	entries := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		if n.Filename == "." || n.Filename == ".." {
			continue
		}
		entries = append(entries, &remoteDirEntry{name: n.Filename, attrs: n.Attrs})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// remoteDirEntry carries the attributes that arrived with the READDIR
// reply, so Info never costs another round trip.
type remoteDirEntry struct {
	name  string
	attrs Attributes
}

func (e *remoteDirEntry) Name() string      { return e.name }
func (e *remoteDirEntry) IsDir() bool       { return e.attrs.IsDir() }
func (e *remoteDirEntry) Type() fs.FileMode { return e.attrs.OsFileMode().Type() }

func (e *remoteDirEntry) Info() (fs.FileInfo, error) {
	attrs := e.attrs
	return FileInfoFromAttrs(&attrs, e.name), nil
}

// remoteFile adapts an open *File to fs.File under its io/fs name.
type remoteFile struct {
	file *File
	name string
}

func (rf *remoteFile) Read(b []byte) (int, error) { return rf.file.Read(b) }
func (rf *remoteFile) Close() error               { return rf.file.Close() }

func (rf *remoteFile) Stat() (fs.FileInfo, error) {
	attrs, err := rf.file.Stat()
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: rf.name, Err: err}
	}
	return FileInfoFromAttrs(attrs, path.Base(rf.name)), nil
}
