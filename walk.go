package usftp

import (
	"os"
	"path"

	krfs "github.com/kr/fs"
)

// This file wires up the github.com/kr/fs.FileSystem interface so
// kr/fs.Walk can walk a remote tree the same way it walks a local one.
//
// Client's own ReadDir and Lstat names are already taken by the
// protocol-level primitives that return NameEntry/*Attributes rather than
// os.FileInfo, so the os.FileInfo-returning variants below carry an
// "Info" suffix and krFileSystem adapts them to kr/fs.FileSystem's exact
// method names.

// ReadDirInfo is ReadDir adapted to return os.FileInfo, as kr/fs.FileSystem
// requires.
func (c *Client) ReadDirInfo(dir string) ([]os.FileInfo, error) {
	names, err := c.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, len(names))
	for i, n := range names {
		attrs := n.Attrs
		infos[i] = FileInfoFromAttrs(&attrs, n.Filename)
	}
	return infos, nil
}

// LstatInfo is Lstat adapted to return os.FileInfo.
func (c *Client) LstatInfo(name string) (os.FileInfo, error) {
	attrs, err := c.Lstat(name)
	if err != nil {
		return nil, err
	}
	return FileInfoFromAttrs(attrs, path.Base(name)), nil
}

// krFileSystem adapts *Client to kr/fs.FileSystem's exact method set
// (ReadDir/Lstat without the Info suffix), since Client's own ReadDir and
// Lstat names are already taken by the protocol-level primitives that
// return NameEntry/*Attributes rather than os.FileInfo.
type krFileSystem struct {
	client *Client
}

func (fs *krFileSystem) ReadDir(dir string) ([]os.FileInfo, error) { return fs.client.ReadDirInfo(dir) }
func (fs *krFileSystem) Lstat(name string) (os.FileInfo, error)    { return fs.client.LstatInfo(name) }
func (fs *krFileSystem) Join(elem ...string) string                { return path.Join(elem...) }

// Walk returns a kr/fs.Walker rooted at root.
func (c *Client) Walk(root string) *krfs.Walker {
	return krfs.WalkFS(root, &krFileSystem{client: c})
}
