package usftp

import (
	"os"
	"time"
)

// Attributes is the decoded form of an fxp_attrs record: a flags word
// plus conditionally present fields in a fixed wire order (size, uid+gid,
// permissions, atime+mtime, extended). A field is present on the wire iff
// its flag bit is set.
type Attributes struct {
	Flags       uint32
	Size        uint64
	UID         uint32
	GID         uint32
	Permissions uint32
	Atime       uint32
	Mtime       uint32
	Extended    []ExtendedAttr
}

// ExtendedAttr is one (type, data) pair from an EXTENDED attribute
// record. This package decodes these (so the cursor stays correctly
// positioned) but never sends them.
type ExtendedAttr struct {
	Type string
	Data string
}

// FileMode returns the type and permission bits.
func (a *Attributes) FileMode() FileMode { return FileMode(a.Permissions) }

// FileType returns just the type bits of the mode.
func (a *Attributes) FileType() FileMode { return FileMode(a.Permissions) & ModeType }

// IsRegular reports whether the attributes describe a regular file.
func (a *Attributes) IsRegular() bool { return a.FileType() == ModeRegular }

// IsDir reports whether the attributes describe a directory.
func (a *Attributes) IsDir() bool { return a.FileType() == ModeDir }

// ModTime converts Mtime to a time.Time.
func (a *Attributes) ModTime() time.Time { return time.Unix(int64(a.Mtime), 0) }

// AccessTime converts Atime to a time.Time.
func (a *Attributes) AccessTime() time.Time { return time.Unix(int64(a.Atime), 0) }

// OsFileMode converts Permissions to an os.FileMode.
func (a *Attributes) OsFileMode() os.FileMode { return toFileMode(a.Permissions) }

// attributesFromInfo builds the flags word and Attributes this client
// would send for a local os.FileInfo, used by Setstat/Fsetstat callers
// that want to mirror a local file's metadata. Extended attributes are
// never set.
func attributesFromInfo(fi os.FileInfo) (uint32, *Attributes) {
	mtime := fi.ModTime().Unix()
	flags := uint32(sshFileXferAttrSize | sshFileXferAttrPermissions | sshFileXferAttrACmodTime)
	a := &Attributes{
		Size:        uint64(fi.Size()),
		Permissions: fromFileMode(fi.Mode()),
		Mtime:       uint32(mtime),
		Atime:       uint32(mtime),
	}
	if fiExt, ok := fi.(FileInfoUidGid); ok {
		flags |= sshFileXferAttrUIDGID
		a.UID = fiExt.Uid()
		a.GID = fiExt.Gid()
	}
	a.Flags = flags
	return flags, a
}

// FileInfoUidGid extends os.FileInfo with uid/gid retrieval, an
// alternative to *syscall.Stat_t on unix systems.
type FileInfoUidGid interface {
	os.FileInfo
	Uid() uint32
	Gid() uint32
}

// fileInfo adapts an Attributes plus a name to satisfy os.FileInfo, used by
// ReadDir/Stat/Lstat results.
type fileInfo struct {
	name  string
	attrs *Attributes
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return int64(fi.attrs.Size) }
func (fi *fileInfo) Mode() os.FileMode  { return fi.attrs.OsFileMode() }
func (fi *fileInfo) ModTime() time.Time { return fi.attrs.ModTime() }
func (fi *fileInfo) IsDir() bool        { return fi.Mode().IsDir() }
func (fi *fileInfo) Sys() any           { return fi.attrs }

// FileInfoFromAttrs converts an Attributes record and a name into an
// os.FileInfo.
func FileInfoFromAttrs(a *Attributes, name string) os.FileInfo {
	return &fileInfo{name: name, attrs: a}
}

// FileMode represents a file's type and permission bits, defined per
// POSIX rather than the host OS, matching the wire representation
// exactly.
type FileMode uint32

const (
	ModePerm       FileMode = 0o0777
	ModeUserRead   FileMode = 0o0400
	ModeUserWrite  FileMode = 0o0200
	ModeUserExec   FileMode = 0o0100
	ModeGroupRead  FileMode = 0o0040
	ModeGroupWrite FileMode = 0o0020
	ModeGroupExec  FileMode = 0o0010
	ModeOtherRead  FileMode = 0o0004
	ModeOtherWrite FileMode = 0o0002
	ModeOtherExec  FileMode = 0o0001

	ModeSetUID FileMode = 0o4000
	ModeSetGID FileMode = 0o2000
	ModeSticky FileMode = 0o1000

	ModeType       FileMode = 0xF000
	ModeNamedPipe  FileMode = 0x1000
	ModeCharDevice FileMode = 0x2000
	ModeDir        FileMode = 0x4000
	ModeDevice     FileMode = 0x6000
	ModeRegular    FileMode = 0x8000
	ModeSymlink    FileMode = 0xA000
	ModeSocket     FileMode = 0xC000
)

// IsDir reports whether m describes a directory.
func (m FileMode) IsDir() bool { return (m & ModeType) == ModeDir }

// IsRegular reports whether m describes a regular file.
func (m FileMode) IsRegular() bool { return (m & ModeType) == ModeRegular }

// Perm returns the POSIX permission bits in m.
func (m FileMode) Perm() FileMode { return m & ModePerm }

// Type returns the type bits in m.
func (m FileMode) Type() FileMode { return m & ModeType }
