package usftp

import "os"

// The wire format carries POSIX mode bits; os.FileMode scatters the same
// information across its own high bits. Both conversions walk one shared
// table so the two directions cannot drift apart.
var modeTypeTable = []struct {
	wire FileMode
	os   os.FileMode
}{
	{ModeRegular, 0},
	{ModeDir, os.ModeDir},
	{ModeSymlink, os.ModeSymlink},
	{ModeCharDevice, os.ModeDevice | os.ModeCharDevice},
	{ModeDevice, os.ModeDevice},
	{ModeNamedPipe, os.ModeNamedPipe},
	{ModeSocket, os.ModeSocket},
}

var modeSpecialTable = []struct {
	wire FileMode
	os   os.FileMode
}{
	{ModeSetUID, os.ModeSetuid},
	{ModeSetGID, os.ModeSetgid},
	{ModeSticky, os.ModeSticky},
}

// toFileMode converts SFTP wire mode bits to os.FileMode.
func toFileMode(mode uint32) os.FileMode {
	fm := os.FileMode(mode) & os.ModePerm
	wire := FileMode(mode)
	for _, row := range modeTypeTable {
		if wire&ModeType == row.wire {
			fm |= row.os
			break
		}
	}
	for _, row := range modeSpecialTable {
		if wire&row.wire != 0 {
			fm |= row.os
		}
	}
	return fm
}

// fromFileMode converts an os.FileMode to SFTP wire mode bits.
func fromFileMode(mode os.FileMode) uint32 {
	wire := FileMode(mode & os.ModePerm)
	for _, row := range modeTypeTable {
		if mode&os.ModeType == row.os {
			wire |= row.wire
			break
		}
	}
	for _, row := range modeSpecialTable {
		if mode&row.os != 0 {
			wire |= row.wire
		}
	}
	return uint32(wire)
}
