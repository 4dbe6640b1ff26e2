package usftp

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileModeRoundTrip(t *testing.T) {
	cases := []os.FileMode{
		0644,
		0755 | os.ModeDir,
		0600 | os.ModeSymlink,
		0666 | os.ModeSetuid,
		0660 | os.ModeSetgid | os.ModeSticky,
	}
	for _, want := range cases {
		wire := fromFileMode(want)
		got := toFileMode(wire)
		assert.Equal(t, want, got, "mode %v", want)
	}
}

func TestFileModeIsDirIsRegular(t *testing.T) {
	assert.True(t, FileMode(fromFileMode(os.ModeDir|0755)).IsDir())
	assert.True(t, FileMode(fromFileMode(0644)).IsRegular())
	assert.EqualValues(t, 0755, FileMode(fromFileMode(os.ModeDir|0755)).Perm())
}
