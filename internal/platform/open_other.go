//go:build !unix

package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned when a source path turns out to be a symbolic link
// at the moment it is opened for reading.
var ErrSymlink = errors.New("arcfs: source is a symbolic link")

// OpenFileNoFollow opens name below root for reading without following
// symlinks, so a source swapped for a link after collection is not read.
// Returns ErrSymlink if the path is a symbolic link.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	return root.Open(name)
}
