//go:build unix

package platform

import (
	"errors"
	"os"
	"syscall"
)

// ErrSymlink is returned when a source path turns out to be a symbolic link
// at the moment it is opened for reading.
var ErrSymlink = errors.New("arcfs: source is a symbolic link")

// OpenFileNoFollow opens name below root for reading without following
// symlinks, so a source swapped for a link after collection is not read.
// Returns ErrSymlink if the path is a symbolic link.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlink
		}
		return nil, err
	}
	return f, nil
}
