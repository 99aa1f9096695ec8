//go:build !linux

package disk

import (
	"github.com/meigma/arcfs/internal/fstype"
)

// MountPoints returns the root of the home directory's volume. Capacity is
// not reported on this platform.
func (r *Reader) MountPoints() ([]fstype.MountPoint, error) {
	root := r.RootDir()
	return []fstype.MountPoint{{Device: root.Fullname, Mount: root}}, nil
}
