package arcfs

import "github.com/meigma/arcfs/internal/fstype"

// Entry describes one file, directory or link on either backend.
type Entry = fstype.Entry

// Backend identifies which storage kind an Entry belongs to.
type Backend = fstype.Backend

// MountPoint describes a mounted filesystem a reader can browse from.
type MountPoint = fstype.MountPoint

// Backend constants.
const (
	BackendDisk    = fstype.BackendDisk
	BackendArchive = fstype.BackendArchive
)

// DefaultDirAttr is the attribute string of directories that carry no
// metadata of their own, such as the archive root.
const DefaultDirAttr = fstype.DefaultDirAttr
