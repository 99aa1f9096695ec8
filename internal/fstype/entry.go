package fstype

import (
	"path"
	"strings"
	"time"
)

// Backend identifies which storage kind an Entry belongs to.
type Backend string

const (
	// BackendDisk marks entries that live on a local filesystem.
	BackendDisk Backend = "disk"

	// BackendArchive marks entries stored inside an archive file.
	BackendArchive Backend = "archive"
)

// String returns the backend tag.
func (b Backend) String() string {
	return string(b)
}

// DefaultDirAttr is the attribute string given to directories that have no
// metadata of their own, such as the archive root or synthesized parents.
const DefaultDirAttr = "drwxr-xr-x"

// Entry describes one filesystem object.
//
// Entry holds only value fields, so a copy never aliases another Entry.
type Entry struct {
	// Fullname is the path of the entry. Archive entries are rooted at "/"
	// and directories end with "/". Disk entries are absolute host paths.
	Fullname string

	// Orgname is the path as stored physically in the archive, without the
	// leading separator. Empty for the archive root and for disk entries.
	Orgname string

	// Name is the display name. It may differ from the base of Fullname,
	// for example ".." for a parent directory.
	Name string

	// Owner and Group are the owning user and group names, if known.
	Owner string
	Group string

	// UID and GID are the numeric owner ids.
	UID int
	GID int

	// ModTime, AccessTime and ChangeTime are the entry timestamps.
	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time

	// Attr is a POSIX-style attribute string such as "-rw-r--r--".
	Attr string

	// Size is the uncompressed size in bytes.
	Size int64

	// Dir reports whether the entry is a directory.
	Dir bool

	// Backend is the storage kind the entry belongs to.
	Backend Backend

	// Root is the physical path of the archive holding the entry.
	// Empty for disk entries.
	Root string

	// LinkTarget is the symlink target when the entry is a link.
	LinkTarget string
}

// IsRoot reports whether e is the synthetic archive root.
func (e Entry) IsRoot() bool {
	return e.Fullname == "/"
}

// Dirname returns the directory portion of Fullname, ignoring a trailing
// separator. The parent of "/a/b/" is "/a" and the parent of "/a/" is "/".
func (e Entry) Dirname() string {
	p := strings.TrimSuffix(e.Fullname, "/")
	if p == "" {
		return "/"
	}
	return path.Dir(p)
}
