package arcfs

import (
	"context"

	"github.com/meigma/arcfs/archive"
	"github.com/meigma/arcfs/disk"
)

// Reader is the contract a file manager uses to browse and edit one
// filesystem, whether host directories or the inside of an archive.
type Reader interface {
	// ResolvePath returns the entry for p. "." is the current directory and
	// ".." its parent; relative paths resolve against the current directory.
	ResolvePath(p string) (Entry, error)

	// List returns the direct children of dir and makes dir current.
	List(dir Entry) ([]Entry, error)

	// Exists reports whether p names an existing entry.
	Exists(p string) bool

	// ExistsEntry reports whether e exists.
	ExistsEntry(e Entry) bool

	// MakeDir creates a directory.
	MakeDir(ctx context.Context, p string, progress ProgressFunc) error

	// MakeDirEntry creates the directory named by e.
	MakeDirEntry(ctx context.Context, e Entry, progress ProgressFunc) error

	// Rename renames e to a base name in the same directory or to an
	// absolute path.
	Rename(ctx context.Context, e Entry, newName string, progress ProgressFunc) error

	// Copy copies sources into destDir. With a non-nil baseDir, sources keep
	// their path relative to it.
	Copy(ctx context.Context, sources []Entry, baseDir *Entry, destDir Entry, progress ProgressFunc) error

	// Remove deletes sources, directories recursively.
	Remove(ctx context.Context, sources []Entry, progress ProgressFunc) error

	// CurrentDir returns the current directory.
	CurrentDir() Entry

	// ChangeDir makes dir current, where the backend allows it.
	ChangeDir(dir Entry) error

	// MountPoints lists the filesystems the reader can browse from.
	MountPoints() ([]MountPoint, error)

	// HomeDir returns the directory a session starts in.
	HomeDir() Entry

	// RootDir returns the top of the hierarchy.
	RootDir() Entry

	// Sep returns the path separator.
	Sep() string
}

// ArchiveReader is a Reader bound to one archive file.
type ArchiveReader interface {
	Reader

	// Open binds the reader to the archive at path. It reports false when
	// no format accepts the file.
	Open(ctx context.Context, path string, progress ProgressFunc) (bool, error)

	// Entries returns a copy of the archive's index, sorted by fullname.
	Entries() []Entry

	// ArchivePath returns the absolute path of the bound archive.
	ArchivePath() string

	// TypeName names the bound format.
	TypeName() string
}

var (
	_ Reader        = (*disk.Reader)(nil)
	_ ArchiveReader = (*archive.Reader)(nil)
)

// OpenArchive opens the archive at path. It returns ErrUnsupportedFormat
// when no format accepts the file.
func OpenArchive(ctx context.Context, path string, opts ...archive.Option) (*archive.Reader, error) {
	return archive.OpenFile(ctx, path, opts...)
}

// NewDisk creates a Reader over host paths, starting in the home directory.
func NewDisk(opts ...disk.Option) (*disk.Reader, error) {
	return disk.New(opts...)
}

// IsArchive reports whether one of the default formats accepts the file at
// path.
func IsArchive(path string) bool {
	for _, f := range archive.DefaultFormats() {
		if f.Accept(path) {
			return true
		}
	}
	return false
}
