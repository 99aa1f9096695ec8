// Package driver defines the contract between the archive reader and the
// format-specific code that parses and mutates one physical archive format.
//
// A [Format] decides whether it can handle a file; [Select] picks the first
// accepting format from an ordered list and binds it to the file, producing a
// [Driver]. Drivers are the single source of truth for an archive's directory
// structure: the formats have no directory objects of their own, so drivers
// report explicit directory members and synthesize missing ancestors.
package driver

import (
	"context"
	"fmt"

	"github.com/meigma/arcfs/internal/fstype"
)

// Format recognizes one physical archive format.
type Format interface {
	// Name returns a short identifier such as "tar.gz".
	Name() string

	// Accept reports whether the file at path can be handled by this format.
	// It must not modify the file and returns false for unreadable or
	// unrelated files instead of failing.
	Accept(path string) bool

	// Bind returns a Driver operating on the archive at path.
	Bind(path string, opts ...Option) Driver
}

// Driver parses and mutates one physical archive.
//
// Mutating methods rewrite the archive atomically: on error the file on disk
// is left as it was.
type Driver interface {
	// TypeName returns a human-readable tag for diagnostics.
	TypeName() string

	// Entries parses the archive and returns one entry per contained path,
	// including synthesized parent directories, sorted by fullname.
	Entries(ctx context.Context, progress fstype.ProgressFunc) ([]fstype.Entry, error)

	// Add inserts members into the archive.
	//
	// With a nil baseDir, items are archive-side directory markers created at
	// their own fullnames. Otherwise items are disk entries stored below
	// destDir at their path relative to baseDir; directories are added with
	// everything below them. Members with the same name are replaced.
	Add(ctx context.Context, items []fstype.Entry, baseDir *fstype.Entry, destDir fstype.Entry, progress fstype.ProgressFunc) error

	// Extract writes items to the disk directory destDir, keeping each item's
	// path relative to its parent directory. Directory items are extracted
	// with everything below them.
	Extract(ctx context.Context, destDir fstype.Entry, items []fstype.Entry, progress fstype.ProgressFunc) error

	// Rename changes the path of item, and of everything below it when it is
	// a directory. newName is a base name kept in the same parent directory,
	// or an absolute archive path.
	Rename(ctx context.Context, item fstype.Entry, newName string, progress fstype.ProgressFunc) error

	// Remove deletes items, and everything below directory items.
	Remove(ctx context.Context, items []fstype.Entry, progress fstype.ProgressFunc) error
}

// Select binds path to the first format in formats that accepts it.
// Order matters: a file two formats accept resolves to the earlier one.
// It returns ErrUnsupportedFormat when no format accepts the file.
func Select(path string, formats []Format, opts ...Option) (Driver, error) {
	for _, f := range formats {
		if f.Accept(path) {
			return f.Bind(path, opts...), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", fstype.ErrUnsupportedFormat, path)
}
