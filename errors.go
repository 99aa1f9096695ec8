package arcfs

import "github.com/meigma/arcfs/internal/fstype"

// Errors shared by both readers. Lookup misses and name collisions are
// reported as *fs.PathError wrapping fs.ErrNotExist, fs.ErrExist or
// fs.ErrInvalid.
var (
	// ErrUnsupportedFormat is returned when no format driver accepts a file.
	ErrUnsupportedFormat = fstype.ErrUnsupportedFormat

	// ErrUnsupportedOperation is returned for operations a reader rejects,
	// such as changing directory inside an archive or copying between two
	// archives.
	ErrUnsupportedOperation = fstype.ErrUnsupportedOperation

	// ErrNotOpen is returned when an archive reader is used before Open succeeds.
	ErrNotOpen = fstype.ErrNotOpen
)
