package fstype

import "errors"

// Sentinel errors shared by readers and drivers.
var (
	// ErrUnsupportedFormat is returned when no driver accepts a file.
	ErrUnsupportedFormat = errors.New("arcfs: unsupported archive format")

	// ErrUnsupportedOperation is returned for operations a backend rejects,
	// such as changing directory inside an archive.
	ErrUnsupportedOperation = errors.New("arcfs: unsupported operation")

	// ErrNotOpen is returned when an archive reader is used before Open succeeds.
	ErrNotOpen = errors.New("arcfs: archive not open")
)
