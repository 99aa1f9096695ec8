package fstype

// ProgressEvent represents a progress update during enumeration or mutation.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// BytesDone is the number of bytes completed in the current operation.
	BytesDone uint64

	// BytesTotal is the total bytes for the current operation.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// FilesDone is the number of entries completed.
	FilesDone int

	// FilesTotal is the total number of entries.
	// Zero indicates the total is unknown (e.g., while streaming a tar).
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEnumerating indicates archive entries are being read into the index.
	StageEnumerating ProgressStage = iota

	// StageCompressing indicates entries are being added to an archive.
	StageCompressing

	// StageExtracting indicates entries are being written out to disk.
	StageExtracting

	// StageRenaming indicates entries are being renamed inside an archive.
	StageRenaming

	// StageRemoving indicates entries are being deleted from an archive.
	StageRemoving

	// StageCopying indicates entries are being copied between disk paths.
	StageCopying
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageCompressing:
		return "compressing"
	case StageExtracting:
		return "extracting"
	case StageRenaming:
		return "renaming"
	case StageRemoving:
		return "removing"
	case StageCopying:
		return "copying"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// It may be called zero or more times; counters never decrease.
type ProgressFunc func(ProgressEvent)

// Report calls fn with ev when fn is non-nil.
func (fn ProgressFunc) Report(ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}
