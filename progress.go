package arcfs

import "github.com/meigma/arcfs/internal/fstype"

// Re-export progress types from fstype.
type (
	// ProgressEvent represents a progress update during enumeration or mutation.
	ProgressEvent = fstype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = fstype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	// It is called from the goroutine running the operation.
	ProgressFunc = fstype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageEnumerating indicates archive entries are being read into the index.
	StageEnumerating = fstype.StageEnumerating

	// StageCompressing indicates entries are being added to an archive.
	StageCompressing = fstype.StageCompressing

	// StageExtracting indicates entries are being written out to disk.
	StageExtracting = fstype.StageExtracting

	// StageRenaming indicates entries are being renamed.
	StageRenaming = fstype.StageRenaming

	// StageRemoving indicates entries are being deleted.
	StageRemoving = fstype.StageRemoving

	// StageCopying indicates entries are being copied between disk paths.
	StageCopying = fstype.StageCopying
)
