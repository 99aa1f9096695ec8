// Package batch writes extracted archive entries to a destination directory.
package batch

import (
	"fmt"
	"io"
	"io/fs"
	"time"
)

// Item describes one extracted entry.
type Item struct {
	// Path is the slash-separated destination path relative to the sink root.
	Path string

	// Mode is the entry's permission bits.
	Mode fs.FileMode

	// ModTime is the entry's modification time.
	ModTime time.Time
}

// Sink receives extracted content.
type Sink interface {
	// ShouldProcess returns false if this item should be skipped.
	ShouldProcess(item *Item) bool

	// Mkdir creates the directory for a directory item.
	Mkdir(item *Item) error

	// Writer returns a writer for the item's content.
	// The returned Committer must have Commit() called after a successful
	// write, or Discard() called on any error.
	Writer(item *Item) (Committer, error)
}

// Committer is a writer that can be committed or discarded.
//
// Implementations should stage writes until Commit is called.
// For example, a file-based implementation might write to a temp file
// and rename it on Commit, or delete it on Discard.
type Committer interface {
	io.Writer

	// Commit finalizes the write, making content available.
	Commit() error

	// Discard aborts the write and cleans up any temporary resources.
	Discard() error
}

// Write streams r into the sink as item. It returns the number of bytes
// written. Items the sink declines are skipped and report zero bytes.
func Write(sink Sink, item *Item, r io.Reader) (int64, error) {
	if !sink.ShouldProcess(item) {
		return 0, nil
	}
	w, err := sink.Writer(item)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return n, fmt.Errorf("write %s: %w", item.Path, err)
	}
	if err := w.Commit(); err != nil {
		return n, err
	}
	return n, nil
}
