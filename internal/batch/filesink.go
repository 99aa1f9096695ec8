package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const defaultDirPerm = 0o755

// FileSink writes items to the filesystem.
//
// Files are written to a temporary file in the same directory and renamed
// to the final path on Commit. This ensures that partially written files
// are never visible at the final path.
type FileSink struct {
	destDir       string
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithPreserveMode preserves file permission modes from the archive.
// By default, modes are not preserved (files use umask defaults).
func WithPreserveMode(preserve bool) FileSinkOption {
	return func(s *FileSink) {
		s.preserveMode = preserve
	}
}

// WithPreserveTimes preserves file modification times from the archive.
// By default, times are not preserved (files use current time).
func WithPreserveTimes(preserve bool) FileSinkOption {
	return func(s *FileSink) {
		s.preserveTimes = preserve
	}
}

// NewFileSink creates a FileSink that writes to destDir.
//
// destDir must exist. Parent directories below it are created as needed.
func NewFileSink(destDir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		destDir: destDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldProcess returns false if the file already exists and overwrite is disabled.
func (s *FileSink) ShouldProcess(item *Item) bool {
	if !fs.ValidPath(item.Path) {
		return false
	}
	if s.overwrite {
		return true
	}
	destPath := filepath.Join(s.destDir, filepath.FromSlash(item.Path))
	_, err := os.Stat(destPath)
	return os.IsNotExist(err)
}

// Mkdir creates the directory named by item, including parents.
func (s *FileSink) Mkdir(item *Item) error {
	if !fs.ValidPath(item.Path) {
		return &fs.PathError{Op: "mkdir", Path: item.Path, Err: fs.ErrInvalid}
	}
	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	defer root.Close()

	rel := filepath.FromSlash(item.Path)
	if err := root.MkdirAll(rel, defaultDirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", item.Path, err)
	}
	if s.preserveMode && item.Mode.Perm() != 0 {
		if err := root.Chmod(rel, item.Mode.Perm()|0o700); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
	}
	return nil
}

// Writer returns a Committer that writes to a temp file and renames on Commit.
func (s *FileSink) Writer(item *Item) (Committer, error) {
	if !fs.ValidPath(item.Path) {
		return nil, &fs.PathError{Op: "extract", Path: item.Path, Err: fs.ErrInvalid}
	}
	destPath := filepath.Join(s.destDir, filepath.FromSlash(item.Path))
	destRel := filepath.FromSlash(item.Path)

	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	if err := root.MkdirAll(filepath.Dir(destRel), defaultDirPerm); err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(destPath), err)
	}

	// Create temp file in same directory (for atomic rename)
	tempFile, tempRel, err := createTempFile(root, filepath.Dir(destRel), ".arcfs-")
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &fileCommitter{
		item:     item,
		destPath: destPath,
		destRel:  destRel,
		tempFile: tempFile,
		tempRel:  tempRel,
		root:     root,
		sink:     s,
	}, nil
}

// fileCommitter writes to a temp file and renames on Commit.
type fileCommitter struct {
	item     *Item
	destPath string
	destRel  string
	tempFile *os.File
	tempRel  string
	root     *os.Root
	sink     *FileSink
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit closes the temp file, applies metadata, and renames to final path.
func (c *fileCommitter) Commit() error {
	if err := c.tempFile.Close(); err != nil {
		return c.fail(fmt.Errorf("close temp file: %w", err))
	}

	if c.sink.preserveMode {
		if err := c.root.Chmod(c.tempRel, c.item.Mode.Perm()); err != nil {
			return c.fail(fmt.Errorf("chmod: %w", err))
		}
	}

	if c.sink.preserveTimes && !c.item.ModTime.IsZero() {
		if err := c.root.Chtimes(c.tempRel, c.item.ModTime, c.item.ModTime); err != nil {
			return c.fail(fmt.Errorf("chtimes: %w", err))
		}
	}

	if c.sink.overwrite {
		if info, err := c.root.Lstat(c.destRel); err == nil && info.IsDir() {
			return c.fail(&fs.PathError{Op: "extract", Path: c.destPath, Err: errors.New("is a directory")})
		}
	}

	// Atomic rename to final path
	if err := c.root.Rename(c.tempRel, c.destRel); err != nil {
		return c.fail(fmt.Errorf("rename to %s: %w", c.destPath, err))
	}

	_ = c.root.Close() //nolint:errcheck // best-effort cleanup
	return nil
}

// fail removes the temp file and closes the root, returning err.
func (c *fileCommitter) fail(err error) error {
	_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
	_ = c.root.Close()           //nolint:errcheck // best-effort cleanup
	return err
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	if err := c.root.Remove(c.tempRel); err != nil {
		_ = c.root.Close() //nolint:errcheck // best-effort cleanup
		return err
	}
	return c.root.Close()
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
