// Package rewrite replaces a physical archive atomically.
package rewrite

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File rewrites the file at path by streaming fresh content through fn.
//
// fn receives a writer for a temp file created next to path. The temp file
// replaces path only when fn returns nil; on any error, including context
// cancellation, the original file is left untouched and the temp file is
// removed. The original permission bits are carried over.
func File(ctx context.Context, path string, fn func(w io.Writer) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".arcfs-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := fn(tmp); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming to destination: %w", err)
	}

	success = true
	return nil
}
