package disk

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/arcfs/internal/batch"
	"github.com/meigma/arcfs/internal/fstype"
)

// copyItem is one path Copy will write below the destination.
type copyItem struct {
	src  string
	item batch.Item
	dir  bool
	size int64
}

// Copy copies disk sources into the disk directory destDir. Each source
// keeps its path relative to baseDir, or to its own parent when baseDir is
// nil. Directories are copied with everything below them and files are
// written through a temporary file, so a destination file is either the old
// or the complete new content. Symlinks are skipped.
//
// Sources or destinations on another backend fail with
// ErrUnsupportedOperation; copying from an archive goes through the archive
// reader.
func (r *Reader) Copy(ctx context.Context, sources []fstype.Entry, baseDir *fstype.Entry, destDir fstype.Entry, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(sources) == 0 {
		return fmt.Errorf("%w: no sources", fstype.ErrUnsupportedOperation)
	}
	if destDir.Backend != fstype.BackendDisk {
		return fmt.Errorf("%w: copy to %s", fstype.ErrUnsupportedOperation, destDir.Backend)
	}
	for _, s := range sources {
		if s.Backend != fstype.BackendDisk {
			return fmt.Errorf("%w: copy from %s", fstype.ErrUnsupportedOperation, s.Backend)
		}
		if s.Fullname == destDir.Fullname || strings.HasPrefix(destDir.Fullname, s.Fullname+string(filepath.Separator)) {
			return &fs.PathError{Op: "copy", Path: s.Fullname, Err: fs.ErrInvalid}
		}
	}

	items, total, err := r.plan(ctx, sources, baseDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir.Fullname, 0o755); err != nil {
		return err
	}

	sink := batch.NewFileSink(destDir.Fullname,
		batch.WithOverwrite(r.overwrite),
		batch.WithPreserveMode(true),
		batch.WithPreserveTimes(true),
	)
	var done uint64
	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := &items[i]
		if it.dir {
			if err := sink.Mkdir(&it.item); err != nil {
				return err
			}
			continue
		}
		n, err := r.copyFile(sink, it)
		if err != nil {
			return err
		}
		done += uint64(n) //nolint:gosec // n is non-negative
		progress.Report(fstype.ProgressEvent{
			Stage:      fstype.StageCopying,
			Path:       it.src,
			BytesDone:  done,
			BytesTotal: total,
			FilesDone:  i + 1,
			FilesTotal: len(items),
		})
	}
	r.log().Info("copied", "dest", destDir.Fullname, "items", len(items), "bytes", done)
	return nil
}

func (r *Reader) copyFile(sink *batch.FileSink, it *copyItem) (int64, error) {
	f, err := os.Open(it.src)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return batch.Write(sink, &it.item, f)
}

// plan walks sources and returns the items to copy, parents before
// children, with the total number of file bytes.
func (r *Reader) plan(ctx context.Context, sources []fstype.Entry, baseDir *fstype.Entry) ([]copyItem, uint64, error) {
	var (
		items []copyItem
		total uint64
	)
	for _, s := range sources {
		base := filepath.Dir(s.Fullname)
		if baseDir != nil {
			base = baseDir.Fullname
		}
		err := filepath.WalkDir(s.Fullname, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(base, p)
			if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
				return &fs.PathError{Op: "copy", Path: p, Err: fs.ErrInvalid}
			}
			if d.Type()&fs.ModeSymlink != 0 {
				r.log().Debug("skipping symlink", "path", p)
				return nil
			}
			if !d.IsDir() && !d.Type().IsRegular() {
				r.log().Debug("skipping special file", "path", p)
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			it := copyItem{
				src:  p,
				dir:  d.IsDir(),
				item: batch.Item{Path: filepath.ToSlash(rel), Mode: info.Mode().Perm(), ModTime: info.ModTime()},
			}
			if !it.dir {
				it.size = info.Size()
				total += uint64(it.size) //nolint:gosec // sizes are non-negative
			}
			items = append(items, it)
			return nil
		})
		if err != nil {
			return nil, 0, fmt.Errorf("copy %s: %w", s.Fullname, err)
		}
	}
	return items, total, nil
}
