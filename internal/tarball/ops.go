package tarball

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/internal/batch"
	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
	"github.com/meigma/arcfs/internal/source"
)

// Add implements driver.Driver.
func (a *Archive) Add(ctx context.Context, items []fstype.Entry, baseDir *fstype.Entry, destDir fstype.Entry, progress fstype.ProgressFunc) error {
	var (
		files []source.File
		err   error
	)
	if baseDir == nil {
		files, err = source.Markers(items, a.cfg.Now())
	} else {
		files, err = source.Collect(ctx, items, *baseDir, destDir)
	}
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	replaced := make(map[string]bool, len(files))
	for _, f := range files {
		replaced[strings.TrimSuffix(f.Name, pathutil.Sep)] = true
	}

	a.cfg.Log().Info("adding to tarball", "path", a.path, "members", len(files))
	keep := func(hdr *tar.Header) *tar.Header {
		if replaced[strings.TrimSuffix(pathutil.Clean(hdr.Name), pathutil.Sep)] {
			return nil
		}
		return hdr
	}
	return a.transform(ctx, keep, func(tw *tar.Writer) error {
		var bytesDone uint64
		for i := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := writeSource(tw, &files[i])
			if err != nil {
				return err
			}
			bytesDone += uint64(n) //nolint:gosec // n is a non-negative byte count
			progress.Report(fstype.ProgressEvent{
				Stage:      fstype.StageCompressing,
				Path:       pathutil.Fullname(files[i].Name),
				BytesDone:  bytesDone,
				FilesDone:  i + 1,
				FilesTotal: len(files),
			})
		}
		return nil
	})
}

// writeSource writes one collected member and returns its content size.
func writeSource(tw *tar.Writer, f *source.File) (int64, error) {
	hdr := &tar.Header{
		Name:    f.Name,
		Mode:    int64(f.Mode.Perm()),
		ModTime: f.ModTime,
		Uid:     f.UID,
		Gid:     f.GID,
		Uname:   f.Owner,
		Gname:   f.Group,
	}
	switch {
	case f.IsDir():
		hdr.Typeflag = tar.TypeDir
		return 0, tw.WriteHeader(hdr)
	case f.IsSymlink():
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = f.LinkTarget
		return 0, tw.WriteHeader(hdr)
	}

	file, err := source.Open(f)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	hdr.Typeflag = tar.TypeReg
	hdr.Size = f.Size
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, fmt.Errorf("write header %s: %w", f.Name, err)
	}
	n, err := io.CopyN(tw, file, f.Size)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", f.Name, err)
	}
	return n, nil
}

// Extract implements driver.Driver.
func (a *Archive) Extract(ctx context.Context, destDir fstype.Entry, items []fstype.Entry, progress fstype.ProgressFunc) error {
	if len(items) == 0 {
		return nil
	}
	entries, err := a.Entries(ctx, nil)
	if err != nil {
		return err
	}

	sink := batch.NewFileSink(destDir.Fullname,
		batch.WithOverwrite(a.cfg.Overwrite()),
		batch.WithPreserveMode(a.cfg.PreserveMode()),
		batch.WithPreserveTimes(a.cfg.PreserveTimes()),
	)
	plan, err := driver.PlanExtract(entries, items)
	if err != nil {
		return err
	}
	for _, dir := range plan.Dirs() {
		if err := sink.Mkdir(dir); err != nil {
			return err
		}
	}

	var (
		filesDone int
		bytesDone uint64
	)
	err = a.scan(ctx, func(hdr *tar.Header, r io.Reader) error {
		if hdr.Typeflag != tar.TypeReg {
			if hdr.Typeflag == tar.TypeSymlink {
				a.cfg.Log().Debug("skipped symlink on extract", "name", hdr.Name)
			}
			return nil
		}
		item, ok := plan.File(pathutil.Clean(hdr.Name))
		if !ok {
			return nil
		}
		item.Mode = fs.FileMode(hdr.Mode).Perm() //nolint:gosec // tar modes fit in FileMode
		item.ModTime = hdr.ModTime
		n, err := batch.Write(sink, item, r)
		if err != nil {
			return err
		}
		filesDone++
		bytesDone += uint64(n) //nolint:gosec // n is a non-negative byte count
		progress.Report(fstype.ProgressEvent{
			Stage:      fstype.StageExtracting,
			Path:       pathutil.Fullname(pathutil.Clean(hdr.Name)),
			BytesDone:  bytesDone,
			BytesTotal: plan.Bytes(),
			FilesDone:  filesDone,
			FilesTotal: plan.Files(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	a.cfg.Log().Info("extracted from tarball", "path", a.path, "dest", destDir.Fullname, "files", filesDone)
	return nil
}

// Rename implements driver.Driver.
func (a *Archive) Rename(ctx context.Context, item fstype.Entry, newName string, progress fstype.ProgressFunc) error {
	entries, err := a.Entries(ctx, nil)
	if err != nil {
		return err
	}
	mv, err := driver.PlanRename(entries, item, newName)
	if err != nil {
		return err
	}

	a.cfg.Log().Info("renaming in tarball", "path", a.path, "from", mv.From, "to", mv.To)
	done := 0
	return a.transform(ctx, func(hdr *tar.Header) *tar.Header {
		name := driver.MemberName(hdr.Name, hdr.Typeflag == tar.TypeDir)
		if renamed, ok := mv.Apply(name); ok {
			hdr.Name = renamed
			hdr.Format = tar.FormatUnknown
			done++
			progress.Report(fstype.ProgressEvent{
				Stage:     fstype.StageRenaming,
				Path:      pathutil.Fullname(renamed),
				FilesDone: done,
			})
		}
		if hdr.Typeflag == tar.TypeLink {
			if target, ok := mv.Apply(pathutil.Clean(hdr.Linkname)); ok {
				hdr.Linkname = target
				hdr.Format = tar.FormatUnknown
			}
		}
		return hdr
	}, nil)
}

// Remove implements driver.Driver.
func (a *Archive) Remove(ctx context.Context, items []fstype.Entry, progress fstype.ProgressFunc) error {
	m := driver.NewMatcher(items)
	if m.Empty() {
		return nil
	}

	a.cfg.Log().Info("removing from tarball", "path", a.path, "items", len(items))
	done := 0
	return a.transform(ctx, func(hdr *tar.Header) *tar.Header {
		name := driver.MemberName(hdr.Name, hdr.Typeflag == tar.TypeDir)
		if m.Match(name) {
			done++
			progress.Report(fstype.ProgressEvent{
				Stage:     fstype.StageRemoving,
				Path:      pathutil.Fullname(name),
				FilesDone: done,
			})
			return nil
		}
		// A hard link cannot outlive the member it points at.
		if hdr.Typeflag == tar.TypeLink && m.Match(pathutil.Clean(hdr.Linkname)) {
			a.cfg.Log().Debug("dropped hard link to removed member", "name", hdr.Name, "target", hdr.Linkname)
			return nil
		}
		return hdr
	}, nil)
}
