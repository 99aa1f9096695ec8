// Package zip implements the zip archive format.
//
// Zip has a central directory, so enumeration and extraction use random
// access and extraction fans out across workers. Rewrites copy untouched
// members without recompressing them.
package zip

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/internal/batch"
	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
	"github.com/meigma/arcfs/internal/rewrite"
	"github.com/meigma/arcfs/internal/source"
)

// Name is the format identifier.
const Name = "zip"

// maxLinkTarget bounds how much of a symlink member is read as its target.
const maxLinkTarget = 4096

var signatures = [][]byte{
	[]byte("PK\x03\x04"),
	[]byte("PK\x05\x06"),
	[]byte("PK\x07\x08"),
}

// Format recognizes ".zip" and ".jar" files with a zip signature.
type Format struct{}

// New returns the zip format.
func New() Format {
	return Format{}
}

// Name implements driver.Format.
func (Format) Name() string {
	return Name
}

// Accept implements driver.Format.
func (Format) Accept(path string) bool {
	return driver.HasExt(path, ".zip", ".jar") && driver.Sniff(path, signatures...)
}

// Bind implements driver.Format.
func (Format) Bind(path string, opts ...driver.Option) driver.Driver {
	return &Archive{path: path, cfg: driver.NewConfig(opts...)}
}

// Archive is a driver.Driver over one zip file.
type Archive struct {
	path string
	cfg  driver.Config
}

// TypeName implements driver.Driver.
func (a *Archive) TypeName() string {
	return Name
}

// open opens the archive for reading. A zero-length file yields a nil
// reader and no error: it is an empty archive.
func (a *Archive) open() (*zip.ReadCloser, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}
	zr, err := zip.OpenReader(a.path)
	if err != nil {
		return nil, fmt.Errorf("zip: open %s: %w", a.path, err)
	}
	return zr, nil
}

// Entries implements driver.Driver.
func (a *Archive) Entries(ctx context.Context, progress fstype.ProgressFunc) ([]fstype.Entry, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return nil, err
	}
	zr, err := a.open()
	if err != nil {
		return nil, err
	}

	progress.Report(fstype.ProgressEvent{Stage: fstype.StageEnumerating})
	var members []fstype.Entry
	if zr != nil {
		defer zr.Close()
		for _, f := range zr.File {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			entry, ok := fileEntry(f, a.path)
			if !ok {
				continue
			}
			members = append(members, entry)
			progress.Report(fstype.ProgressEvent{
				Stage:      fstype.StageEnumerating,
				Path:       entry.Fullname,
				FilesDone:  len(members),
				FilesTotal: len(zr.File),
			})
		}
	}

	entries := driver.Finalize(members, a.path, info.ModTime())
	a.cfg.Log().Debug("zip enumerated", "path", a.path, "members", len(members), "entries", len(entries))
	return entries, nil
}

func fileEntry(f *zip.File, root string) (fstype.Entry, bool) {
	name := pathutil.Clean(f.Name)
	if name == "" {
		return fstype.Entry{}, false
	}
	mode := f.Mode()
	dir := mode.IsDir() || pathutil.IsDirName(name)
	if dir && !pathutil.IsDirName(name) {
		name += pathutil.Sep
	}
	if dir {
		mode |= fs.ModeDir
	}

	entry := fstype.Entry{
		Fullname:   pathutil.Fullname(name),
		Orgname:    name,
		Name:       pathutil.Base(name),
		ModTime:    f.Modified,
		AccessTime: f.Modified,
		ChangeTime: f.Modified,
		Attr:       driver.Attr(mode),
		Dir:        dir,
		Backend:    fstype.BackendArchive,
		Root:       root,
	}
	if !dir {
		entry.Size = int64(f.UncompressedSize64) //nolint:gosec // sizes beyond int64 are not representable on disk
	}
	if mode&fs.ModeSymlink != 0 {
		entry.LinkTarget = readLink(f)
	}
	return entry, true
}

func readLink(f *zip.File) string {
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()
	target, err := io.ReadAll(io.LimitReader(rc, maxLinkTarget))
	if err != nil {
		return ""
	}
	return string(target)
}

// transform rewrites the archive. rename returns the new name of an existing
// member, or "" to drop it. Members keeping their name are copied as is;
// renamed members are copied raw under the new header. appendFn may write
// new members after the existing ones.
func (a *Archive) transform(ctx context.Context, rename func(f *zip.File) string, appendFn func(zw *zip.Writer) error) error {
	zr, err := a.open()
	if err != nil {
		return err
	}
	if zr != nil {
		defer zr.Close()
	}

	return rewrite.File(ctx, a.path, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		if level, ok := a.cfg.CompressionLevel(); ok {
			zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
				return flate.NewWriter(out, level)
			})
		}

		if zr != nil {
			if zr.Comment != "" {
				if err := zw.SetComment(zr.Comment); err != nil {
					return err
				}
			}
			for _, f := range zr.File {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := copyMember(zw, f, rename(f)); err != nil {
					return err
				}
			}
		}
		if appendFn != nil {
			if err := appendFn(zw); err != nil {
				return err
			}
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("zip: close: %w", err)
		}
		return nil
	})
}

const zipDataDescriptor = 0x8

func copyMember(zw *zip.Writer, f *zip.File, name string) error {
	switch name {
	case "":
		return nil
	case f.Name:
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("zip: copy %s: %w", f.Name, err)
		}
		return nil
	}

	hdr := f.FileHeader
	hdr.Name = name
	if pathutil.IsDirName(name) {
		// Directory writers emit no data descriptor.
		hdr.Flags &^= zipDataDescriptor
	}
	r, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("zip: open %s: %w", f.Name, err)
	}
	w, err := zw.CreateRaw(&hdr)
	if err != nil {
		return fmt.Errorf("zip: create %s: %w", name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("zip: copy %s: %w", f.Name, err)
	}
	return nil
}

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

	a.cfg.Log().Info("adding to zip", "path", a.path, "members", len(files))
	keep := func(f *zip.File) string {
		if replaced[strings.TrimSuffix(pathutil.Clean(f.Name), pathutil.Sep)] {
			return ""
		}
		return f.Name
	}
	return a.transform(ctx, keep, func(zw *zip.Writer) error {
		var bytesDone uint64
		for i := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := writeSource(zw, &files[i])
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

func writeSource(zw *zip.Writer, f *source.File) (int64, error) {
	hdr := &zip.FileHeader{
		Name:     f.Name,
		Modified: f.ModTime,
		Method:   zip.Deflate,
	}
	hdr.SetMode(f.Mode)

	switch {
	case f.IsDir():
		hdr.Method = zip.Store
		_, err := zw.CreateHeader(hdr)
		return 0, err
	case f.IsSymlink():
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return 0, err
		}
		_, err = io.WriteString(w, f.LinkTarget)
		return 0, err
	}

	file, err := source.Open(f)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, fmt.Errorf("zip: create %s: %w", f.Name, err)
	}
	n, err := io.CopyN(w, file, f.Size)
	if err != nil {
		return n, fmt.Errorf("zip: write %s: %w", f.Name, err)
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
	plan, err := driver.PlanExtract(entries, items)
	if err != nil {
		return err
	}

	sink := batch.NewFileSink(destDir.Fullname,
		batch.WithOverwrite(a.cfg.Overwrite()),
		batch.WithPreserveMode(a.cfg.PreserveMode()),
		batch.WithPreserveTimes(a.cfg.PreserveTimes()),
	)
	for _, dir := range plan.Dirs() {
		if err := sink.Mkdir(dir); err != nil {
			return err
		}
	}

	zr, err := a.open()
	if err != nil || zr == nil {
		return err
	}
	defer zr.Close()

	var (
		mu        sync.Mutex
		filesDone int
		bytesDone uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.ExtractWorkers())
	for _, f := range zr.File {
		name := pathutil.Clean(f.Name)
		item, ok := plan.File(name)
		if !ok {
			if f.Mode()&fs.ModeSymlink != 0 {
				a.cfg.Log().Debug("skipped symlink on extract", "name", f.Name)
			}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("zip: open %s: %w", f.Name, err)
			}
			defer rc.Close()
			n, err := batch.Write(sink, item, rc)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			filesDone++
			bytesDone += uint64(n) //nolint:gosec // n is a non-negative byte count
			progress.Report(fstype.ProgressEvent{
				Stage:      fstype.StageExtracting,
				Path:       pathutil.Fullname(name),
				BytesDone:  bytesDone,
				BytesTotal: plan.Bytes(),
				FilesDone:  filesDone,
				FilesTotal: plan.Files(),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	a.cfg.Log().Info("extracted from zip", "path", a.path, "dest", destDir.Fullname, "files", filesDone)
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

	a.cfg.Log().Info("renaming in zip", "path", a.path, "from", mv.From, "to", mv.To)
	done := 0
	return a.transform(ctx, func(f *zip.File) string {
		renamed, ok := mv.Apply(driver.MemberName(f.Name, f.Mode().IsDir()))
		if !ok {
			return f.Name
		}
		done++
		progress.Report(fstype.ProgressEvent{
			Stage:     fstype.StageRenaming,
			Path:      pathutil.Fullname(renamed),
			FilesDone: done,
		})
		return renamed
	}, nil)
}

// Remove implements driver.Driver.
func (a *Archive) Remove(ctx context.Context, items []fstype.Entry, progress fstype.ProgressFunc) error {
	m := driver.NewMatcher(items)
	if m.Empty() {
		return nil
	}

	a.cfg.Log().Info("removing from zip", "path", a.path, "items", len(items))
	done := 0
	return a.transform(ctx, func(f *zip.File) string {
		clean := driver.MemberName(f.Name, f.Mode().IsDir())
		if !m.Match(clean) {
			return f.Name
		}
		done++
		progress.Report(fstype.ProgressEvent{
			Stage:     fstype.StageRemoving,
			Path:      pathutil.Fullname(clean),
			FilesDone: done,
		})
		return ""
	}, nil)
}

var _ driver.Driver = (*Archive)(nil)
