// Package tarball implements the tar side of the tar-based archive drivers.
//
// A tar stream has no index and no directory objects: every operation is a
// sequential pass over the members, and every mutation streams the members
// into a fresh archive. The compression layer is supplied by a [Codec], so
// the same code serves gzip and zstd tarballs.
package tarball

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
	"github.com/meigma/arcfs/internal/rewrite"
)

// Codec wraps a tar stream in a compression format.
type Codec struct {
	// Name identifies the codec in diagnostics, e.g. "tar.gz".
	Name string

	// NewReader decompresses r.
	NewReader func(r io.Reader) (io.ReadCloser, error)

	// NewWriter compresses into w. level is only meaningful when levelSet is true.
	NewWriter func(w io.Writer, level int, levelSet bool) (io.WriteCloser, error)
}

// Archive is a driver.Driver over one tar file.
type Archive struct {
	path  string
	codec Codec
	cfg   driver.Config
}

var _ driver.Driver = (*Archive)(nil)

// New returns a driver for the tarball at path.
func New(path string, codec Codec, opts ...driver.Option) *Archive {
	return &Archive{path: path, codec: codec, cfg: driver.NewConfig(opts...)}
}

// TypeName implements driver.Driver.
func (a *Archive) TypeName() string {
	return a.codec.Name
}

// Entries implements driver.Driver.
func (a *Archive) Entries(ctx context.Context, progress fstype.ProgressFunc) ([]fstype.Entry, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return nil, err
	}

	var members []fstype.Entry
	progress.Report(fstype.ProgressEvent{Stage: fstype.StageEnumerating})
	err = a.scan(ctx, func(hdr *tar.Header, _ io.Reader) error {
		entry, ok := headerEntry(hdr, a.path)
		if !ok {
			return nil
		}
		members = append(members, entry)
		progress.Report(fstype.ProgressEvent{
			Stage:     fstype.StageEnumerating,
			Path:      entry.Fullname,
			FilesDone: len(members),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := driver.Finalize(members, a.path, info.ModTime())
	a.cfg.Log().Debug("tarball enumerated", "path", a.path, "members", len(members), "entries", len(entries))
	return entries, nil
}

// scan streams every member of the archive through fn.
// A zero-length file is treated as an empty archive.
func (a *Archive) scan(ctx context.Context, fn func(hdr *tar.Header, r io.Reader) error) error {
	f, err := os.Open(a.path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	zr, err := a.codec.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: open stream: %w", a.codec.Name, err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: read member: %w", a.codec.Name, err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// transform rewrites the archive. Each existing member is passed to edit,
// which returns the header to write or nil to drop the member. After the
// existing members, appendFn may write new ones.
func (a *Archive) transform(ctx context.Context, edit func(hdr *tar.Header) *tar.Header, appendFn func(tw *tar.Writer) error) error {
	return rewrite.File(ctx, a.path, func(w io.Writer) error {
		level, levelSet := a.cfg.CompressionLevel()
		zw, err := a.codec.NewWriter(w, level, levelSet)
		if err != nil {
			return fmt.Errorf("%s: create stream: %w", a.codec.Name, err)
		}
		tw := tar.NewWriter(zw)

		err = a.scan(ctx, func(hdr *tar.Header, r io.Reader) error {
			out := edit(hdr)
			if out == nil {
				return nil
			}
			if err := tw.WriteHeader(out); err != nil {
				return fmt.Errorf("write header %s: %w", out.Name, err)
			}
			if _, err := io.Copy(tw, r); err != nil {
				return fmt.Errorf("copy member %s: %w", out.Name, err)
			}
			return nil
		})
		if err == nil && appendFn != nil {
			err = appendFn(tw)
		}
		if err != nil {
			_ = zw.Close() //nolint:errcheck // stream is discarded on error
			return err
		}

		if err := tw.Close(); err != nil {
			_ = zw.Close() //nolint:errcheck // stream is discarded on error
			return fmt.Errorf("close tar: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("%s: close stream: %w", a.codec.Name, err)
		}
		return nil
	})
}

// headerEntry converts a tar header to an index entry.
// Headers that cannot be represented in a rooted index are skipped.
func headerEntry(hdr *tar.Header, root string) (fstype.Entry, bool) {
	switch hdr.Typeflag {
	case tar.TypeXGlobalHeader, tar.TypeXHeader, tar.TypeGNULongName, tar.TypeGNULongLink:
		return fstype.Entry{}, false
	}
	name := pathutil.Clean(hdr.Name)
	if name == "" {
		return fstype.Entry{}, false
	}
	dir := hdr.Typeflag == tar.TypeDir || pathutil.IsDirName(name)
	if dir && !pathutil.IsDirName(name) {
		name += pathutil.Sep
	}

	mode := hdr.FileInfo().Mode()
	size := hdr.Size
	if dir {
		size = 0
	}
	entry := fstype.Entry{
		Fullname:   pathutil.Fullname(name),
		Orgname:    name,
		Name:       pathutil.Base(name),
		Owner:      hdr.Uname,
		Group:      hdr.Gname,
		UID:        hdr.Uid,
		GID:        hdr.Gid,
		ModTime:    hdr.ModTime,
		AccessTime: orTime(hdr.AccessTime, hdr.ModTime),
		ChangeTime: orTime(hdr.ChangeTime, hdr.ModTime),
		Attr:       driver.Attr(mode),
		Size:       size,
		Dir:        dir,
		Backend:    fstype.BackendArchive,
		Root:       root,
	}
	if hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink {
		entry.LinkTarget = hdr.Linkname
	}
	return entry, true
}

func orTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
