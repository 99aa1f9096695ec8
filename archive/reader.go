// Package archive presents the contents of a compressed archive as a
// browsable, mutable filesystem.
//
// A [Reader] binds to one archive file through the first accepting format
// driver and keeps the archive's entries as a flat index sorted by fullname.
// Hierarchy is reconstructed from the flat namespace on demand. Every
// successful mutation rewrites the archive through the driver and then
// re-enumerates it, so the index always reflects the file on disk; a failed
// mutation leaves the index as it was.
//
// All methods serialize on a per-reader mutex.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/meigma/arcfs/cache"
	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
)

// Reader is an archive-backed filesystem session.
type Reader struct {
	mu sync.Mutex

	path    string
	drv     driver.Driver
	entries []fstype.Entry
	cwd     fstype.Entry

	formats    []driver.Format
	driverOpts []driver.Option
	cache      cache.Cache
	snapshots  *cache.Snapshots
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an unopened Reader.
func New(opts ...Option) *Reader {
	r := &Reader{
		formats: DefaultFormats(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache != nil {
		r.snapshots = cache.NewSnapshots(r.cache, cache.WithLogger(r.logger))
	}
	return r
}

// OpenFile creates a Reader and opens the archive at path.
// It returns ErrUnsupportedFormat when no format accepts the file.
func OpenFile(ctx context.Context, path string, opts ...Option) (*Reader, error) {
	r := New(opts...)
	ok, err := r.Open(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", fstype.ErrUnsupportedFormat, path)
	}
	return r, nil
}

func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Open binds the reader to the archive at path and loads its index.
//
// It returns false with a nil error when no format accepts the file, so the
// caller can fall back to another backend. Enumeration failures are
// returned as errors. On success the current directory is the root.
// Opening again rebinds the reader, reselecting the driver.
func (r *Reader) Open(ctx context.Context, path string, progress fstype.ProgressFunc) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	opts := append([]driver.Option{driver.WithLogger(r.logger), driver.WithClock(r.now)}, r.driverOpts...)
	drv, err := driver.Select(abs, r.formats, opts...)
	if errors.Is(err, fstype.ErrUnsupportedFormat) {
		r.log().Debug("no format accepts file", "path", abs)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	entries, err := r.enumerate(ctx, drv, abs, progress)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", abs, err)
	}

	r.path = abs
	r.drv = drv
	r.entries = entries
	r.cwd = r.rootDir()
	r.log().Info("archive opened", "path", abs, "type", drv.TypeName(), "entries", len(entries))
	return true, nil
}

func (r *Reader) enumerate(ctx context.Context, drv driver.Driver, path string, progress fstype.ProgressFunc) ([]fstype.Entry, error) {
	if r.snapshots == nil {
		return drv.Entries(ctx, progress)
	}
	return r.snapshots.Load(ctx, path, func(ctx context.Context) ([]fstype.Entry, error) {
		return drv.Entries(ctx, progress)
	})
}

// resync replaces the index with a fresh enumeration. Unlike Open, which
// always starts at the root, it keeps the current directory if it still
// exists and falls back to the root otherwise. On failure the index is left
// untouched.
func (r *Reader) resync(ctx context.Context, progress fstype.ProgressFunc) error {
	entries, err := r.enumerate(ctx, r.drv, r.path, progress)
	if err != nil {
		return fmt.Errorf("resync %s: %w", r.path, err)
	}
	r.entries = entries
	if !r.cwd.IsRoot() {
		if _, ok := r.lookup(r.cwd.Fullname); !ok {
			r.log().Debug("current directory vanished, returning to root", "dir", r.cwd.Fullname)
			r.cwd = r.rootDir()
		}
	}
	r.log().Debug("archive resynced", "path", r.path, "entries", len(entries))
	return nil
}

func (r *Reader) requireOpen() error {
	if r.drv == nil {
		return fstype.ErrNotOpen
	}
	return nil
}

// rootDir builds the synthetic root. It is never stored in the index.
func (r *Reader) rootDir() fstype.Entry {
	now := r.now()
	return fstype.Entry{
		Fullname:   pathutil.Sep,
		Name:       pathutil.Sep,
		ModTime:    now,
		AccessTime: now,
		ChangeTime: now,
		Attr:       fstype.DefaultDirAttr,
		Dir:        true,
		Backend:    fstype.BackendArchive,
		Root:       r.path,
	}
}

func (r *Reader) lookup(fullname string) (fstype.Entry, bool) {
	return driver.Lookup(r.entries, fullname)
}

// absolute resolves p against the current directory unless it is rooted.
func (r *Reader) absolute(p string) string {
	if strings.HasPrefix(p, pathutil.Sep) {
		return p
	}
	return r.cwd.Fullname + p
}

// ResolvePath returns the entry for p.
//
// "." is the current directory, ".." its parent (the root at the top, named
// ".."), and "/" the root. Other paths are matched exactly against the
// index, relative ones against the current directory; a directory may be
// named without its trailing slash. An empty path fails with fs.ErrInvalid
// and a missing one with fs.ErrNotExist.
func (r *Reader) ResolvePath(p string) (fstype.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen(); err != nil {
		return fstype.Entry{}, err
	}
	return r.resolve(p)
}

func (r *Reader) resolve(p string) (fstype.Entry, error) {
	switch p {
	case "":
		return fstype.Entry{}, &fs.PathError{Op: "resolve", Path: p, Err: fs.ErrInvalid}
	case ".":
		return r.cwd, nil
	case "..":
		parent := r.rootDir()
		if dir := pathutil.Dir(r.cwd.Fullname); dir != pathutil.Sep {
			e, ok := r.lookup(dir)
			if !ok {
				return fstype.Entry{}, &fs.PathError{Op: "resolve", Path: dir, Err: fs.ErrNotExist}
			}
			parent = e
		}
		parent.Name = ".."
		return parent, nil
	case pathutil.Sep:
		return r.rootDir(), nil
	}

	full := r.absolute(p)
	if e, ok := r.lookup(full); ok {
		return e, nil
	}
	if !pathutil.IsDirName(full) {
		if e, ok := r.lookup(full + pathutil.Sep); ok {
			return e, nil
		}
	}
	return fstype.Entry{}, &fs.PathError{Op: "resolve", Path: p, Err: fs.ErrNotExist}
}

// List returns the direct children of dir and makes dir the current
// directory. Entries from another backend list as empty and leave the
// current directory unchanged. A directory missing from the index fails
// with fs.ErrNotExist.
func (r *Reader) List(dir fstype.Entry) ([]fstype.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen(); err != nil {
		return nil, err
	}
	if dir.Backend != fstype.BackendArchive || !r.owns(dir) {
		return []fstype.Entry{}, nil
	}

	prefix := dir.Fullname
	if !pathutil.IsDirName(prefix) {
		prefix += pathutil.Sep
	}
	cwd := r.rootDir()
	if prefix != pathutil.Sep {
		e, ok := r.lookup(prefix)
		if !ok || !e.Dir {
			return nil, &fs.PathError{Op: "list", Path: dir.Fullname, Err: fs.ErrNotExist}
		}
		cwd = e
	}

	children := []fstype.Entry{}
	for _, e := range r.entries {
		if pathutil.IsChild(e.Fullname, prefix) {
			children = append(children, e)
		}
	}
	r.cwd = cwd
	return children, nil
}

// Exists reports whether an entry with exactly this fullname is in the index.
func (r *Reader) Exists(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.lookup(p)
	return ok
}

// ExistsEntry reports whether e's fullname is in the index.
func (r *Reader) ExistsEntry(e fstype.Entry) bool {
	return r.Exists(e.Fullname)
}

// MakeDir creates a directory. Relative paths are resolved against the
// current directory. Creating the root or an existing name fails.
func (r *Reader) MakeDir(ctx context.Context, p string, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen(); err != nil {
		return err
	}
	if p == "" {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrInvalid}
	}
	return r.makeDir(ctx, r.absolute(p), progress)
}

// MakeDirEntry creates the directory named by e's fullname.
func (r *Reader) MakeDirEntry(ctx context.Context, e fstype.Entry, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen(); err != nil {
		return err
	}
	if !strings.HasPrefix(e.Fullname, pathutil.Sep) {
		return &fs.PathError{Op: "mkdir", Path: e.Fullname, Err: fs.ErrInvalid}
	}
	return r.makeDir(ctx, e.Fullname, progress)
}

func (r *Reader) makeDir(ctx context.Context, full string, progress fstype.ProgressFunc) error {
	full = pathutil.Rooted(full)
	if full == pathutil.Sep {
		return &fs.PathError{Op: "mkdir", Path: full, Err: fs.ErrInvalid}
	}
	if _, ok := r.lookup(full); ok {
		return &fs.PathError{Op: "mkdir", Path: full, Err: fs.ErrExist}
	}
	if _, ok := r.lookup(strings.TrimSuffix(full, pathutil.Sep)); ok {
		return &fs.PathError{Op: "mkdir", Path: full, Err: fs.ErrExist}
	}

	now := r.now()
	marker := fstype.Entry{
		Fullname:   full,
		Orgname:    pathutil.Orgname(full),
		Name:       pathutil.Base(full),
		ModTime:    now,
		AccessTime: now,
		ChangeTime: now,
		Attr:       fstype.DefaultDirAttr,
		Dir:        true,
		Backend:    fstype.BackendArchive,
		Root:       r.path,
	}

	r.log().Info("creating directory", "path", r.path, "dir", full)
	if err := r.drv.Add(ctx, []fstype.Entry{marker}, nil, r.cwd, progress); err != nil {
		return fmt.Errorf("mkdir %s: %w", full, err)
	}
	return r.resync(ctx, progress)
}

// Rename renames e to newName, a base name within e's directory or an
// absolute archive path. Directories move with their contents.
func (r *Reader) Rename(ctx context.Context, e fstype.Entry, newName string, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen(); err != nil {
		return err
	}
	if err := r.drv.Rename(ctx, e, newName, progress); err != nil {
		return fmt.Errorf("rename %s: %w", e.Fullname, err)
	}
	return r.resync(ctx, progress)
}

// Copy moves data across the archive boundary.
//
// Archive sources copied to a disk destDir are extracted, leaving the index
// alone. Disk sources copied to an archive destDir are added below it at
// their path relative to baseDir, and the index is resynced. Every other
// combination, including empty or mixed sources and entries of another
// archive, fails with ErrUnsupportedOperation without touching either side.
func (r *Reader) Copy(ctx context.Context, sources []fstype.Entry, baseDir *fstype.Entry, destDir fstype.Entry, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen(); err != nil {
		return err
	}

	backend, err := r.sourceBackend(sources)
	if err != nil {
		return err
	}
	switch {
	case backend == fstype.BackendArchive && destDir.Backend == fstype.BackendDisk:
		r.log().Info("extracting", "path", r.path, "items", len(sources), "dest", destDir.Fullname)
		if err := r.drv.Extract(ctx, destDir, sources, progress); err != nil {
			return fmt.Errorf("extract to %s: %w", destDir.Fullname, err)
		}
		return nil

	case backend == fstype.BackendDisk && destDir.Backend == fstype.BackendArchive:
		if !r.owns(destDir) {
			return fmt.Errorf("%w: destination %s belongs to %s", fstype.ErrUnsupportedOperation, destDir.Fullname, destDir.Root)
		}
		if baseDir == nil {
			return fmt.Errorf("%w: adding disk entries needs a base directory", fstype.ErrUnsupportedOperation)
		}
		r.log().Info("adding", "path", r.path, "items", len(sources), "dest", destDir.Fullname)
		if err := r.drv.Add(ctx, sources, baseDir, destDir, progress); err != nil {
			return fmt.Errorf("add to %s: %w", destDir.Fullname, err)
		}
		return r.resync(ctx, progress)
	}
	return fmt.Errorf("%w: copy from %s to %s", fstype.ErrUnsupportedOperation, backend, destDir.Backend)
}

// sourceBackend returns the backend shared by all sources. Archive sources
// must belong to this archive.
func (r *Reader) sourceBackend(sources []fstype.Entry) (fstype.Backend, error) {
	if len(sources) == 0 {
		return "", fmt.Errorf("%w: no sources", fstype.ErrUnsupportedOperation)
	}
	backend := sources[0].Backend
	for _, s := range sources {
		if s.Backend != backend {
			return "", fmt.Errorf("%w: mixed source backends", fstype.ErrUnsupportedOperation)
		}
		if s.Backend == fstype.BackendArchive && !r.owns(s) {
			return "", fmt.Errorf("%w: %s belongs to %s", fstype.ErrUnsupportedOperation, s.Fullname, s.Root)
		}
	}
	return backend, nil
}

// owns reports whether an archive entry belongs to this archive.
// Entries without a recorded root are assumed to.
func (r *Reader) owns(e fstype.Entry) bool {
	return e.Root == "" || e.Root == r.path
}

// Remove deletes sources and everything below directory sources.
// An empty slice is a no-op.
func (r *Reader) Remove(ctx context.Context, sources []fstype.Entry, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen(); err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}
	for _, s := range sources {
		if s.Backend != fstype.BackendArchive || !r.owns(s) {
			return fmt.Errorf("%w: remove %s", fstype.ErrUnsupportedOperation, s.Fullname)
		}
		if s.IsRoot() {
			return &fs.PathError{Op: "remove", Path: s.Fullname, Err: fs.ErrInvalid}
		}
	}

	r.log().Info("removing", "path", r.path, "items", len(sources))
	if err := r.drv.Remove(ctx, sources, progress); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return r.resync(ctx, progress)
}

// CurrentDir returns the directory last passed to List.
func (r *Reader) CurrentDir() fstype.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cwd
}

// ChangeDir always fails: the current directory only moves through List.
func (r *Reader) ChangeDir(fstype.Entry) error {
	return fmt.Errorf("%w: change directory inside an archive", fstype.ErrUnsupportedOperation)
}

// MountPoints returns nil: archives have no mounts.
func (r *Reader) MountPoints() ([]fstype.MountPoint, error) {
	return nil, nil
}

// HomeDir returns the root.
func (r *Reader) HomeDir() fstype.Entry {
	return r.RootDir()
}

// RootDir returns a freshly built synthetic root.
func (r *Reader) RootDir() fstype.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rootDir()
}

// Sep returns the archive path separator, always "/".
func (r *Reader) Sep() string {
	return pathutil.Sep
}

// Entries returns a copy of the index.
func (r *Reader) Entries() []fstype.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// ArchivePath returns the absolute path of the bound archive.
func (r *Reader) ArchivePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// TypeName returns the bound driver's type name, or "" before Open.
func (r *Reader) TypeName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drv == nil {
		return ""
	}
	return r.drv.TypeName()
}
