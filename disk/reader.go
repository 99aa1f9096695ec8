// Package disk browses and mutates the local filesystem through the same
// contract the archive reader implements, so callers can move between the
// two with one set of operations.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/platform"
)

// Reader is a filesystem session over host paths.
type Reader struct {
	mu  sync.Mutex
	cwd fstype.Entry

	home      string
	overwrite bool
	logger    *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger for filesystem operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithHome sets the home directory. Defaults to the user's home directory,
// or the process working directory when that is unknown.
func WithHome(dir string) Option {
	return func(r *Reader) {
		r.home = dir
	}
}

// WithOverwrite controls whether Copy replaces existing files.
// Defaults to true.
func WithOverwrite(overwrite bool) Option {
	return func(r *Reader) {
		r.overwrite = overwrite
	}
}

// New creates a Reader whose current directory is the home directory.
func New(opts ...Option) (*Reader, error) {
	r := &Reader{overwrite: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			if home, err = os.Getwd(); err != nil {
				return nil, fmt.Errorf("determine home directory: %w", err)
			}
		}
		r.home = home
	}
	home, err := filepath.Abs(r.home)
	if err != nil {
		return nil, err
	}
	r.home = home

	cwd, err := stat(home)
	if err != nil {
		return nil, fmt.Errorf("home directory: %w", err)
	}
	if !cwd.Dir {
		return nil, &fs.PathError{Op: "home", Path: home, Err: fs.ErrInvalid}
	}
	r.cwd = cwd
	return r, nil
}

func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// stat builds the entry for a host path without following a final symlink.
func stat(p string) (fstype.Entry, error) {
	info, err := os.Lstat(p)
	if err != nil {
		return fstype.Entry{}, err
	}
	return entry(p, info), nil
}

func entry(p string, info fs.FileInfo) fstype.Entry {
	uid, gid := platform.FileOwner(info)
	owner, group := platform.OwnerNames(uid, gid)
	atime, ctime := platform.FileTimes(info)

	e := fstype.Entry{
		Fullname:   p,
		Name:       filepath.Base(p),
		Owner:      owner,
		Group:      group,
		UID:        int(uid),
		GID:        int(gid),
		ModTime:    info.ModTime(),
		AccessTime: atime,
		ChangeTime: ctime,
		Attr:       driver.Attr(info.Mode()),
		Dir:        info.IsDir(),
		Backend:    fstype.BackendDisk,
	}
	if !e.Dir {
		e.Size = info.Size()
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		if target, err := os.Readlink(p); err == nil {
			e.LinkTarget = target
		}
	}
	return e
}

// absolute resolves p against the current directory. "~" and "~/..."
// expand to the home directory.
func (r *Reader) absolute(p string) string {
	switch {
	case p == "~":
		return r.home
	case strings.HasPrefix(p, "~"+string(filepath.Separator)) || strings.HasPrefix(p, "~/"):
		return filepath.Join(r.home, p[2:])
	case filepath.IsAbs(p):
		return filepath.Clean(p)
	}
	return filepath.Join(r.cwd.Fullname, p)
}

// ResolvePath returns the entry for p. "." is the current directory and
// ".." its parent, named "..". Relative paths resolve against the current
// directory. A missing path fails with fs.ErrNotExist.
func (r *Reader) ResolvePath(p string) (fstype.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch p {
	case "":
		return fstype.Entry{}, &fs.PathError{Op: "resolve", Path: p, Err: fs.ErrInvalid}
	case ".":
		return r.cwd, nil
	case "..":
		parent, err := stat(filepath.Dir(r.cwd.Fullname))
		if err != nil {
			return fstype.Entry{}, err
		}
		parent.Name = ".."
		return parent, nil
	}
	return stat(r.absolute(p))
}

// List returns the entries of dir, sorted by name, and makes dir the
// current directory. Entries from another backend list as empty.
func (r *Reader) List(dir fstype.Entry) ([]fstype.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dir.Backend != fstype.BackendDisk {
		return []fstype.Entry{}, nil
	}

	self, err := stat(dir.Fullname)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(dir.Fullname)
	if err != nil {
		return nil, err
	}
	children := make([]fstype.Entry, 0, len(des))
	for _, de := range des {
		info, err := de.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		children = append(children, entry(filepath.Join(dir.Fullname, de.Name()), info))
	}
	r.cwd = self
	return children, nil
}

// Exists reports whether p names an existing path. Relative paths resolve
// against the current directory.
func (r *Reader) Exists(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == "" {
		return false
	}
	_, err := os.Lstat(r.absolute(p))
	return err == nil
}

// ExistsEntry reports whether e's path exists.
func (r *Reader) ExistsEntry(e fstype.Entry) bool {
	return r.Exists(e.Fullname)
}

// MakeDir creates a directory and any missing parents. An existing path
// fails with fs.ErrExist.
func (r *Reader) MakeDir(ctx context.Context, p string, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == "" {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrInvalid}
	}
	return r.makeDir(ctx, r.absolute(p))
}

// MakeDirEntry creates the directory named by e.
func (r *Reader) MakeDirEntry(ctx context.Context, e fstype.Entry, progress fstype.ProgressFunc) error {
	return r.MakeDir(ctx, e.Fullname, progress)
}

func (r *Reader) makeDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Lstat(p); err == nil {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
	}
	r.log().Info("creating directory", "dir", p)
	return os.MkdirAll(p, 0o755)
}

// Rename renames e to newName, a base name within e's directory or an
// absolute path. An existing target fails with fs.ErrExist.
func (r *Reader) Rename(ctx context.Context, e fstype.Entry, newName string, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Backend != fstype.BackendDisk {
		return fmt.Errorf("%w: rename %s", fstype.ErrUnsupportedOperation, e.Fullname)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var to string
	switch {
	case filepath.IsAbs(newName):
		to = filepath.Clean(newName)
	case newName == "" || newName == "." || newName == ".." || strings.ContainsRune(newName, filepath.Separator) || strings.Contains(newName, "/"):
		return &fs.PathError{Op: "rename", Path: newName, Err: fs.ErrInvalid}
	default:
		to = filepath.Join(filepath.Dir(e.Fullname), newName)
	}
	if _, err := os.Lstat(to); err == nil {
		return &fs.PathError{Op: "rename", Path: to, Err: fs.ErrExist}
	}

	r.log().Info("renaming", "from", e.Fullname, "to", to)
	if err := os.Rename(e.Fullname, to); err != nil {
		return err
	}
	progress.Report(fstype.ProgressEvent{Stage: fstype.StageRenaming, Path: to, FilesDone: 1, FilesTotal: 1})
	if r.cwd.Fullname == e.Fullname || strings.HasPrefix(r.cwd.Fullname, e.Fullname+string(filepath.Separator)) {
		if moved, err := stat(to + strings.TrimPrefix(r.cwd.Fullname, e.Fullname)); err == nil {
			r.cwd = moved
		}
	}
	return nil
}

// Remove deletes sources, directories with everything below them.
// An empty slice is a no-op.
func (r *Reader) Remove(ctx context.Context, sources []fstype.Entry, progress fstype.ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range sources {
		if s.Backend != fstype.BackendDisk {
			return fmt.Errorf("%w: remove %s", fstype.ErrUnsupportedOperation, s.Fullname)
		}
		if !filepath.IsAbs(s.Fullname) || filepath.Dir(s.Fullname) == s.Fullname {
			return &fs.PathError{Op: "remove", Path: s.Fullname, Err: fs.ErrInvalid}
		}
	}
	for i, s := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.log().Info("removing", "path", s.Fullname)
		if err := os.RemoveAll(s.Fullname); err != nil {
			return err
		}
		progress.Report(fstype.ProgressEvent{
			Stage:      fstype.StageRemoving,
			Path:       s.Fullname,
			FilesDone:  i + 1,
			FilesTotal: len(sources),
		})
	}
	if _, err := os.Lstat(r.cwd.Fullname); err != nil {
		r.cwd = r.nearest(r.cwd.Fullname)
	}
	return nil
}

// nearest returns the closest existing ancestor of p.
func (r *Reader) nearest(p string) fstype.Entry {
	for {
		parent := filepath.Dir(p)
		if e, err := stat(parent); err == nil {
			return e
		}
		if parent == p {
			return r.homeDir()
		}
		p = parent
	}
}

// CurrentDir returns the current directory.
func (r *Reader) CurrentDir() fstype.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cwd
}

// ChangeDir makes dir the current directory.
func (r *Reader) ChangeDir(dir fstype.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dir.Backend != fstype.BackendDisk {
		return fmt.Errorf("%w: change to %s directory", fstype.ErrUnsupportedOperation, dir.Backend)
	}
	e, err := stat(dir.Fullname)
	if err != nil {
		return err
	}
	if !e.Dir {
		return &fs.PathError{Op: "chdir", Path: dir.Fullname, Err: errors.New("not a directory")}
	}
	r.cwd = e
	return nil
}

// HomeDir returns the home directory.
func (r *Reader) HomeDir() fstype.Entry {
	return r.homeDir()
}

func (r *Reader) homeDir() fstype.Entry {
	if e, err := stat(r.home); err == nil {
		return e
	}
	return fstype.Entry{Fullname: r.home, Name: filepath.Base(r.home), Dir: true, Attr: fstype.DefaultDirAttr, Backend: fstype.BackendDisk}
}

// RootDir returns the filesystem root of the home directory's volume.
func (r *Reader) RootDir() fstype.Entry {
	root := filepath.VolumeName(r.home) + string(filepath.Separator)
	if e, err := stat(root); err == nil {
		return e
	}
	return fstype.Entry{Fullname: root, Name: root, Dir: true, Attr: fstype.DefaultDirAttr, Backend: fstype.BackendDisk}
}

// Sep returns the host path separator.
func (r *Reader) Sep() string {
	return string(filepath.Separator)
}
