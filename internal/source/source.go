// Package source collects the files an archive add operation will store.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
	"github.com/meigma/arcfs/internal/platform"
)

// File is one member to be written into an archive.
type File struct {
	// Name is the cleaned physical archive name. Directories end with "/".
	Name string

	// Path is the host path the content comes from.
	// Empty for directory markers created without a disk source.
	Path string

	// Mode holds the type and permission bits.
	Mode fs.FileMode

	// Size is the content size for regular files.
	Size int64

	// ModTime is the modification time to record.
	ModTime time.Time

	// UID, GID, Owner and Group describe ownership.
	UID   int
	GID   int
	Owner string
	Group string

	// LinkTarget is set for symbolic links.
	LinkTarget string

	info fs.FileInfo
}

// IsDir reports whether f is a directory member.
func (f *File) IsDir() bool {
	return f.Mode.IsDir()
}

// IsSymlink reports whether f is a symbolic link member.
func (f *File) IsSymlink() bool {
	return f.Mode&fs.ModeSymlink != 0
}

// Markers builds directory markers for archive-side entries (make directory).
// Each item's fullname names the directory to create.
func Markers(items []fstype.Entry, now time.Time) ([]File, error) {
	files := make([]File, 0, len(items))
	for _, item := range items {
		name := pathutil.Clean(pathutil.Orgname(item.Fullname))
		if name == "" {
			return nil, &fs.PathError{Op: "mkdir", Path: item.Fullname, Err: fs.ErrInvalid}
		}
		if !pathutil.IsDirName(name) {
			name += pathutil.Sep
		}
		mtime := item.ModTime
		if mtime.IsZero() {
			mtime = now
		}
		files = append(files, File{
			Name:    name,
			Mode:    fs.ModeDir | 0o755,
			ModTime: mtime,
			UID:     item.UID,
			GID:     item.GID,
			Owner:   item.Owner,
			Group:   item.Group,
		})
	}
	return files, nil
}

// Collect walks the disk entries in items and returns archive members for
// them and everything below them. Each member is named
// destDir + path relative to baseDir. Symbolic links are recorded, not
// followed; sockets, devices and pipes are skipped.
func Collect(ctx context.Context, items []fstype.Entry, baseDir, destDir fstype.Entry) ([]File, error) {
	prefix := pathutil.Clean(pathutil.Orgname(destDir.Fullname))
	if prefix != "" && !pathutil.IsDirName(prefix) {
		prefix += pathutil.Sep
	}

	var files []File
	seen := make(map[string]bool)
	for _, item := range items {
		if item.Backend != fstype.BackendDisk {
			return nil, fmt.Errorf("%w: source %s is not on disk", fstype.ErrUnsupportedOperation, item.Fullname)
		}
		rel, err := filepath.Rel(baseDir.Fullname, item.Fullname)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, &fs.PathError{Op: "add", Path: item.Fullname, Err: fs.ErrInvalid}
		}

		err = filepath.WalkDir(item.Fullname, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			f, ok, err := newFile(p, baseDir.Fullname, prefix)
			if err != nil || !ok {
				return err
			}
			if !seen[f.Name] {
				seen[f.Name] = true
				files = append(files, f)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

func newFile(p, base, prefix string) (File, bool, error) {
	info, err := os.Lstat(p)
	if err != nil {
		return File{}, false, err
	}
	mode := info.Mode()
	if !mode.IsRegular() && !mode.IsDir() && mode&fs.ModeSymlink == 0 {
		return File{}, false, nil
	}

	rel, err := filepath.Rel(base, p)
	if err != nil {
		return File{}, false, err
	}
	name := pathutil.Clean(prefix + filepath.ToSlash(rel))
	if name == "" {
		return File{}, false, &fs.PathError{Op: "add", Path: p, Err: fs.ErrInvalid}
	}
	if mode.IsDir() {
		name += pathutil.Sep
	}

	uid, gid := platform.FileOwner(info)
	owner, group := platform.OwnerNames(uid, gid)
	f := File{
		Name:    name,
		Path:    p,
		Mode:    mode,
		ModTime: info.ModTime(),
		UID:     int(uid),
		GID:     int(gid),
		Owner:   owner,
		Group:   group,
		info:    info,
	}
	if mode.IsRegular() {
		f.Size = info.Size()
	}
	if mode&fs.ModeSymlink != 0 {
		target, err := os.Readlink(p)
		if err != nil {
			return File{}, false, err
		}
		f.LinkTarget = target
	}
	return f, true, nil
}

// Open opens the content of a regular file member without following
// symlinks, and verifies the file was not swapped since it was collected.
func Open(f *File) (*os.File, error) {
	if !f.Mode.IsRegular() {
		return nil, &fs.PathError{Op: "open", Path: f.Path, Err: errors.New("not a regular file")}
	}
	root, err := os.OpenRoot(filepath.Dir(f.Path))
	if err != nil {
		return nil, err
	}
	defer root.Close()

	file, err := platform.OpenFileNoFollow(root, filepath.Base(f.Path))
	if err != nil {
		return nil, err
	}
	finfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if f.info != nil && !os.SameFile(f.info, finfo) {
		file.Close()
		return nil, fmt.Errorf("file changed while adding to archive: %s", f.Path)
	}
	f.Size = finfo.Size()
	return file, nil
}
