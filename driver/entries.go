package driver

import (
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
)

// Finalize turns the raw members of an archive into a navigable index.
//
// Later members replace earlier ones with the same fullname, matching how
// archive tools resolve duplicates. Every proper ancestor directory missing
// from the archive is synthesized with DefaultDirAttr, size 0 and mtime.
// The result is sorted by fullname.
func Finalize(members []fstype.Entry, root string, mtime time.Time) []fstype.Entry {
	byName := make(map[string]int, len(members))
	out := make([]fstype.Entry, 0, len(members))
	for _, m := range members {
		if i, ok := byName[m.Fullname]; ok {
			out[i] = m
			continue
		}
		byName[m.Fullname] = len(out)
		out = append(out, m)
	}

	for _, m := range members {
		for _, parent := range pathutil.Parents(m.Orgname) {
			full := pathutil.Fullname(parent)
			if _, ok := byName[full]; ok {
				continue
			}
			byName[full] = len(out)
			out = append(out, SyntheticDir(parent, root, mtime))
		}
	}

	slices.SortFunc(out, func(a, b fstype.Entry) int { return strings.Compare(a.Fullname, b.Fullname) })
	return out
}

// SyntheticDir builds a directory entry for a physical name the archive does
// not store explicitly.
func SyntheticDir(name, root string, mtime time.Time) fstype.Entry {
	return fstype.Entry{
		Fullname:   pathutil.Fullname(name),
		Orgname:    name,
		Name:       pathutil.Base(name),
		ModTime:    mtime,
		AccessTime: mtime,
		ChangeTime: mtime,
		Attr:       fstype.DefaultDirAttr,
		Dir:        true,
		Backend:    fstype.BackendArchive,
		Root:       root,
	}
}

// Lookup finds the entry with the given fullname.
func Lookup(entries []fstype.Entry, fullname string) (fstype.Entry, bool) {
	i, ok := slices.BinarySearchFunc(entries, fullname, func(e fstype.Entry, name string) int {
		return strings.Compare(e.Fullname, name)
	})
	if !ok {
		return fstype.Entry{}, false
	}
	return entries[i], true
}

// Attr renders mode as an ls-style attribute string such as "drwxr-xr-x".
func Attr(mode fs.FileMode) string {
	var b [10]byte
	switch {
	case mode.IsDir():
		b[0] = 'd'
	case mode&fs.ModeSymlink != 0:
		b[0] = 'l'
	case mode&fs.ModeNamedPipe != 0:
		b[0] = 'p'
	case mode&fs.ModeSocket != 0:
		b[0] = 's'
	case mode&fs.ModeCharDevice != 0:
		b[0] = 'c'
	case mode&fs.ModeDevice != 0:
		b[0] = 'b'
	default:
		b[0] = '-'
	}
	const rwx = "rwxrwxrwx"
	perm := mode.Perm()
	for i := range 9 {
		if perm&(1<<uint(8-i)) != 0 {
			b[i+1] = rwx[i]
		} else {
			b[i+1] = '-'
		}
	}
	if mode&fs.ModeSetuid != 0 {
		b[3] = special(b[3], 's')
	}
	if mode&fs.ModeSetgid != 0 {
		b[6] = special(b[6], 's')
	}
	if mode&fs.ModeSticky != 0 {
		b[9] = special(b[9], 't')
	}
	return string(b[:])
}

func special(c, letter byte) byte {
	if c == '-' {
		return letter - 'a' + 'A'
	}
	return letter
}
