package driver

import (
	"io/fs"
	"strings"

	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
)

// Matcher selects physical member names at or below a set of entries.
type Matcher struct {
	prefixes []string
}

// NewMatcher builds a Matcher for items. Directory items match everything
// nested below them; file items match only themselves.
func NewMatcher(items []fstype.Entry) Matcher {
	m := Matcher{prefixes: make([]string, 0, len(items))}
	for _, item := range items {
		name := pathutil.Clean(pathutil.Orgname(item.Fullname))
		if name == "" {
			continue
		}
		m.prefixes = append(m.prefixes, name)
	}
	return m
}

// MemberName returns the cleaned physical name of a member, spelled as a
// directory when dir is set. Writers differ on whether directory members
// carry a trailing slash; the index always does.
func MemberName(name string, dir bool) string {
	name = pathutil.Clean(name)
	if dir && name != "" && !pathutil.IsDirName(name) {
		name += pathutil.Sep
	}
	return name
}

// Match reports whether the member name, normalized by MemberName, is
// selected.
func (m Matcher) Match(name string) bool {
	for _, p := range m.prefixes {
		if pathutil.Under(name, p) {
			return true
		}
	}
	return false
}

// Empty reports whether the matcher selects nothing.
func (m Matcher) Empty() bool {
	return len(m.prefixes) == 0
}

// Move describes a rename of one physical name prefix to another.
type Move struct {
	From string
	To   string
}

// PlanRename computes the physical move for renaming item to newName and
// checks it against the current entries.
//
// newName is either a base name, kept in item's parent directory, or an
// absolute archive path. It fails with fs.ErrNotExist when item is not in
// entries, fs.ErrExist when the target is taken, and fs.ErrInvalid for the
// root, empty names, or moving a directory into itself.
func PlanRename(entries []fstype.Entry, item fstype.Entry, newName string) (Move, error) {
	from := pathutil.Clean(pathutil.Orgname(item.Fullname))
	if from == "" {
		return Move{}, &fs.PathError{Op: "rename", Path: item.Fullname, Err: fs.ErrInvalid}
	}
	current, ok := Lookup(entries, pathutil.Fullname(from))
	if !ok {
		return Move{}, &fs.PathError{Op: "rename", Path: item.Fullname, Err: fs.ErrNotExist}
	}

	var to string
	switch {
	case strings.HasPrefix(newName, pathutil.Sep):
		to = pathutil.Clean(pathutil.Orgname(newName))
	case newName == "" || strings.Contains(strings.TrimSuffix(newName, pathutil.Sep), pathutil.Sep):
		return Move{}, &fs.PathError{Op: "rename", Path: newName, Err: fs.ErrInvalid}
	default:
		to = pathutil.Clean(pathutil.Orgname(pathutil.Dir(current.Fullname)) + newName)
	}
	if to == "" {
		return Move{}, &fs.PathError{Op: "rename", Path: newName, Err: fs.ErrInvalid}
	}
	to = strings.TrimSuffix(to, pathutil.Sep)
	if current.Dir {
		to += pathutil.Sep
	}

	if current.Dir && strings.HasPrefix(to, from) {
		return Move{}, &fs.PathError{Op: "rename", Path: newName, Err: fs.ErrInvalid}
	}
	if taken(entries, to) {
		return Move{}, &fs.PathError{Op: "rename", Path: pathutil.Fullname(to), Err: fs.ErrExist}
	}
	return Move{From: from, To: to}, nil
}

// Apply returns the new name for a member, and whether the move touched it.
func (mv Move) Apply(name string) (string, bool) {
	if !pathutil.Under(name, mv.From) {
		return name, false
	}
	return mv.To + name[len(mv.From):], true
}

// taken reports whether a file or directory already occupies name,
// regardless of whether name is spelled as a directory.
func taken(entries []fstype.Entry, name string) bool {
	bare := strings.TrimSuffix(name, pathutil.Sep)
	if _, ok := Lookup(entries, pathutil.Fullname(bare)); ok {
		return true
	}
	_, ok := Lookup(entries, pathutil.Fullname(bare+pathutil.Sep))
	return ok
}
