// Package pathutil provides path manipulation for slash-separated archive paths.
//
// Archive paths come in two forms: the physical name stored in the archive
// ("a/b.txt", "a/") and the rooted fullname exposed to callers ("/a/b.txt",
// "/a/"). Directories always carry a trailing slash in both forms.
package pathutil

import (
	"path"
	"strings"
)

// Sep is the archive path separator on every platform.
const Sep = "/"

// Base returns the last element of a slash-separated path.
// If path is empty, "." or "/", it returns the input unchanged.
func Base(p string) string {
	if p == "" || p == "." || p == Sep {
		return p
	}
	// Remove trailing slash if present
	p = strings.TrimSuffix(p, Sep)
	if i := strings.LastIndex(p, Sep); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Clean normalizes a physical archive name.
//
// It strips leading "./" and "/" segments, collapses duplicate separators,
// and drops "." elements. A trailing slash is preserved so directory
// markers stay recognizable. Names that clean to the root return "", and so
// do names containing ".." since they cannot be represented in a rooted index.
func Clean(name string) string {
	dir := strings.HasSuffix(name, Sep)
	parts := strings.Split(name, Sep)
	kept := parts[:0] // reuse backing array
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return ""
		}
		kept = append(kept, part)
	}
	if len(kept) == 0 {
		return ""
	}
	cleaned := strings.Join(kept, Sep)
	if dir {
		cleaned += Sep
	}
	return cleaned
}

// Fullname converts a cleaned physical name to its rooted form.
func Fullname(name string) string {
	return Sep + name
}

// Orgname converts a rooted fullname to its physical form.
func Orgname(fullname string) string {
	return strings.TrimPrefix(fullname, Sep)
}

// Rooted normalizes user input into a rooted directory fullname:
// "newdir" → "/newdir/", "/a//b/" → "/a/b/", "" → "/".
func Rooted(p string) string {
	cleaned := path.Clean(Sep + p)
	if cleaned == Sep {
		return Sep
	}
	return cleaned + Sep
}

// Dir returns the parent directory of a rooted fullname, with a trailing
// slash. The parent of "/a/b.txt" and "/a/b/" is "/a/"; the parent of "/" is "/".
func Dir(fullname string) string {
	p := strings.TrimSuffix(fullname, Sep)
	if p == "" {
		return Sep
	}
	d := path.Dir(p)
	if d == Sep {
		return Sep
	}
	return d + Sep
}

// IsDirName reports whether a physical or rooted name denotes a directory.
func IsDirName(name string) bool {
	return strings.HasSuffix(name, Sep)
}

// IsChild reports whether fullname is exactly one level below dir.
//
// dir must be a rooted directory fullname ending in "/". A child qualifies if
// it starts with dir, differs from it, and contains no separator after dir
// except possibly a single trailing one.
func IsChild(fullname, dir string) bool {
	if fullname == dir || !strings.HasPrefix(fullname, dir) {
		return false
	}
	idx := strings.Index(fullname[len(dir):], Sep)
	return idx == -1 || len(dir)+idx == len(fullname)-1
}

// Under reports whether name equals prefix or is nested below it.
// When prefix is not a directory name only an exact match counts.
func Under(name, prefix string) bool {
	if name == prefix {
		return true
	}
	return IsDirName(prefix) && strings.HasPrefix(name, prefix)
}

// Parents returns every proper ancestor directory of a physical name,
// outermost first: "a/b/c.txt" → ["a/", "a/b/"].
func Parents(name string) []string {
	trimmed := strings.TrimSuffix(name, Sep)
	parts := strings.Split(trimmed, Sep)
	if len(parts) <= 1 {
		return nil
	}
	parents := make([]string, 0, len(parts)-1)
	var b strings.Builder
	for _, part := range parts[:len(parts)-1] {
		b.WriteString(part)
		b.WriteString(Sep)
		parents = append(parents, b.String())
	}
	return parents
}
