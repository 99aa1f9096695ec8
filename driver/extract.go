package driver

import (
	"io/fs"
	"strings"

	"github.com/meigma/arcfs/internal/batch"
	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
)

// ExtractPlan maps the physical members selected for extraction to their
// destination paths.
//
// Each selected member keeps its path relative to the parent directory of
// the item that selected it, so extracting "/a/b/" writes "b/..." below the
// destination. Links are not part of the plan.
type ExtractPlan struct {
	dirs  []*batch.Item
	files map[string]batch.Item
	bytes uint64
}

// PlanExtract resolves items against entries. It fails with fs.ErrNotExist
// when an item is not in entries.
func PlanExtract(entries []fstype.Entry, items []fstype.Entry) (*ExtractPlan, error) {
	p := &ExtractPlan{files: make(map[string]batch.Item)}
	for _, item := range items {
		current, ok := Lookup(entries, item.Fullname)
		if !ok {
			return nil, &fs.PathError{Op: "extract", Path: item.Fullname, Err: fs.ErrNotExist}
		}
		parent := pathutil.Orgname(pathutil.Dir(current.Fullname))
		if !current.Dir {
			p.addFile(current, parent)
			continue
		}
		for _, e := range entries {
			if !pathutil.Under(e.Orgname, current.Orgname) {
				continue
			}
			if e.Dir {
				p.dirs = append(p.dirs, &batch.Item{
					Path:    strings.TrimSuffix(strings.TrimPrefix(e.Orgname, parent), pathutil.Sep),
					Mode:    Mode(e.Attr),
					ModTime: e.ModTime,
				})
				continue
			}
			p.addFile(e, parent)
		}
	}
	return p, nil
}

func (p *ExtractPlan) addFile(e fstype.Entry, parent string) {
	if e.LinkTarget != "" {
		return
	}
	if _, dup := p.files[e.Orgname]; dup {
		return
	}
	p.files[e.Orgname] = batch.Item{
		Path:    strings.TrimPrefix(e.Orgname, parent),
		Mode:    Mode(e.Attr),
		ModTime: e.ModTime,
	}
	p.bytes += uint64(max(e.Size, 0)) //nolint:gosec // clamped to non-negative
}

// Dirs returns the directories to create, parents first.
func (p *ExtractPlan) Dirs() []*batch.Item {
	return p.dirs
}

// File returns the destination item for a cleaned physical member name.
// The returned item is a fresh copy.
func (p *ExtractPlan) File(name string) (*batch.Item, bool) {
	item, ok := p.files[name]
	if !ok {
		return nil, false
	}
	return &item, true
}

// Files returns the number of files in the plan.
func (p *ExtractPlan) Files() int {
	return len(p.files)
}

// Bytes returns the total size of the files in the plan.
func (p *ExtractPlan) Bytes() uint64 {
	return p.bytes
}

// Mode parses an attribute string produced by Attr back into permission
// and type bits. Malformed strings yield 0.
func Mode(attr string) fs.FileMode {
	if len(attr) != 10 {
		return 0
	}
	var mode fs.FileMode
	switch attr[0] {
	case 'd':
		mode |= fs.ModeDir
	case 'l':
		mode |= fs.ModeSymlink
	}
	for i := range 9 {
		c := attr[i+1]
		if c != '-' && c != 'S' && c != 'T' {
			mode |= 1 << uint(8-i)
		}
	}
	switch attr[3] {
	case 's', 'S':
		mode |= fs.ModeSetuid
	}
	switch attr[6] {
	case 's', 'S':
		mode |= fs.ModeSetgid
	}
	switch attr[9] {
	case 't', 'T':
		mode |= fs.ModeSticky
	}
	return mode
}
