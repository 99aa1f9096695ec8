package driver

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcfs/internal/fstype"
)

type fakeFormat struct {
	name   string
	accept bool
	bound  []string
}

func (f *fakeFormat) Name() string       { return f.name }
func (f *fakeFormat) Accept(string) bool { return f.accept }
func (f *fakeFormat) Bind(path string, _ ...Option) Driver {
	f.bound = append(f.bound, path)
	return fakeDriver{name: f.name}
}

type fakeDriver struct {
	Driver
	name string
}

func (d fakeDriver) TypeName() string { return d.name }

func TestSelect_FirstAcceptingFormatWins(t *testing.T) {
	t.Parallel()

	first := &fakeFormat{name: "first", accept: false}
	second := &fakeFormat{name: "second", accept: true}
	third := &fakeFormat{name: "third", accept: true}

	d, err := Select("a.bin", []Format{first, second, third})
	require.NoError(t, err)
	assert.Equal(t, "second", d.TypeName())
	assert.Empty(t, first.bound)
	assert.Equal(t, []string{"a.bin"}, second.bound)
	assert.Empty(t, third.bound)
}

func TestSelect_NoFormat(t *testing.T) {
	t.Parallel()

	_, err := Select("a.bin", []Format{&fakeFormat{name: "x"}})
	require.ErrorIs(t, err, fstype.ErrUnsupportedFormat)
}

func archiveEntry(full string, dir bool) fstype.Entry {
	return fstype.Entry{Fullname: full, Orgname: full[1:], Dir: dir, Backend: fstype.BackendArchive}
}

func TestFinalize_SynthesizesParentsAndDedupes(t *testing.T) {
	t.Parallel()

	mtime := time.Unix(1700000000, 0)
	first := archiveEntry("/a/c/d.txt", false)
	first.Size = 1
	second := archiveEntry("/a/c/d.txt", false)
	second.Size = 2

	got := Finalize([]fstype.Entry{first, archiveEntry("/z.txt", false), second}, "/tmp/x.tgz", mtime)

	names := make([]string, 0, len(got))
	for _, e := range got {
		names = append(names, e.Fullname)
	}
	assert.Equal(t, []string{"/a/", "/a/c/", "/a/c/d.txt", "/z.txt"}, names)

	assert.Equal(t, int64(2), got[2].Size, "later duplicate wins")
	assert.True(t, got[0].Dir)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "a/", got[0].Orgname)
	assert.Equal(t, fstype.DefaultDirAttr, got[0].Attr)
	assert.Equal(t, "/tmp/x.tgz", got[0].Root)
	assert.True(t, got[0].ModTime.Equal(mtime))
}

func TestFinalize_KeepsExplicitDirectories(t *testing.T) {
	t.Parallel()

	dir := archiveEntry("/a/", true)
	dir.Attr = "drwx------"
	got := Finalize([]fstype.Entry{archiveEntry("/a/b.txt", false), dir}, "", time.Time{})
	require.Len(t, got, 2)
	assert.Equal(t, "drwx------", got[0].Attr)
}

func TestAttr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "drwxr-xr-x", Attr(fs.ModeDir|0o755))
	assert.Equal(t, "-rw-r--r--", Attr(0o644))
	assert.Equal(t, "lrwxrwxrwx", Attr(fs.ModeSymlink|0o777))
	assert.Equal(t, "-rwsr-xr-x", Attr(fs.ModeSetuid|0o755))
	assert.Equal(t, "drwxrwxrwt", Attr(fs.ModeDir|fs.ModeSticky|0o777))
	assert.Equal(t, "-rw-r-Sr--", Attr(fs.ModeSetgid|0o644))
}

func TestPlanRename(t *testing.T) {
	t.Parallel()

	entries := Finalize([]fstype.Entry{
		archiveEntry("/a/b.txt", false),
		archiveEntry("/a/c/d.txt", false),
		archiveEntry("/top.txt", false),
	}, "", time.Time{})

	tests := []struct {
		name    string
		item    string
		newName string
		want    Move
		wantErr error
	}{
		{"file base name", "/a/b.txt", "e.txt", Move{From: "a/b.txt", To: "a/e.txt"}, nil},
		{"directory base name", "/a/c/", "x", Move{From: "a/c/", To: "a/x/"}, nil},
		{"absolute move", "/top.txt", "/a/top.txt", Move{From: "top.txt", To: "a/top.txt"}, nil},
		{"collision file", "/a/b.txt", "c", Move{}, fs.ErrExist},
		{"collision dir", "/a/c/", "b.txt", Move{}, fs.ErrExist},
		{"missing source", "/nope.txt", "x", Move{}, fs.ErrNotExist},
		{"root", "/", "x", Move{}, fs.ErrInvalid},
		{"nested base name", "/a/b.txt", "x/y", Move{}, fs.ErrInvalid},
		{"into itself", "/a/", "/a/c/a", Move{}, fs.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := Lookup(entries, tt.item)
			if !ok {
				item = archiveEntry(tt.item, false)
			}
			got, err := PlanRename(entries, item, tt.newName)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoveApply(t *testing.T) {
	t.Parallel()

	mv := Move{From: "a/c/", To: "a/x/"}
	got, ok := mv.Apply("a/c/d.txt")
	assert.True(t, ok)
	assert.Equal(t, "a/x/d.txt", got)

	got, ok = mv.Apply("a/cc/d.txt")
	assert.False(t, ok)
	assert.Equal(t, "a/cc/d.txt", got)
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	m := NewMatcher([]fstype.Entry{archiveEntry("/a/", true), archiveEntry("/x.txt", false)})
	assert.True(t, m.Match("a/"))
	assert.True(t, m.Match("a/b/c"))
	assert.True(t, m.Match("x.txt"))
	assert.False(t, m.Match("x.txt.bak"))
	assert.False(t, m.Match("ab/"))
	assert.True(t, NewMatcher(nil).Empty())
}

func TestSniff(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	gz := filepath.Join(dir, "a.tgz")
	require.NoError(t, os.WriteFile(gz, []byte{0x1f, 0x8b, 0x08, 0x00}, 0o644))
	empty := filepath.Join(dir, "empty.tgz")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	text := filepath.Join(dir, "notes.tgz")
	require.NoError(t, os.WriteFile(text, []byte("hello world"), 0o644))

	sig := []byte{0x1f, 0x8b}
	assert.True(t, Sniff(gz, sig))
	assert.True(t, Sniff(empty, sig))
	assert.False(t, Sniff(text, sig))
	assert.False(t, Sniff(filepath.Join(dir, "missing.tgz"), sig))
	assert.False(t, Sniff(dir, sig))

	assert.True(t, HasExt("/x/Archive.TAR.GZ", ".tar.gz", ".tgz"))
	assert.False(t, HasExt("/x/archive.gz", ".tar.gz", ".tgz"))
}

func TestMode_InvertsAttr(t *testing.T) {
	t.Parallel()

	for _, mode := range []fs.FileMode{
		fs.ModeDir | 0o755,
		0o644,
		fs.ModeSymlink | 0o777,
		fs.ModeSetuid | 0o755,
		fs.ModeSetgid | 0o644,
		fs.ModeDir | fs.ModeSticky | 0o777,
	} {
		assert.Equal(t, mode, Mode(Attr(mode)), Attr(mode))
	}
	assert.Zero(t, Mode("bogus"))
}

func TestPlanExtract(t *testing.T) {
	t.Parallel()

	entries := Finalize([]fstype.Entry{
		archiveEntry("/a/b/one.txt", false),
		archiveEntry("/a/b/two.txt", false),
		archiveEntry("/a/top.txt", false),
		{Fullname: "/a/b/link", Orgname: "a/b/link", LinkTarget: "one.txt", Backend: fstype.BackendArchive},
	}, "", time.Time{})
	for i := range entries {
		entries[i].Size = 4
		if entries[i].Dir {
			entries[i].Size = 0
		}
		if entries[i].Attr == "" {
			entries[i].Attr = "-rw-r--r--"
		}
	}

	b, ok := Lookup(entries, "/a/b/")
	require.True(t, ok)
	top, ok := Lookup(entries, "/a/top.txt")
	require.True(t, ok)

	plan, err := PlanExtract(entries, []fstype.Entry{b, top})
	require.NoError(t, err)

	require.Len(t, plan.Dirs(), 1)
	assert.Equal(t, "b", plan.Dirs()[0].Path)
	assert.Equal(t, fs.ModeDir|0o755, plan.Dirs()[0].Mode)

	one, ok := plan.File("a/b/one.txt")
	require.True(t, ok)
	assert.Equal(t, "b/one.txt", one.Path)
	assert.Equal(t, fs.FileMode(0o644), one.Mode)

	topItem, ok := plan.File("a/top.txt")
	require.True(t, ok)
	assert.Equal(t, "top.txt", topItem.Path)

	_, ok = plan.File("a/b/link")
	assert.False(t, ok, "links are not extracted")
	assert.Equal(t, 3, plan.Files())
	assert.Equal(t, uint64(12), plan.Bytes())

	_, err = PlanExtract(entries, []fstype.Entry{archiveEntry("/missing", false)})
	require.ErrorIs(t, err, fs.ErrNotExist)
}
