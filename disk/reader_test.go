package disk

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/testutil"
)

func newReader(t *testing.T) (*Reader, string) {
	t.Helper()
	home := t.TempDir()
	testutil.WriteFiles(t, home, map[string]string{
		"docs/readme.txt":     "hello",
		"docs/guide/intro.md": "intro",
		"top.txt":             "top",
	})
	r, err := New(WithHome(home))
	require.NoError(t, err)
	return r, home
}

func fullnames(list []fstype.Entry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Fullname
	}
	return out
}

func TestNew_StartsAtHome(t *testing.T) {
	t.Parallel()
	r, home := newReader(t)
	assert.Equal(t, home, r.CurrentDir().Fullname)
	assert.Equal(t, home, r.HomeDir().Fullname)
	assert.Equal(t, string(filepath.Separator), r.Sep())
	assert.True(t, r.RootDir().Dir)

	_, err := New(WithHome(filepath.Join(home, "top.txt")))
	assert.ErrorIs(t, err, fs.ErrInvalid)
}

func TestList(t *testing.T) {
	t.Parallel()
	r, home := newReader(t)

	list, err := r.List(r.HomeDir())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, "docs"), filepath.Join(home, "top.txt")}, fullnames(list))

	top := list[1]
	assert.Equal(t, "top.txt", top.Name)
	assert.Equal(t, int64(3), top.Size)
	assert.Equal(t, fstype.BackendDisk, top.Backend)
	assert.Equal(t, "-rw-r--r--", top.Attr)
	assert.False(t, top.Dir)

	_, err = r.List(list[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "docs"), r.CurrentDir().Fullname)

	archived, err := r.List(fstype.Entry{Fullname: "/", Backend: fstype.BackendArchive})
	require.NoError(t, err)
	assert.Empty(t, archived)
	assert.Equal(t, filepath.Join(home, "docs"), r.CurrentDir().Fullname)
}

func TestResolvePath(t *testing.T) {
	t.Parallel()
	r, home := newReader(t)
	docs := filepath.Join(home, "docs")
	require.NoError(t, r.ChangeDir(fstype.Entry{Fullname: docs, Backend: fstype.BackendDisk}))

	tests := []struct {
		path string
		want string
	}{
		{path: ".", want: docs},
		{path: "..", want: home},
		{path: "readme.txt", want: filepath.Join(docs, "readme.txt")},
		{path: "guide/intro.md", want: filepath.Join(docs, "guide", "intro.md")},
		{path: "~", want: home},
		{path: "~/top.txt", want: filepath.Join(home, "top.txt")},
		{path: filepath.Join(home, "top.txt"), want: filepath.Join(home, "top.txt")},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e, err := r.ResolvePath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Fullname)
		})
	}

	parent, err := r.ResolvePath("..")
	require.NoError(t, err)
	assert.Equal(t, "..", parent.Name)

	_, err = r.ResolvePath("missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = r.ResolvePath("")
	assert.ErrorIs(t, err, fs.ErrInvalid)
}

func TestMakeDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, home := newReader(t)

	require.NoError(t, r.MakeDir(ctx, "a/b", nil))
	assert.True(t, r.Exists("a/b"))
	assert.DirExists(t, filepath.Join(home, "a", "b"))

	require.NoError(t, r.MakeDirEntry(ctx, fstype.Entry{Fullname: filepath.Join(home, "c")}, nil))
	assert.DirExists(t, filepath.Join(home, "c"))

	assert.ErrorIs(t, r.MakeDir(ctx, "top.txt", nil), fs.ErrExist)
	assert.ErrorIs(t, r.MakeDir(ctx, "", nil), fs.ErrInvalid)
}

func TestRename(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, home := newReader(t)

	docs, err := r.ResolvePath("docs")
	require.NoError(t, err)
	require.NoError(t, r.ChangeDir(docs))
	require.NoError(t, r.Rename(ctx, docs, "manual", nil))
	assert.Equal(t, "hello", testutil.ReadFile(t, filepath.Join(home, "manual", "readme.txt")))
	assert.Equal(t, filepath.Join(home, "manual"), r.CurrentDir().Fullname)

	top, err := r.ResolvePath(filepath.Join(home, "top.txt"))
	require.NoError(t, err)
	assert.ErrorIs(t, r.Rename(ctx, top, "manual", nil), fs.ErrExist)
	assert.ErrorIs(t, r.Rename(ctx, top, "x/y", nil), fs.ErrInvalid)
	assert.ErrorIs(t, r.Rename(ctx, fstype.Entry{Fullname: "/top.txt", Backend: fstype.BackendArchive}, "z", nil), fstype.ErrUnsupportedOperation)
}

func TestCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, home := newReader(t)
	dest := t.TempDir()

	var events []fstype.ProgressEvent
	docs, err := r.ResolvePath("docs")
	require.NoError(t, err)
	top, err := r.ResolvePath("top.txt")
	require.NoError(t, err)

	err = r.Copy(ctx, []fstype.Entry{docs, top}, nil, fstype.Entry{Fullname: dest, Backend: fstype.BackendDisk}, func(ev fstype.ProgressEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", testutil.ReadFile(t, filepath.Join(dest, "docs", "readme.txt")))
	assert.Equal(t, "intro", testutil.ReadFile(t, filepath.Join(dest, "docs", "guide", "intro.md")))
	assert.Equal(t, "top", testutil.ReadFile(t, filepath.Join(dest, "top.txt")))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, fstype.StageCopying, last.Stage)
	assert.Equal(t, uint64(13), last.BytesDone)
	assert.Equal(t, last.BytesTotal, last.BytesDone)

	info, err := os.Stat(filepath.Join(home, "top.txt"))
	require.NoError(t, err)
	copied, err := os.Stat(filepath.Join(dest, "top.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(copied.ModTime()))
}

func TestCopy_BaseDir(t *testing.T) {
	t.Parallel()
	r, home := newReader(t)
	dest := t.TempDir()

	base := fstype.Entry{Fullname: home, Dir: true, Backend: fstype.BackendDisk}
	intro, err := r.ResolvePath("docs/guide/intro.md")
	require.NoError(t, err)
	require.NoError(t, r.Copy(context.Background(), []fstype.Entry{intro}, &base, fstype.Entry{Fullname: dest, Backend: fstype.BackendDisk}, nil))
	assert.FileExists(t, filepath.Join(dest, "docs", "guide", "intro.md"))
}

func TestCopy_Rejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, home := newReader(t)
	docs, err := r.ResolvePath("docs")
	require.NoError(t, err)
	into := fstype.Entry{Fullname: filepath.Join(home, "docs", "guide"), Backend: fstype.BackendDisk}

	assert.ErrorIs(t, r.Copy(ctx, nil, nil, docs, nil), fstype.ErrUnsupportedOperation)
	assert.ErrorIs(t, r.Copy(ctx, []fstype.Entry{docs}, nil, fstype.Entry{Fullname: "/", Backend: fstype.BackendArchive}, nil), fstype.ErrUnsupportedOperation)
	assert.ErrorIs(t, r.Copy(ctx, []fstype.Entry{{Fullname: "/a", Backend: fstype.BackendArchive}}, nil, docs, nil), fstype.ErrUnsupportedOperation)
	assert.ErrorIs(t, r.Copy(ctx, []fstype.Entry{docs}, nil, into, nil), fs.ErrInvalid)
}

func TestRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, home := newReader(t)

	guide, err := r.ResolvePath("docs/guide")
	require.NoError(t, err)
	require.NoError(t, r.ChangeDir(guide))

	docs, err := r.ResolvePath(filepath.Join(home, "docs"))
	require.NoError(t, err)
	require.NoError(t, r.Remove(ctx, []fstype.Entry{docs}, nil))
	assert.NoDirExists(t, filepath.Join(home, "docs"))
	assert.Equal(t, home, r.CurrentDir().Fullname)

	require.NoError(t, r.Remove(ctx, nil, nil))
	assert.ErrorIs(t, r.Remove(ctx, []fstype.Entry{r.RootDir()}, nil), fs.ErrInvalid)
}

func TestChangeDir(t *testing.T) {
	t.Parallel()
	r, home := newReader(t)

	assert.Error(t, r.ChangeDir(fstype.Entry{Fullname: filepath.Join(home, "top.txt"), Backend: fstype.BackendDisk}))
	assert.ErrorIs(t, r.ChangeDir(fstype.Entry{Fullname: "/", Backend: fstype.BackendArchive}), fstype.ErrUnsupportedOperation)
	assert.Equal(t, home, r.CurrentDir().Fullname)
}

func TestMountPoints(t *testing.T) {
	t.Parallel()
	r, _ := newReader(t)

	mounts, err := r.MountPoints()
	require.NoError(t, err)
	require.NotEmpty(t, mounts)
	for _, m := range mounts {
		assert.True(t, m.Mount.Dir, m.Mount.Fullname)
		assert.GreaterOrEqual(t, m.Size, m.Free)
	}
}
