// Package drivertest checks driver.Format implementations against the
// behavior the archive reader relies on.
package drivertest

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/testutil"
)

// Harness describes the format under test.
type Harness struct {
	// Format is the format to exercise.
	Format driver.Format

	// Ext is the file extension archives are created with, e.g. ".zip".
	Ext string

	// Write creates an archive holding members at path.
	Write func(tb testing.TB, path string, members []testutil.Member)
}

var fixture = []testutil.Member{
	{Name: "docs/"},
	{Name: "docs/readme.txt", Body: "hello"},
	{Name: "docs/guide/intro.md", Body: "intro body"},
	{Name: "src/main.go", Body: "package main\n", Mode: 0o755},
	{Name: "top.txt", Body: "top"},
}

func (h Harness) archive(t *testing.T) (string, driver.Driver) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture"+h.Ext)
	h.Write(t, path, fixture)
	require.True(t, h.Format.Accept(path))
	return path, h.Format.Bind(path)
}

// slashless binds an archive whose directory member is named "a" rather
// than "a/".
func (h Harness) slashless(t *testing.T) driver.Driver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slashless"+h.Ext)
	h.Write(t, path, []testutil.Member{
		{Name: "a", Dir: true},
		{Name: "a/f.txt", Body: "f"},
		{Name: "keep.txt", Body: "keep"},
	})
	require.True(t, h.Format.Accept(path))
	return h.Format.Bind(path)
}

func entries(t *testing.T, d driver.Driver) []fstype.Entry {
	t.Helper()
	got, err := d.Entries(context.Background(), nil)
	require.NoError(t, err)
	return got
}

func names(list []fstype.Entry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Fullname
	}
	return out
}

func find(t *testing.T, list []fstype.Entry, fullname string) fstype.Entry {
	t.Helper()
	e, ok := driver.Lookup(list, fullname)
	require.True(t, ok, "missing %s in %v", fullname, names(list))
	return e
}

// Run executes the suite.
func Run(t *testing.T, h Harness) {
	t.Helper()

	t.Run("Entries", func(t *testing.T) {
		t.Parallel()
		path, d := h.archive(t)
		list := entries(t, d)

		assert.Equal(t, []string{
			"/docs/",
			"/docs/guide/",
			"/docs/guide/intro.md",
			"/docs/readme.txt",
			"/src/",
			"/src/main.go",
			"/top.txt",
		}, names(list))

		readme := find(t, list, "/docs/readme.txt")
		assert.Equal(t, "docs/readme.txt", readme.Orgname)
		assert.Equal(t, "readme.txt", readme.Name)
		assert.Equal(t, int64(5), readme.Size)
		assert.Equal(t, path, readme.Root)
		assert.Equal(t, fstype.BackendArchive, readme.Backend)
		assert.False(t, readme.Dir)
		assert.Equal(t, "-rw-r--r--", readme.Attr)

		guide := find(t, list, "/docs/guide/")
		assert.True(t, guide.Dir)
		assert.Equal(t, fstype.DefaultDirAttr, guide.Attr)
		assert.Zero(t, guide.Size)
		assert.Equal(t, "guide", guide.Name)

		assert.Equal(t, "-rwxr-xr-x", find(t, list, "/src/main.go").Attr)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "empty"+h.Ext)
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		require.True(t, h.Format.Accept(path))

		d := h.Format.Bind(path)
		assert.Empty(t, entries(t, d))

		marker := fstype.Entry{Fullname: "/fresh/", Dir: true, Backend: fstype.BackendArchive}
		require.NoError(t, d.Add(context.Background(), []fstype.Entry{marker}, nil, fstype.Entry{}, nil))
		assert.Equal(t, []string{"/fresh/"}, names(entries(t, d)))
	})

	t.Run("RejectsForeignFiles", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		wrongMagic := filepath.Join(dir, "text"+h.Ext)
		require.NoError(t, os.WriteFile(wrongMagic, []byte("plain text, not an archive"), 0o644))
		assert.False(t, h.Format.Accept(wrongMagic))

		wrongExt := filepath.Join(dir, "fixture.bin")
		h.Write(t, wrongExt, fixture)
		assert.False(t, h.Format.Accept(wrongExt))

		assert.False(t, h.Format.Accept(filepath.Join(dir, "missing"+h.Ext)))
		assert.False(t, h.Format.Accept(dir))
	})

	t.Run("MakeDirMarker", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		marker := fstype.Entry{Fullname: "/docs/new/", Dir: true, Backend: fstype.BackendArchive}
		require.NoError(t, d.Add(context.Background(), []fstype.Entry{marker}, nil, fstype.Entry{}, nil))

		list := entries(t, d)
		created := find(t, list, "/docs/new/")
		assert.True(t, created.Dir)
		assert.Len(t, list, 8)
	})

	t.Run("AddFromDisk", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)

		src := t.TempDir()
		testutil.WriteFiles(t, src, map[string]string{
			"pkg/a.txt":      "alpha",
			"pkg/sub/b.txt":  "bravo!",
			"pkg/empty/":     "",
			"loose.txt":      "loose",
			"not-chosen.txt": "ignored",
		})
		base := diskEntry(src, true)
		items := []fstype.Entry{diskEntry(filepath.Join(src, "pkg"), true), diskEntry(filepath.Join(src, "loose.txt"), false)}
		dest := find(t, entries(t, d), "/docs/")

		var (
			mu     sync.Mutex
			events []fstype.ProgressEvent
		)
		progress := func(ev fstype.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}
		require.NoError(t, d.Add(context.Background(), items, &base, dest, progress))

		list := entries(t, d)
		assert.Equal(t, int64(5), find(t, list, "/docs/pkg/a.txt").Size)
		assert.Equal(t, int64(6), find(t, list, "/docs/pkg/sub/b.txt").Size)
		assert.True(t, find(t, list, "/docs/pkg/empty/").Dir)
		assert.Equal(t, int64(5), find(t, list, "/docs/loose.txt").Size)
		_, ok := driver.Lookup(list, "/docs/not-chosen.txt")
		assert.False(t, ok)

		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.Equal(t, fstype.StageCompressing, last.Stage)
		assert.Equal(t, last.FilesTotal, last.FilesDone)
		assert.Equal(t, uint64(16), last.BytesDone)
	})

	t.Run("AddReplacesExisting", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)

		src := t.TempDir()
		testutil.WriteFiles(t, src, map[string]string{"top.txt": "replaced content"})
		base := diskEntry(src, true)
		root := fstype.Entry{Fullname: "/", Dir: true}
		require.NoError(t, d.Add(context.Background(), []fstype.Entry{diskEntry(filepath.Join(src, "top.txt"), false)}, &base, root, nil))

		list := entries(t, d)
		assert.Len(t, list, 7)
		assert.Equal(t, int64(len("replaced content")), find(t, list, "/top.txt").Size)

		out := t.TempDir()
		require.NoError(t, d.Extract(context.Background(), diskEntry(out, true), []fstype.Entry{find(t, list, "/top.txt")}, nil))
		assert.Equal(t, "replaced content", testutil.ReadFile(t, filepath.Join(out, "top.txt")))
	})

	t.Run("AddRejectsArchiveSources", func(t *testing.T) {
		t.Parallel()
		path, d := h.archive(t)
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		list := entries(t, d)
		base := fstype.Entry{Fullname: "/", Dir: true}
		err = d.Add(context.Background(), []fstype.Entry{find(t, list, "/top.txt")}, &base, base, nil)
		require.ErrorIs(t, err, fstype.ErrUnsupportedOperation)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(before, after))
	})

	t.Run("ExtractFile", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		list := entries(t, d)
		out := t.TempDir()

		require.NoError(t, d.Extract(context.Background(), diskEntry(out, true), []fstype.Entry{find(t, list, "/docs/readme.txt")}, nil))
		assert.Equal(t, "hello", testutil.ReadFile(t, filepath.Join(out, "readme.txt")))
		info, err := os.Stat(filepath.Join(out, "readme.txt"))
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(testutil.Epoch))
	})

	t.Run("ExtractDirectory", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		list := entries(t, d)
		out := t.TempDir()

		var events []fstype.ProgressEvent
		progress := func(ev fstype.ProgressEvent) { events = append(events, ev) }
		require.NoError(t, d.Extract(context.Background(), diskEntry(out, true), []fstype.Entry{find(t, list, "/docs/")}, progress))

		assert.Equal(t, "hello", testutil.ReadFile(t, filepath.Join(out, "docs", "readme.txt")))
		assert.Equal(t, "intro body", testutil.ReadFile(t, filepath.Join(out, "docs", "guide", "intro.md")))
		_, err := os.Stat(filepath.Join(out, "top.txt"))
		assert.ErrorIs(t, err, fs.ErrNotExist)

		require.Len(t, events, 2)
		assert.Equal(t, fstype.StageExtracting, events[1].Stage)
		assert.Equal(t, 2, events[1].FilesTotal)
		assert.Equal(t, uint64(15), events[1].BytesTotal)
	})

	t.Run("ExtractMissing", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		missing := fstype.Entry{Fullname: "/nope.txt", Backend: fstype.BackendArchive}
		err := d.Extract(context.Background(), diskEntry(t.TempDir(), true), []fstype.Entry{missing}, nil)
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("RenameFile", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		list := entries(t, d)

		require.NoError(t, d.Rename(context.Background(), find(t, list, "/docs/readme.txt"), "README", nil))
		list = entries(t, d)
		assert.Equal(t, int64(5), find(t, list, "/docs/README").Size)
		_, ok := driver.Lookup(list, "/docs/readme.txt")
		assert.False(t, ok)
	})

	t.Run("RenameDirectory", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		list := entries(t, d)

		require.NoError(t, d.Rename(context.Background(), find(t, list, "/docs/"), "manual", nil))
		assert.Equal(t, []string{
			"/manual/",
			"/manual/guide/",
			"/manual/guide/intro.md",
			"/manual/readme.txt",
			"/src/",
			"/src/main.go",
			"/top.txt",
		}, names(entries(t, d)))
	})

	t.Run("RenameToAbsolutePath", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		list := entries(t, d)

		require.NoError(t, d.Rename(context.Background(), find(t, list, "/top.txt"), "/src/top.txt", nil))
		list = entries(t, d)
		find(t, list, "/src/top.txt")
		_, ok := driver.Lookup(list, "/top.txt")
		assert.False(t, ok)
	})

	t.Run("RenameConflictLeavesArchive", func(t *testing.T) {
		t.Parallel()
		path, d := h.archive(t)
		before, err := os.ReadFile(path)
		require.NoError(t, err)
		list := entries(t, d)

		err = d.Rename(context.Background(), find(t, list, "/top.txt"), "src", nil)
		require.ErrorIs(t, err, fs.ErrExist)

		err = d.Rename(context.Background(), fstype.Entry{Fullname: "/ghost.txt"}, "x", nil)
		require.ErrorIs(t, err, fs.ErrNotExist)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(before, after))
		assert.Equal(t, list, entries(t, d))
	})

	t.Run("RemoveRecursive", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		list := entries(t, d)

		items := []fstype.Entry{find(t, list, "/docs/"), find(t, list, "/top.txt")}
		require.NoError(t, d.Remove(context.Background(), items, nil))
		assert.Equal(t, []string{"/src/", "/src/main.go"}, names(entries(t, d)))
	})

	t.Run("RemoveSlashlessDirectory", func(t *testing.T) {
		t.Parallel()
		d := h.slashless(t)
		list := entries(t, d)

		require.NoError(t, d.Remove(context.Background(), []fstype.Entry{find(t, list, "/a/")}, nil))
		assert.Equal(t, []string{"/keep.txt"}, names(entries(t, d)))
	})

	t.Run("RenameSlashlessDirectory", func(t *testing.T) {
		t.Parallel()
		d := h.slashless(t)
		list := entries(t, d)

		require.NoError(t, d.Rename(context.Background(), find(t, list, "/a/"), "z", nil))
		assert.Equal(t, []string{"/keep.txt", "/z/", "/z/f.txt"}, names(entries(t, d)))
	})

	t.Run("RemoveMissingIsNoop", func(t *testing.T) {
		t.Parallel()
		_, d := h.archive(t)
		require.NoError(t, d.Remove(context.Background(), []fstype.Entry{{Fullname: "/ghost"}}, nil))
		assert.Len(t, entries(t, d), 7)
	})

	t.Run("CancelledRewriteLeavesArchive", func(t *testing.T) {
		t.Parallel()
		path, d := h.archive(t)
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		list := entries(t, d)
		err = d.Remove(ctx, []fstype.Entry{find(t, list, "/top.txt")}, nil)
		require.ErrorIs(t, err, context.Canceled)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(before, after))
		tmp, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.arcfs-*"))
		require.NoError(t, err)
		assert.Empty(t, tmp)
	})
}

func diskEntry(p string, dir bool) fstype.Entry {
	return fstype.Entry{
		Fullname: p,
		Name:     filepath.Base(p),
		Dir:      dir,
		Backend:  fstype.BackendDisk,
	}
}
