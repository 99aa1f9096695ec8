package batch

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_CreatesParentsAndCommits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewFileSink(dir, WithOverwrite(true), WithPreserveMode(true), WithPreserveTimes(true))
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	n, err := Write(sink, &Item{Path: "a/b/c.txt", Mode: 0o640, ModTime: mtime}, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	dest := filepath.Join(dir, "a", "b", "c.txt")
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime))

	entries, err := os.ReadDir(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not remain")
}

func TestWrite_SkipsExistingWithoutOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(dest, []byte("original"), 0o644))

	n, err := Write(NewFileSink(dir), &Item{Path: "keep.txt"}, strings.NewReader("new"))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestWrite_OverwriteReplacesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	_, err := Write(NewFileSink(dir, WithOverwrite(true)), &Item{Path: "f.txt"}, bytes.NewReader([]byte("new")))
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestFileSink_RejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewFileSink(dir, WithOverwrite(true))

	assert.False(t, sink.ShouldProcess(&Item{Path: "../escape.txt"}))
	_, err := sink.Writer(&Item{Path: "../escape.txt"})
	require.Error(t, err)
	require.Error(t, sink.Mkdir(&Item{Path: "../escape"}))
}

func TestFileSink_Mkdir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewFileSink(dir)
	require.NoError(t, sink.Mkdir(&Item{Path: "x/y/z", Mode: 0o755}))

	info, err := os.Stat(filepath.Join(dir, "x", "y", "z"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCommitter_Discard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewFileSink(dir).Writer(&Item{Path: "gone.txt"})
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Discard())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
