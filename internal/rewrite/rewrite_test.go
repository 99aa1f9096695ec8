package rewrite

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_ReplacesOnSuccess(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.bin")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o640))

	err := File(context.Background(), path, func(w io.Writer) error {
		_, err := w.Write([]byte("new content"))
		return err
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assertNoTemp(t, filepath.Dir(path))
}

func TestFile_KeepsOriginalOnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.bin")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	boom := errors.New("boom")

	err := File(context.Background(), path, func(w io.Writer) error {
		_, _ = w.Write([]byte("half"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
	assertNoTemp(t, filepath.Dir(path))
}

func TestFile_KeepsOriginalOnCancel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.bin")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	ctx, cancel := context.WithCancel(context.Background())

	err := File(ctx, path, func(w io.Writer) error {
		cancel()
		_, err := w.Write([]byte("new"))
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestFile_MissingArchive(t *testing.T) {
	t.Parallel()

	err := File(context.Background(), filepath.Join(t.TempDir(), "missing"), func(io.Writer) error { return nil })
	require.ErrorIs(t, err, os.ErrNotExist)
}

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
