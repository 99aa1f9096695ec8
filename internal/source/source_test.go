package source

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcfs/internal/fstype"
)

func diskEntry(p string) fstype.Entry {
	return fstype.Entry{Fullname: p, Backend: fstype.BackendDisk}
}

func archiveDir(full string) fstype.Entry {
	return fstype.Entry{Fullname: full, Dir: true, Backend: fstype.BackendArchive}
}

func TestCollect_WalksDirectoriesUnderDestination(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "docs", "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "docs", "readme.md"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "docs", "img", "a.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "top.txt"), []byte("top"), 0o644))

	files, err := Collect(context.Background(),
		[]fstype.Entry{diskEntry(filepath.Join(base, "docs")), diskEntry(filepath.Join(base, "top.txt"))},
		diskEntry(base), archiveDir("/dest/"))
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"dest/docs/",
		"dest/docs/img/",
		"dest/docs/img/a.png",
		"dest/docs/readme.md",
		"dest/top.txt",
	}, names)

	for _, f := range files {
		if f.Name == "dest/docs/readme.md" {
			assert.Equal(t, int64(5), f.Size)
			assert.True(t, f.Mode.IsRegular())
		}
		if f.Name == "dest/docs/" {
			assert.True(t, f.IsDir())
		}
	}
}

func TestCollect_AtArchiveRoot(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.txt"), []byte("a"), 0o644))

	files, err := Collect(context.Background(), []fstype.Entry{diskEntry(filepath.Join(base, "a.txt"))},
		diskEntry(base), archiveDir("/"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Name)
}

func TestCollect_RejectsSourceOutsideBase(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	other := t.TempDir()
	_, err := Collect(context.Background(), []fstype.Entry{diskEntry(other)}, diskEntry(base), archiveDir("/"))
	require.ErrorIs(t, err, fs.ErrInvalid)
}

func TestCollect_RejectsArchiveSources(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	_, err := Collect(context.Background(), []fstype.Entry{archiveDir("/a/")}, diskEntry(base), archiveDir("/"))
	require.ErrorIs(t, err, fstype.ErrUnsupportedOperation)
}

func TestMarkers(t *testing.T) {
	t.Parallel()

	now := time.Now()
	files, err := Markers([]fstype.Entry{archiveDir("/newdir/"), {Fullname: "/a/b"}}, now)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "newdir/", files[0].Name)
	assert.Equal(t, "a/b/", files[1].Name)
	assert.True(t, files[0].IsDir())
	assert.True(t, files[0].ModTime.Equal(now))

	_, err = Markers([]fstype.Entry{archiveDir("/")}, now)
	require.ErrorIs(t, err, fs.ErrInvalid)
}

func TestOpen_ReadsCollectedFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	path := filepath.Join(base, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	files, err := Collect(context.Background(), []fstype.Entry{diskEntry(path)}, diskEntry(base), archiveDir("/"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := Open(&files[0])
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}
