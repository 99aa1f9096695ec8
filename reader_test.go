package arcfs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcfs"
	"github.com/meigma/arcfs/archive"
	diskcache "github.com/meigma/arcfs/cache/disk"
	"github.com/meigma/arcfs/disk"
	"github.com/meigma/arcfs/internal/testutil"
)

func TestOpenArchive_ExtractToDisk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	testutil.WriteZip(t, path, []testutil.Member{
		{Name: "docs/readme.txt", Body: "hello"},
		{Name: "top.txt", Body: "top"},
	})
	require.True(t, arcfs.IsArchive(path))

	r, err := arcfs.OpenArchive(ctx, path)
	require.NoError(t, err)

	home := t.TempDir()
	d, err := arcfs.NewDisk(disk.WithHome(home))
	require.NoError(t, err)

	readers := []arcfs.Reader{r, d}
	for _, rd := range readers {
		assert.NotEmpty(t, rd.Sep())
	}

	docs, err := r.ResolvePath("/docs/")
	require.NoError(t, err)
	require.NoError(t, r.Copy(ctx, []arcfs.Entry{docs}, nil, d.CurrentDir(), nil))
	assert.Equal(t, "hello", testutil.ReadFile(t, filepath.Join(home, "docs", "readme.txt")))
}

func TestIsArchive_PlainFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("notes"), 0o644))
	assert.False(t, arcfs.IsArchive(path))

	_, err := arcfs.OpenArchive(context.Background(), path)
	assert.ErrorIs(t, err, arcfs.ErrUnsupportedFormat)
}

func TestOpenArchive_SnapshotCacheOnDisk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bundle.tar.gz")
	testutil.WriteTarGz(t, path, []testutil.Member{{Name: "a/b.txt", Body: "b"}})

	c, err := diskcache.New(t.TempDir())
	require.NoError(t, err)

	first, err := arcfs.OpenArchive(ctx, path, archive.WithSnapshotCache(c))
	require.NoError(t, err)
	assert.Positive(t, c.SizeBytes())

	second, err := arcfs.OpenArchive(ctx, path, archive.WithSnapshotCache(c))
	require.NoError(t, err)
	assert.Len(t, second.Entries(), len(first.Entries()))
}
