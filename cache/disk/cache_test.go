package disk

import (
	"bytes"
	_ "crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	content := []byte("snapshot bytes")
	d := digest.FromBytes([]byte("archive"))
	if putErr := c.Put(d, content); putErr != nil {
		t.Fatalf("Put() error = %v", putErr)
	}

	got, ok := c.Get(d)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("Get() content = %q, want %q", got, content)
	}

	path := filepath.Join(dir, "sha256", d.Encoded()[:defaultShardPrefixLen], d.Encoded())
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
	if c.SizeBytes() != int64(len(content)) {
		t.Fatalf("SizeBytes() = %d, want %d", c.SizeBytes(), len(content))
	}
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d := digest.FromString("flat")
	if err := c.Put(d, []byte("flat")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	path := filepath.Join(dir, "sha256", d.Encoded())
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d := digest.FromString("gone")
	if err := c.Put(d, []byte("data")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Delete(d); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := c.Get(d); ok {
		t.Fatal("Get() after Delete ok = true, want false")
	}
	if c.SizeBytes() != 0 {
		t.Fatalf("SizeBytes() = %d, want 0", c.SizeBytes())
	}
	if err := c.Delete(d); err != nil {
		t.Fatalf("Delete() of missing entry error = %v", err)
	}
}

func TestCacheRejectsInvalidDigest(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put(digest.Digest("sha256:../../escape"), []byte("x")); err == nil {
		t.Fatal("Put() error = nil, want error")
	}
	if _, ok := c.Get(digest.Digest("")); ok {
		t.Fatal("Get() ok = true, want false")
	}
}

func TestCacheMaxBytesPrunesOldest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithMaxBytes(10))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	old := digest.FromString("old")
	if err := c.Put(old, []byte("123456")); err != nil {
		t.Fatalf("Put(old) error = %v", err)
	}
	oldPath, _ := c.path(old)
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	fresh := digest.FromString("fresh")
	if err := c.Put(fresh, []byte("abcdef")); err != nil {
		t.Fatalf("Put(fresh) error = %v", err)
	}
	if _, ok := c.Get(old); ok {
		t.Fatal("old entry survived pruning")
	}
	if _, ok := c.Get(fresh); !ok {
		t.Fatal("fresh entry missing")
	}
	if c.SizeBytes() > c.MaxBytes() {
		t.Fatalf("SizeBytes() = %d exceeds MaxBytes() = %d", c.SizeBytes(), c.MaxBytes())
	}

	big := digest.FromString("big")
	if err := c.Put(big, make([]byte, 11)); err != nil {
		t.Fatalf("Put(big) error = %v", err)
	}
	if _, ok := c.Get(big); ok {
		t.Fatal("entry over the limit was stored")
	}
}

func TestNewRestoresSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put(digest.FromString("a"), []byte("12345")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if reopened.SizeBytes() != 5 {
		t.Fatalf("SizeBytes() = %d, want 5", reopened.SizeBytes())
	}
}

func TestNewEmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New() error = nil, want error")
	}
	if _, err := New(t.TempDir(), WithMaxBytes(-1)); err == nil {
		t.Fatal("New() with negative max bytes error = nil, want error")
	}
}

func TestNewIgnoresStagingAndForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d := digest.FromString("kept")
	if err := c.Put(d, []byte("1234")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	shard := filepath.Join(dir, "sha256", d.Encoded()[:defaultShardPrefixLen])
	staging := filepath.Join(shard, stagingPrefix+"123")
	extra := map[string]string{
		staging:                             "in flight",
		filepath.Join(dir, "README"):        "notes",
		filepath.Join(dir, "sha256", "bad"): "not a digest",
	}
	for path, body := range extra {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", path, err)
		}
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if reopened.SizeBytes() != 4 {
		t.Fatalf("SizeBytes() = %d, want 4", reopened.SizeBytes())
	}

	freed, err := reopened.Prune(0)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if freed != 4 {
		t.Fatalf("Prune() freed = %d, want 4", freed)
	}
	for path := range extra {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("Prune() removed %s: %v", path, err)
		}
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithMaxBytes(12))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	used, idle := digest.FromString("used"), digest.FromString("idle")
	past := time.Now().Add(-2 * time.Hour)
	for i, d := range []digest.Digest{used, idle} {
		if err := c.Put(d, []byte("123456")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		path, _ := c.path(d)
		at := past.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, at, at); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
	}

	if _, ok := c.Get(used); !ok {
		t.Fatal("Get(used) ok = false, want true")
	}
	if err := c.Put(digest.FromString("new"), []byte("abcdef")); err != nil {
		t.Fatalf("Put(new) error = %v", err)
	}
	if _, ok := c.Get(idle); ok {
		t.Fatal("idle entry survived pruning")
	}
	if _, ok := c.Get(used); !ok {
		t.Fatal("recently read entry was pruned")
	}
}
