// Package testutil builds archives and fakes for tests.
package testutil

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
)

// Epoch is the modification time given to members without one.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Member describes one archive member. Names ending in "/" are directories.
type Member struct {
	Name    string
	Body    string
	Mode    fs.FileMode
	ModTime time.Time
	Symlink string

	// Dir marks a directory member whose name has no trailing slash.
	Dir bool
}

func (m Member) dir() bool {
	return m.Dir || strings.HasSuffix(m.Name, "/")
}

func (m Member) mode() fs.FileMode {
	if m.Mode != 0 {
		return m.Mode
	}
	if m.dir() {
		return 0o755
	}
	return 0o644
}

func (m Member) modTime() time.Time {
	if m.ModTime.IsZero() {
		return Epoch
	}
	return m.ModTime
}

func (m Member) header() *tar.Header {
	hdr := &tar.Header{
		Name:    m.Name,
		Mode:    int64(m.mode().Perm()),
		ModTime: m.modTime(),
		Uid:     1000,
		Gid:     1000,
		Uname:   "tester",
		Gname:   "staff",
	}
	switch {
	case m.dir():
		hdr.Typeflag = tar.TypeDir
	case m.Symlink != "":
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = m.Symlink
	default:
		hdr.Typeflag = tar.TypeReg
		hdr.Size = int64(len(m.Body))
	}
	return hdr
}

// WriteTarGz writes a gzip-compressed tarball to path.
func WriteTarGz(tb testing.TB, path string, members []Member) {
	tb.Helper()
	writeTar(tb, path, members, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	})
}

// WriteTarZst writes a zstd-compressed tarball to path.
func WriteTarZst(tb testing.TB, path string, members []Member) {
	tb.Helper()
	writeTar(tb, path, members, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	})
}

func writeTar(tb testing.TB, path string, members []Member, compress func(io.Writer) (io.WriteCloser, error)) {
	tb.Helper()
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw, err := compress(f)
	if err != nil {
		tb.Fatalf("compressor: %v", err)
	}
	tw := tar.NewWriter(zw)
	for _, m := range members {
		if err := tw.WriteHeader(m.header()); err != nil {
			tb.Fatalf("write header %s: %v", m.Name, err)
		}
		if m.Body != "" {
			if _, err := io.WriteString(tw, m.Body); err != nil {
				tb.Fatalf("write %s: %v", m.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		tb.Fatalf("close tar: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close compressor: %v", err)
	}
}

// WriteZip writes a zip archive to path.
func WriteZip(tb testing.TB, path string, members []Member) {
	tb.Helper()
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, m := range members {
		hdr := &zip.FileHeader{Name: m.Name, Modified: m.modTime(), Method: zip.Deflate}
		mode := m.mode()
		if m.dir() {
			hdr.Method = zip.Store
			mode |= fs.ModeDir
		}
		if m.Symlink != "" {
			mode |= fs.ModeSymlink
		}
		hdr.SetMode(mode)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			tb.Fatalf("create member %s: %v", m.Name, err)
		}
		body := m.Body
		if m.Symlink != "" {
			body = m.Symlink
		}
		if _, err := io.WriteString(w, body); err != nil {
			tb.Fatalf("write %s: %v", m.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
}

// WriteFiles creates a directory tree below dir. Names ending in "/" are
// created as directories; other names as files holding their body.
func WriteFiles(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(p, 0o755); err != nil {
				tb.Fatalf("mkdir %s: %v", p, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			tb.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			tb.Fatalf("write %s: %v", p, err)
		}
	}
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(tb testing.TB, path string) string {
	tb.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test path
	if err != nil {
		tb.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// MockCache implements a basic concurrency-safe snapshot cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[digest.Digest][]byte
	hits int
	puts int
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[digest.Digest][]byte)}
}

// Get retrieves data by digest.
func (c *MockCache) Get(d digest.Digest) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[d]
	if ok {
		c.hits++
	}
	return data, ok
}

// Put stores data by digest.
func (c *MockCache) Put(d digest.Digest, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[d] = data
	c.puts++
	return nil
}

// Delete removes data by digest.
func (c *MockCache) Delete(d digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, d)
	return nil
}

// Hits returns the number of successful Get calls.
func (c *MockCache) Hits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}

// Puts returns the number of Put calls.
func (c *MockCache) Puts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.puts
}
