// Package disk provides a disk-backed snapshot cache.
//
// Snapshots live at <dir>/<algorithm>/<prefix>/<encoded>, where prefix is the
// first characters of the encoded archive digest. A hit refreshes the
// snapshot's modification time, so pruning under a byte budget evicts the
// least recently used archives first.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/arcfs/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
	filePerm              = 0o600
)

var (
	_ cache.Cache = (*Cache)(nil)
	_ cache.Sized = (*Cache)(nil)
)

// Cache implements cache.Cache using the local filesystem.
// It is safe for concurrent use, including by several processes sharing dir.
type Cache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64 // 0 = unlimited
	now            func() time.Time

	bytes   atomic.Int64
	pruneMu sync.Mutex
}

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxBytes bounds the total size of stored snapshots. 0 disables the
// limit.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New opens the cache rooted at dir, creating it if needed, and sums the
// snapshots already present.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.shardPrefixLen < 0:
		return nil, errors.New("shard prefix length must be >= 0")
	case c.maxBytes < 0:
		return nil, errors.New("max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, fmt.Errorf("scan cache %s: %w", dir, err)
	}
	c.bytes.Store(size)
	return c, nil
}

// Get returns the snapshot stored for the archive digest d and marks it
// recently used.
func (c *Cache) Get(d digest.Digest) ([]byte, bool) {
	path, err := c.path(d)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the digest, not user input
	if err != nil {
		return nil, false
	}
	now := c.now()
	_ = os.Chtimes(path, now, now) //nolint:errcheck // recency is best effort
	return data, true
}

// Put stores the snapshot for d. An existing snapshot is kept, since equal
// digests describe equal archives. Snapshots larger than the limit are
// dropped without error.
func (c *Cache) Put(d digest.Digest, data []byte) error {
	path, err := c.path(d)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	size := int64(len(data))
	if ok, err := c.reserve(size); err != nil || !ok {
		return err
	}
	committed, err := c.commit(path, data)
	if err != nil {
		return fmt.Errorf("store snapshot %s: %w", d, err)
	}
	if committed {
		c.bytes.Add(size)
	}
	return nil
}

// commit writes data next to path under a staging name and renames it into
// place. It reports false when a concurrent writer committed first.
func (c *Cache) commit(path string, data []byte) (bool, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return false, err
	}
	tmp, err := os.CreateTemp(dir, stagingPrefix+"*")
	if err != nil {
		return false, err
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, filePerm)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return false, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		if _, statErr := os.Stat(path); statErr == nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete drops the snapshot for d. A missing snapshot is not an error.
func (c *Cache) Delete(d digest.Digest) error {
	path, err := c.path(d)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	c.bytes.Add(-info.Size())
	return nil
}

// MaxBytes returns the configured size limit (0 = unlimited).
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the total size of stored snapshots.
func (c *Cache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Prune evicts the least recently used snapshots until at most targetBytes
// remain, and returns the number of bytes freed.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	freed, remaining, err := pruneDir(c.dir, max(targetBytes, 0))
	if err != nil {
		return 0, err
	}
	c.bytes.Store(remaining)
	return freed, nil
}

func (c *Cache) path(d digest.Digest) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	encoded := d.Encoded()
	base := filepath.Join(c.dir, d.Algorithm().String())
	if c.shardPrefixLen == 0 {
		return filepath.Join(base, encoded), nil
	}
	return filepath.Join(base, encoded[:min(c.shardPrefixLen, len(encoded))], encoded), nil
}

// reserve makes room for a snapshot of size bytes, pruning if needed, and
// reports whether it fits.
func (c *Cache) reserve(size int64) (bool, error) {
	switch {
	case c.maxBytes == 0:
		return true, nil
	case size > c.maxBytes:
		return false, nil
	case c.SizeBytes()+size <= c.maxBytes:
		return true, nil
	}
	if _, err := c.Prune(c.maxBytes - size); err != nil {
		return false, err
	}
	return c.SizeBytes()+size <= c.maxBytes, nil
}
