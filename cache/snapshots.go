package cache

import (
	"context"
	_ "crypto/sha256" // registers the digest algorithm
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/snapshot"
)

// EnumerateFunc parses an archive into its index.
type EnumerateFunc func(ctx context.Context) ([]fstype.Entry, error)

// Snapshots loads archive indexes through a Cache.
//
// Concurrent loads of the same archive content share one enumeration.
type Snapshots struct {
	cache  Cache
	group  singleflight.Group
	logger *slog.Logger
}

// SnapshotsOption configures Snapshots.
type SnapshotsOption func(*Snapshots)

// WithLogger sets the logger for cache activity.
func WithLogger(logger *slog.Logger) SnapshotsOption {
	return func(s *Snapshots) {
		s.logger = logger
	}
}

// NewSnapshots wraps c.
func NewSnapshots(c Cache, opts ...SnapshotsOption) *Snapshots {
	s := &Snapshots{cache: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Snapshots) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Load returns the index of the archive at path. A cached snapshot for the
// archive's current digest is used when present; otherwise enumerate runs
// and its result is stored. Enumeration errors are not cached.
func (s *Snapshots) Load(ctx context.Context, path string, enumerate EnumerateFunc) ([]fstype.Entry, error) {
	d, err := Digest(path)
	if err != nil {
		return nil, err
	}

	v, err, shared := s.group.Do(d.String(), func() (any, error) {
		if data, ok := s.cache.Get(d); ok {
			entries, err := snapshot.Decode(data, path)
			if err == nil {
				s.log().Debug("snapshot hit", "path", path, "digest", d)
				return entries, nil
			}
			s.log().Warn("discarding unreadable snapshot", "digest", d, "error", err)
			_ = s.cache.Delete(d) //nolint:errcheck // best-effort cleanup
		}

		entries, err := enumerate(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Put(d, snapshot.Encode(entries)); err != nil {
			s.log().Warn("storing snapshot failed", "digest", d, "error", err)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}

	entries := v.([]fstype.Entry) //nolint:errcheck // group only stores []fstype.Entry
	if shared {
		entries = slices.Clone(entries)
	}
	// Snapshots are path independent; identical content may sit at several paths.
	for i := range entries {
		entries[i].Root = path
	}
	return entries, nil
}

// Digest returns the sha256 digest of the file at path.
func Digest(path string) (digest.Digest, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided archive path is intentional
	if err != nil {
		return "", err
	}
	defer f.Close()
	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return d, nil
}
