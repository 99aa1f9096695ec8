// Package cache stores enumerated archive indexes so reopening an unchanged
// archive skips parsing it.
//
// Snapshots are keyed by the digest of the archive's bytes. A mutated
// archive has a new digest, so a cached snapshot can never describe stale
// content; old snapshots are left for the cache's own eviction.
package cache

import "github.com/opencontainers/go-digest"

// Cache provides content-addressed storage for encoded snapshots.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a snapshot by archive digest.
	// Returns nil, false if nothing is cached.
	Get(d digest.Digest) ([]byte, bool)

	// Put stores a snapshot for an archive digest.
	Put(d digest.Digest, data []byte) error

	// Delete removes the snapshot for an archive digest.
	// Implementations should treat missing entries as a no-op.
	Delete(d digest.Digest) error
}

// Sized is implemented by caches with a byte budget.
type Sized interface {
	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
