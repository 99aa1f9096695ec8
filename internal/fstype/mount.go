package fstype

// MountPoint describes a mounted filesystem a reader can browse from.
type MountPoint struct {
	// Device names the backing device or filesystem source.
	Device string

	// Description is a human-readable label.
	Description string

	// Mount is the directory entry at which the filesystem is mounted.
	Mount Entry

	// Size and Free are the total and available capacity in bytes.
	Size uint64
	Free uint64
}
