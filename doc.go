// Package arcfs lets a file manager browse and edit the contents of
// compressed archives as if they were ordinary directories.
//
// Two readers implement the shared [Reader] contract: [archive.Reader] binds
// to one archive file through a format driver (tar.gz, zip and tar.zst ship
// by default), and [disk.Reader] works on host paths. Copying across the
// boundary goes through the archive reader, which extracts archive entries
// to a disk directory or adds disk entries below an archive directory.
//
// # Quick Start
//
// Open an archive and list its root:
//
//	r, err := arcfs.OpenArchive(ctx, "release.tar.gz")
//	if err != nil {
//	    return err
//	}
//	entries, err := r.List(r.RootDir())
//
// Extract a directory to disk:
//
//	docs, err := r.ResolvePath("/docs/")
//	if err != nil {
//	    return err
//	}
//	d, err := arcfs.NewDisk()
//	if err != nil {
//	    return err
//	}
//	err = r.Copy(ctx, []arcfs.Entry{docs}, nil, d.CurrentDir(), nil)
//
// Archive paths are rooted at "/" and directories end with "/". Every
// mutation rewrites the archive through a temporary file and renames it into
// place, so a failed or cancelled operation leaves the archive untouched.
//
// # Caching
//
// Enumerating a large compressed tarball means decompressing all of it. Use
// [archive.WithSnapshotCache] with the cache/disk package to keep encoded
// indexes keyed by the archive's content digest:
//
//	c, err := diskcache.New("/var/cache/arcfs")
//	if err != nil {
//	    return err
//	}
//	r, err := arcfs.OpenArchive(ctx, path, archive.WithSnapshotCache(c))
package arcfs
