package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// stagingPrefix names the temp files Put writes before renaming them into
// place. They belong to an in-flight Put and are never counted or pruned.
const stagingPrefix = ".staging-"

type snapshotFile struct {
	path    string
	size    int64
	modTime time.Time
}

// snapshotFiles lists the committed snapshots below root. Only files laid
// out as <alg>/[<prefix>/]<encoded>, whose name parses as a digest of that
// algorithm, are returned.
func snapshotFiles(root string) ([]snapshotFile, error) {
	var files []snapshotFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil // removed by a concurrent Delete or Prune
			}
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), stagingPrefix) {
			return nil
		}
		if !isSnapshotPath(root, path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		files = append(files, snapshotFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

func isSnapshotPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || len(parts) > 3 {
		return false
	}
	alg, encoded := parts[0], parts[len(parts)-1]
	if len(parts) == 3 && !strings.HasPrefix(encoded, parts[1]) {
		return false
	}
	return digest.NewDigestFromEncoded(digest.Algorithm(alg), encoded).Validate() == nil
}

func dirSize(root string) (int64, error) {
	files, err := snapshotFiles(root)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.size
	}
	return total, nil
}

// pruneDir removes the least recently written snapshots until at most
// targetBytes remain.
func pruneDir(root string, targetBytes int64) (freed int64, remaining int64, err error) {
	files, err := snapshotFiles(root)
	if err != nil {
		return 0, 0, err
	}
	for _, f := range files {
		remaining += f.size
	}
	if remaining <= max(targetBytes, 0) {
		return 0, remaining, nil
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})
	for _, f := range files {
		if remaining <= targetBytes {
			break
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return freed, remaining, err
		}
		remaining -= f.size
		freed += f.size
	}
	return freed, remaining, nil
}
