package driver

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// HasExt reports whether path ends with one of exts, ignoring case.
func HasExt(path string, exts ...string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Sniff reports whether the regular file at path starts with one of the
// signatures. An empty file matches, so a freshly created archive can be
// opened and filled. Any error reading the file yields false.
func Sniff(path string, signatures ...[]byte) bool {
	f, err := os.Open(path) //nolint:gosec // caller-provided archive path is intentional
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if info.Size() == 0 {
		return true
	}

	var head [8]byte
	n, err := io.ReadFull(f, head[:])
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(head[:n], sig) {
			return true
		}
	}
	return false
}
