// Package targz implements the gzip-compressed tarball format.
package targz

import (
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/internal/tarball"
)

// Name is the format identifier.
const Name = "tar.gz"

var magic = []byte{0x1f, 0x8b}

// Format recognizes ".tar.gz" and ".tgz" files with a gzip header.
type Format struct{}

// New returns the gzip tarball format.
func New() Format {
	return Format{}
}

// Name implements driver.Format.
func (Format) Name() string {
	return Name
}

// Accept implements driver.Format.
func (Format) Accept(path string) bool {
	return driver.HasExt(path, ".tar.gz", ".tgz") && driver.Sniff(path, magic)
}

// Bind implements driver.Format.
func (Format) Bind(path string, opts ...driver.Option) driver.Driver {
	return tarball.New(path, codec, opts...)
}

var codec = tarball.Codec{
	Name: Name,
	NewReader: func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
	NewWriter: func(w io.Writer, level int, levelSet bool) (io.WriteCloser, error) {
		if !levelSet {
			level = gzip.DefaultCompression
		}
		return gzip.NewWriterLevel(w, level)
	},
}
