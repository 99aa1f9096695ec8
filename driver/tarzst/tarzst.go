// Package tarzst implements the zstd-compressed tarball format.
package tarzst

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/internal/tarball"
)

// Name is the format identifier.
const Name = "tar.zst"

var magic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Format recognizes ".tar.zst" and ".tzst" files with a zstd frame header.
type Format struct{}

// New returns the zstd tarball format.
func New() Format {
	return Format{}
}

// Name implements driver.Format.
func (Format) Name() string {
	return Name
}

// Accept implements driver.Format.
func (Format) Accept(path string) bool {
	return driver.HasExt(path, ".tar.zst", ".tzst") && driver.Sniff(path, magic)
}

// Bind implements driver.Format.
func (Format) Bind(path string, opts ...driver.Option) driver.Driver {
	return tarball.New(path, codec, opts...)
}

var codec = tarball.Codec{
	Name: Name,
	NewReader: func(r io.Reader) (io.ReadCloser, error) {
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	},
	NewWriter: func(w io.Writer, level int, levelSet bool) (io.WriteCloser, error) {
		if !levelSet {
			return zstd.NewWriter(w)
		}
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	},
}
