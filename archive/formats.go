package archive

import (
	"github.com/meigma/arcfs/driver"
	"github.com/meigma/arcfs/driver/targz"
	"github.com/meigma/arcfs/driver/tarzst"
	"github.com/meigma/arcfs/driver/zip"
)

// DefaultFormats returns the formats Open tries, in priority order:
// gzip tarballs, then zip, then zstd tarballs.
func DefaultFormats() []driver.Format {
	return []driver.Format{
		targz.New(),
		zip.New(),
		tarzst.New(),
	}
}
