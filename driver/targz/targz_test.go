package targz_test

import (
	"testing"

	"github.com/meigma/arcfs/driver/drivertest"
	"github.com/meigma/arcfs/driver/targz"
	"github.com/meigma/arcfs/internal/testutil"
)

func TestFormat(t *testing.T) {
	t.Parallel()
	drivertest.Run(t, drivertest.Harness{
		Format: targz.New(),
		Ext:    ".tar.gz",
		Write:  testutil.WriteTarGz,
	})
}

func TestFormat_TgzExtension(t *testing.T) {
	t.Parallel()
	drivertest.Run(t, drivertest.Harness{
		Format: targz.New(),
		Ext:    ".TGZ",
		Write:  testutil.WriteTarGz,
	})
}
