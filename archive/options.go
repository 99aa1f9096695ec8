package archive

import (
	"log/slog"
	"time"

	"github.com/meigma/arcfs/cache"
	"github.com/meigma/arcfs/driver"
)

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger for reader and driver operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithFormats replaces the ordered list of formats tried by Open.
// The first format accepting a file wins. Defaults to DefaultFormats.
func WithFormats(formats ...driver.Format) Option {
	return func(r *Reader) {
		r.formats = formats
	}
}

// WithDriverOptions passes options to the bound driver, such as extraction
// or compression settings.
func WithDriverOptions(opts ...driver.Option) Option {
	return func(r *Reader) {
		r.driverOpts = append(r.driverOpts, opts...)
	}
}

// WithSnapshotCache stores enumerated indexes in c, keyed by the archive's
// content digest. Reopening an unchanged archive then skips parsing it.
func WithSnapshotCache(c cache.Cache) Option {
	return func(r *Reader) {
		r.cache = c
	}
}

// WithClock overrides the time source for the synthetic root and new
// directory markers.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		r.now = now
	}
}
