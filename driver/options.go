package driver

import (
	"log/slog"
	"time"
)

// DefaultExtractWorkers is the extraction concurrency used by formats that
// support random access.
const DefaultExtractWorkers = 4

// Config holds settings shared by all drivers.
type Config struct {
	logger         *slog.Logger
	overwrite      bool
	preserveMode   bool
	preserveTimes  bool
	extractWorkers int
	level          int
	levelSet       bool
	now            func() time.Time
}

// Option configures a Driver.
type Option func(*Config)

// WithLogger sets the logger for driver operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithOverwrite controls whether extraction replaces existing files.
// Defaults to true.
func WithOverwrite(overwrite bool) Option {
	return func(c *Config) {
		c.overwrite = overwrite
	}
}

// WithPreserveMode controls whether extracted files keep archived permissions.
// Defaults to true.
func WithPreserveMode(preserve bool) Option {
	return func(c *Config) {
		c.preserveMode = preserve
	}
}

// WithPreserveTimes controls whether extracted files keep archived modification times.
// Defaults to true.
func WithPreserveTimes(preserve bool) Option {
	return func(c *Config) {
		c.preserveTimes = preserve
	}
}

// WithExtractWorkers sets the number of concurrent extraction workers for
// formats with random access. Values < 1 force serial extraction.
func WithExtractWorkers(n int) Option {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.extractWorkers = n
	}
}

// WithCompressionLevel sets the codec level used when rewriting archives.
// The meaning of the value is codec specific; unset uses the codec default.
func WithCompressionLevel(level int) Option {
	return func(c *Config) {
		c.level = level
		c.levelSet = true
	}
}

// WithClock overrides the time source used for new directory markers.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.now = now
	}
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) Config {
	c := Config{
		overwrite:      true,
		preserveMode:   true,
		preserveTimes:  true,
		extractWorkers: DefaultExtractWorkers,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Log returns the logger, falling back to a discard logger if nil.
func (c *Config) Log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Overwrite reports whether extraction replaces existing files.
func (c *Config) Overwrite() bool { return c.overwrite }

// PreserveMode reports whether extraction keeps archived permissions.
func (c *Config) PreserveMode() bool { return c.preserveMode }

// PreserveTimes reports whether extraction keeps archived modification times.
func (c *Config) PreserveTimes() bool { return c.preserveTimes }

// ExtractWorkers returns the extraction concurrency.
func (c *Config) ExtractWorkers() int { return c.extractWorkers }

// CompressionLevel returns the configured level and whether one was set.
func (c *Config) CompressionLevel() (int, bool) { return c.level, c.levelSet }

// Now returns the current time from the configured clock.
func (c *Config) Now() time.Time { return c.now() }
