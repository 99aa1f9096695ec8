package main

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the CLI settings. Values come from an optional YAML file and
// are overridden by ARCFS_* environment variables.
type Config struct {
	Log LogConfig `yaml:"log"`

	// CacheDir enables the snapshot cache when set.
	CacheDir string `yaml:"cacheDir" env:"ARCFS_CACHE_DIR"`

	// CacheMaxBytes bounds the snapshot cache (0 = unlimited).
	CacheMaxBytes int64 `yaml:"cacheMaxBytes" env:"ARCFS_CACHE_MAX_BYTES"`

	// ExtractWorkers is the zip extraction parallelism.
	ExtractWorkers int `yaml:"extractWorkers" env:"ARCFS_EXTRACT_WORKERS" env-default:"4"`

	// CompressionLevel is passed to the codec. 0 keeps the format default.
	CompressionLevel int `yaml:"compressionLevel" env:"ARCFS_COMPRESSION_LEVEL"`

	// Overwrite lets extraction replace existing files. Defaults to true.
	Overwrite bool `yaml:"overwrite" env:"ARCFS_OVERWRITE"`

	// PreserveMode and PreserveTimes apply archived metadata on extraction.
	// Both default to true.
	PreserveMode  bool `yaml:"preserveMode" env:"ARCFS_PRESERVE_MODE"`
	PreserveTimes bool `yaml:"preserveTimes" env:"ARCFS_PRESERVE_TIMES"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level" env:"ARCFS_LOG_LEVEL" env-default:"warn"`

	// Format is text or json.
	Format string `yaml:"format" env:"ARCFS_LOG_FORMAT" env-default:"text"`

	// Output is stderr or file.
	Output string `yaml:"output" env:"ARCFS_LOG_OUTPUT" env-default:"stderr"`

	// FilePath is the log file when Output is file.
	FilePath string `yaml:"filePath" env:"ARCFS_LOG_FILE"`

	// Rotation settings for file output.
	MaxSize    int  `yaml:"maxSize" env:"ARCFS_LOG_MAX_SIZE" env-default:"10"`
	MaxBackups int  `yaml:"maxBackups" env:"ARCFS_LOG_MAX_BACKUPS" env-default:"3"`
	MaxAge     int  `yaml:"maxAge" env:"ARCFS_LOG_MAX_AGE" env-default:"7"`
	Compress   bool `yaml:"compress" env:"ARCFS_LOG_COMPRESS"`
}

// defaultConfig returns the settings whose default is not the zero value
// and must survive an explicit false in the file. env-default cannot express
// these: cleanenv applies it to any field still zero after reading.
func defaultConfig() Config {
	return Config{
		Overwrite:     true,
		PreserveMode:  true,
		PreserveTimes: true,
	}
}

// loadConfig reads path, if given, then the environment.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}
