// Package config loads render-core settings from TOML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
)

// Config is the top-level configuration document.
type Config struct {
	Render Render `toml:"render"`
	Log    Log    `toml:"log"`
}

// Render holds settings for the scene sessions and the program cache.
type Render struct {
	// SortDelay is the number of renders between bin sorts. 0 sorts every render, -1 never auto-sorts.
	SortDelay int `toml:"sort_delay"`

	// Workers is the maximum number of composer workers.
	Workers int `toml:"workers"`

	// SourceCache is the number of composed shader sets memoised by fingerprint.
	SourceCache int `toml:"source_cache"`

	// LogShaders logs every composed source at debug level.
	LogShaders bool `toml:"log_shaders"`

	// Whitewash replaces the fragment output with white, for inspecting geometry.
	Whitewash bool `toml:"whitewash"`

	// Picking enables the pick pass.
	Picking bool `toml:"picking"`
}

// Log mirrors logger.Options.
type Log struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Render: Render{
			SortDelay:   10,
			Workers:     4,
			SourceCache: 64,
			Picking:     true,
		},
		Log: Log{Level: "info"},
	}
}

// Parse decodes TOML on top of Default and validates the result.
//
// Parameters:
//   - data: TOML document
//
// Returns:
//   - Config: the merged configuration
//   - error: a decode or validation error
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a TOML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Render.SortDelay < -1 {
		errs = append(errs, fmt.Errorf("render.sort_delay must be >= -1, got %d", c.Render.SortDelay))
	}
	if c.Render.Workers <= 0 {
		errs = append(errs, fmt.Errorf("render.workers must be positive, got %d", c.Render.Workers))
	}
	if c.Render.SourceCache <= 0 {
		errs = append(errs, fmt.Errorf("render.source_cache must be positive, got %d", c.Render.SourceCache))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// LoggerOptions converts the log section for logger.New.
func (c Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}
