// Package config holds the viewer's file-based configuration. Flags
// override file values; the file is optional.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration.
type Config struct {
	// DelayMS paces playback instance transitions, in milliseconds.
	DelayMS int `yaml:"delay_ms"`

	// Filter restricts ingestion to artifact names matching this regular
	// expression. Empty accepts everything.
	Filter string `yaml:"filter"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// SnapshotDir, when set, receives one PNG frame per table change.
	SnapshotDir string `yaml:"snapshot_dir"`

	// FrameWidth and FrameHeight size the offscreen render target.
	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DelayMS:     100,
		LogLevel:    "info",
		FrameWidth:  1280,
		FrameHeight: 720,
	}
}

// Load reads path over the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Delay returns DelayMS as a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

func (c Config) validate() error {
	if c.DelayMS < 0 {
		return fmt.Errorf("delay_ms must not be negative")
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
