package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Delay() != 100*time.Millisecond {
		t.Errorf("Delay = %v, want 100ms", cfg.Delay())
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worldview.yaml")
	const body = `delay_ms: 250
filter: "^cloud"
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Delay() != 250*time.Millisecond {
		t.Errorf("Delay = %v, want 250ms", cfg.Delay())
	}
	if cfg.Filter != "^cloud" {
		t.Errorf("Filter = %q", cfg.Filter)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	// Untouched fields keep defaults.
	if cfg.FrameWidth != 1280 || cfg.FrameHeight != 720 {
		t.Errorf("frame = %dx%d, want 1280x720", cfg.FrameWidth, cfg.FrameHeight)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load succeeded on missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted unknown log level")
	}

	if err := os.WriteFile(path, []byte("delay_ms: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted negative delay")
	}
}
