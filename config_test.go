package jobsystem

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig tests the built-in defaults
// Main test items:
// 1. Defaults pass validation unchanged
// 2. Tracing is off and writes to log.json when enabled
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Workers != 0 {
		t.Errorf("expected 0 workers (auto), got %d", cfg.Workers)
	}
	if cfg.Trace.Enabled {
		t.Error("tracing should default to off")
	}
	if cfg.Trace.Path != "log.json" {
		t.Errorf("unexpected trace path %q", cfg.Trace.Path)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("unexpected log level %q", cfg.LogLevel)
	}
}

// TestLoadConfig tests YAML loading
// Main test items:
// 1. Values from the file override defaults
// 2. Omitted fields keep their defaults
// 3. A missing file reports a wrapped error
func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
workers: 8
start_index: 1
sleep_interval: 10us
trace:
  enabled: true
  path: out.json
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 8 || cfg.StartIndex != 1 {
		t.Errorf("unexpected workers/start_index: %d/%d", cfg.Workers, cfg.StartIndex)
	}
	if cfg.SleepInterval != Duration(10*time.Microsecond) {
		t.Errorf("unexpected sleep interval %v", cfg.SleepInterval)
	}
	if !cfg.Trace.Enabled || cfg.Trace.Path != "out.json" {
		t.Errorf("unexpected trace config %+v", cfg.Trace)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("unexpected log level %q", cfg.LogLevel)
	}

	partial := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(partial, []byte("workers: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(partial)
	if err != nil {
		t.Fatalf("load partial: %v", err)
	}
	if cfg.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Workers)
	}
	if cfg.Trace.Path != "log.json" {
		t.Errorf("default trace path lost: %q", cfg.Trace.Path)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestConfigValidate tests clamping and rejection
// Main test items:
// 1. Out-of-range numeric fields are clamped, not rejected
// 2. An unknown log level is rejected
func TestConfigValidate(t *testing.T) {
	cfg := Config{
		Workers:       -4,
		StartIndex:    7,
		SleepInterval: Duration(-time.Second),
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Workers != 0 {
		t.Errorf("workers not clamped: %d", cfg.Workers)
	}
	if cfg.StartIndex != 1 {
		t.Errorf("start index not clamped: %d", cfg.StartIndex)
	}
	if cfg.SleepInterval <= 0 {
		t.Errorf("sleep interval not defaulted: %v", cfg.SleepInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level not defaulted: %q", cfg.LogLevel)
	}

	bad := DefaultConfig()
	bad.LogLevel = "verbose"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
