package jobsystem

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "5us" or "10ms" as well as plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// TraceConfig controls the Chrome-tracing recorder.
type TraceConfig struct {
	// Enabled starts the recorder together with the system.
	Enabled bool `yaml:"enabled"`

	// Path is the output file written on flush.
	Path string `yaml:"path"`
}

// Config is the YAML-loadable configuration of the job system.
type Config struct {
	// Workers is the number of worker goroutines. 0 means one per
	// logical CPU.
	Workers int `yaml:"workers"`

	// StartIndex is the index of the first worker the system spawns
	// itself. 1 leaves worker 0 to be driven via RunWorker(0).
	StartIndex int `yaml:"start_index"`

	// SleepInterval is how long an idle worker sleeps after repeated
	// empty polls.
	SleepInterval Duration `yaml:"sleep_interval"`

	// Trace configures the execution trace recorder.
	Trace TraceConfig `yaml:"trace"`

	// LogLevel names a logging level: debug, info, warn, error.
	// Validate checks it; Init does not apply it, the logger used is
	// the one passed in Options.Logger.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when nothing is loaded:
// one worker per CPU, all workers self-started, tracing off.
func DefaultConfig() Config {
	return Config{
		Workers:       0,
		StartIndex:    0,
		SleepInterval: Duration(5 * time.Microsecond),
		Trace: TraceConfig{
			Enabled: false,
			Path:    "log.json",
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML config file, fills unset fields with
// defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate normalizes the config in place. Out-of-range values are
// clamped the same way the scheduler clamps them; only unusable values
// are reported as errors.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.StartIndex < 0 {
		c.StartIndex = 0
	}
	if c.StartIndex > 1 {
		c.StartIndex = 1
	}
	if c.SleepInterval <= 0 {
		c.SleepInterval = Duration(5 * time.Microsecond)
	}
	if c.Trace.Path == "" {
		c.Trace.Path = "log.json"
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}
