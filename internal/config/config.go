// Package config loads the meterwatch YAML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	dirName  = ".meterwatch"
	fileName = "config.yaml"

	DefaultEndpoint = "http://localhost:3000/api/dashboard"
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 4 * time.Second
	DefaultMockAddr = ":3000"
)

// Config is the root configuration.
type Config struct {
	Endpoint    string        `yaml:"endpoint"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxInFlight int           `yaml:"max_in_flight"`
	Log         Log           `yaml:"log"`
	Mock        Mock          `yaml:"mock"`

	// StaleAfter is nil when unset, in which case Staleness follows the
	// interval. An explicit 0 disables the stale tag.
	StaleAfter *time.Duration `yaml:"stale_after"`
}

// Log configures the log sink.
type Log struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Mock configures the simulated upstream.
type Mock struct {
	Addr  string `yaml:"addr"`
	Slave int    `yaml:"slave"`
}

// Dir returns the per-user data directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// DefaultPath returns the config file looked up when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), fileName)
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads path, applies defaults and validates the result. An empty
// path means the default location, which may be absent.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	b, err := os.ReadFile(expandHome(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 1
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(Dir(), "meterwatch.log")
	}
	c.Log.File = expandHome(c.Log.File)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Mock.Addr == "" {
		c.Mock.Addr = DefaultMockAddr
	}
	if c.Mock.Slave == 0 {
		c.Mock.Slave = 1
	}
}

// Validate checks the configuration for values the monitor cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q must be an absolute http(s) URL", c.Endpoint)
	}
	if c.Interval < time.Second {
		return fmt.Errorf("interval %s is below the 1s minimum", c.Interval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxInFlight < 1 {
		return fmt.Errorf("max_in_flight must be at least 1, got %d", c.MaxInFlight)
	}
	if c.StaleAfter != nil && *c.StaleAfter < 0 {
		return fmt.Errorf("stale_after must not be negative, got %s", *c.StaleAfter)
	}
	return nil
}

// Staleness returns the age after which a reading is shown as stale. It is
// three intervals unless stale_after was set, and is resolved at call time
// so interval overrides applied after loading are honored.
func (c Config) Staleness() time.Duration {
	if c.StaleAfter != nil {
		return *c.StaleAfter
	}
	return 3 * c.Interval
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
