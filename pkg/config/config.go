// Package config holds application configuration and logger construction.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Adapter backend names.
const (
	BackendBlueZ = "bluez"
	BackendGoBLE = "goble"
)

// Config holds application configuration.
type Config struct {
	LogLevel          string        `yaml:"log_level" default:"info"`
	Backend           string        `yaml:"backend" default:"bluez"`
	ScanCooldown      time.Duration `yaml:"scan_cooldown" default:"5m"`
	DiscoveryDuration time.Duration `yaml:"discovery_duration" default:"10s"`
	PrefsDir          string        `yaml:"prefs_dir"`
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// UnmarshalYAML decodes the config, accepting durations in Go syntax
// ("5m", "10s"). Absent keys keep their current (default) values.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		LogLevel          string `yaml:"log_level"`
		Backend           string `yaml:"backend"`
		ScanCooldown      string `yaml:"scan_cooldown"`
		DiscoveryDuration string `yaml:"discovery_duration"`
		PrefsDir          string `yaml:"prefs_dir"`
	}

	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}

	if r.LogLevel != "" {
		c.LogLevel = r.LogLevel
	}
	if r.Backend != "" {
		c.Backend = r.Backend
	}
	if r.PrefsDir != "" {
		c.PrefsDir = r.PrefsDir
	}
	if r.ScanCooldown != "" {
		d, err := time.ParseDuration(r.ScanCooldown)
		if err != nil {
			return fmt.Errorf("invalid scan_cooldown: %w", err)
		}
		c.ScanCooldown = d
	}
	if r.DiscoveryDuration != "" {
		d, err := time.ParseDuration(r.DiscoveryDuration)
		if err != nil {
			return fmt.Errorf("invalid discovery_duration: %w", err)
		}
		c.DiscoveryDuration = d
	}

	return nil
}

// Validate checks field values that have a closed set of accepted inputs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBlueZ, BackendGoBLE:
	default:
		return fmt.Errorf("invalid backend %q (must be %s or %s)", c.Backend, BackendBlueZ, BackendGoBLE)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}

	return nil
}

// ResolvePrefsDir returns the preference store directory, defaulting to the
// user config dir when unset.
func (c *Config) ResolvePrefsDir() (string, error) {
	if c.PrefsDir != "" {
		return c.PrefsDir, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config dir: %w", err)
	}
	return filepath.Join(base, "btman"), nil
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}
