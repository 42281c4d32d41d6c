// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Halyard tools.
//
// Configuration is loaded from a single file specified by:
//   - HALYARD_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Halyard tools.
type Config struct {
	// Daemon configures the connection to the agent daemon.
	Daemon DaemonConfig `yaml:"daemon"`

	// Reconnect tunes the backoff policy.
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`
}

// DaemonConfig configures the connection to the agent daemon.
type DaemonConfig struct {
	// URL is the daemon's WebSocket endpoint (ws:// or wss://).
	URL string `yaml:"url"`

	// TokenFile is the path of a file holding the connect token.
	// The token lives in a file rather than the config so configs can
	// be shared and committed without leaking credentials.
	TokenFile string `yaml:"token_file"`
}

// ReconnectConfig tunes the backoff policy. Delays are duration
// strings ("1s", "500ms").
type ReconnectConfig struct {
	// BaseDelay is the first retry delay. Default: 1s.
	BaseDelay string `yaml:"base_delay"`

	// MaxDelay caps the exponential backoff. Default: 30s.
	MaxDelay string `yaml:"max_delay"`
}

// Default returns the default configuration. Defaults fill fields the
// config file leaves out; the daemon URL has no default and must be
// configured.
func Default() *Config {
	return &Config{
		Reconnect: ReconnectConfig{
			BaseDelay: "1s",
			MaxDelay:  "30s",
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the HALYARD_CONFIG environment
// variable. If HALYARD_CONFIG is not set, Load fails; there is no
// discovery fallback.
func Load() (*Config, error) {
	configPath := os.Getenv("HALYARD_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("HALYARD_CONFIG environment variable not set; " +
			"set it to the path of your halyard.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Daemon.URL == "" {
		errs = append(errs, fmt.Errorf("daemon.url is required"))
	} else if !strings.HasPrefix(c.Daemon.URL, "ws://") && !strings.HasPrefix(c.Daemon.URL, "wss://") {
		errs = append(errs, fmt.Errorf("daemon.url must be a ws:// or wss:// endpoint, got %q", c.Daemon.URL))
	}

	if _, err := time.ParseDuration(c.Reconnect.BaseDelay); err != nil {
		errs = append(errs, fmt.Errorf("reconnect.base_delay: %w", err))
	}
	if _, err := time.ParseDuration(c.Reconnect.MaxDelay); err != nil {
		errs = append(errs, fmt.Errorf("reconnect.max_delay: %w", err))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of: %v", levels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Delays returns the parsed reconnect delays. Call Validate first;
// unparseable values fall back to zero, which downstream code treats
// as "use the built-in default".
func (c *Config) Delays() (base, max time.Duration) {
	base, _ = time.ParseDuration(c.Reconnect.BaseDelay)
	max, _ = time.ParseDuration(c.Reconnect.MaxDelay)
	return base, max
}

// Token reads the connect token from Daemon.TokenFile. Returns "" with
// no error when no token file is configured.
func (c *Config) Token() (string, error) {
	if c.Daemon.TokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Daemon.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SlogLevel maps LogLevel onto a slog level string parseable by
// slog.Level.UnmarshalText. Unknown values map to info.
func (c *Config) SlogLevel() string {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return c.LogLevel
	}
	return "info"
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
