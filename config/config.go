// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Units        UnitsConfig        `yaml:"units"`
	Reachability ReachabilityConfig `yaml:"reachability"`
	Validate     ValidateConfig     `yaml:"validate"`
	Serve        ServeConfig        `yaml:"serve"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// UnitsConfig configures the quantity system.
type UnitsConfig struct {
	Convention string `yaml:"convention"` // "decimal" or "binary"
}

// ReachabilityConfig configures url_reachable probes.
// Enabled is a pointer so an explicit "enabled: false" survives the
// default of true.
type ReachabilityConfig struct {
	Enabled *bool         `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// IsEnabled reports whether reachability probes should run.
func (r ReachabilityConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ValidateConfig configures the validation engine.
type ValidateConfig struct {
	Workers int `yaml:"workers"` // 0 means GOMAXPROCS
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Load reads a config file, applies YASL_* environment overrides, fills
// in defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is the fallback when no config file exists.
//
// Environment variables:
//
//	YASL_LOG_LEVEL            - Log level: debug, info, warn, error (default: info)
//	YASL_LOG_FORMAT           - Log format: json or console (default: console)
//	YASL_UNITS_CONVENTION     - Data unit convention: decimal or binary (default: decimal)
//	YASL_REACHABILITY_ENABLED - Enable url_reachable probes (default: true)
//	YASL_REACHABILITY_TIMEOUT - Per-probe deadline (default: 5s)
//	YASL_VALIDATE_WORKERS     - Pass-1 worker count (default: GOMAXPROCS)
//	YASL_SERVE_HOST           - Server host (default: 0.0.0.0)
//	YASL_SERVE_PORT           - Server port (default: 8080)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables and defaults. A missing file is not an error.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies YASL_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("YASL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("YASL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("YASL_UNITS_CONVENTION"); v != "" {
		cfg.Units.Convention = v
	}
	if v := os.Getenv("YASL_REACHABILITY_ENABLED"); v != "" {
		b := parseBool(v)
		cfg.Reachability.Enabled = &b
	}
	if v := os.Getenv("YASL_REACHABILITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reachability.Timeout = d
		}
	}
	if v := os.Getenv("YASL_VALIDATE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Validate.Workers = n
		}
	}
	if v := os.Getenv("YASL_SERVE_HOST"); v != "" {
		cfg.Serve.Host = v
	}
	if v := os.Getenv("YASL_SERVE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Serve.Port = port
		}
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func setDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Units.Convention == "" {
		cfg.Units.Convention = "decimal"
	}

	if cfg.Reachability.Timeout == 0 {
		cfg.Reachability.Timeout = 5 * time.Second
	}

	if cfg.Serve.Host == "" {
		cfg.Serve.Host = "0.0.0.0"
	}
	if cfg.Serve.Port == 0 {
		cfg.Serve.Port = 8080
	}
	if cfg.Serve.ReadTimeout == 0 {
		cfg.Serve.ReadTimeout = 30 * time.Second
	}
	if cfg.Serve.WriteTimeout == 0 {
		cfg.Serve.WriteTimeout = 60 * time.Second
	}
}

func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %q", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	validConventions := map[string]bool{"decimal": true, "binary": true}
	if !validConventions[cfg.Units.Convention] {
		return fmt.Errorf("units.convention must be 'decimal' or 'binary', got %q", cfg.Units.Convention)
	}

	if cfg.Validate.Workers < 0 {
		return fmt.Errorf("validate.workers must not be negative, got %d", cfg.Validate.Workers)
	}

	if cfg.Serve.Port < 1 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("serve.port must be in 1..65535, got %d", cfg.Serve.Port)
	}

	return nil
}
