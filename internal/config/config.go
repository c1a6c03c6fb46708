// Package config loads dashboard configuration.
//
// PRECEDENCE (highest wins):
//  1. Environment variables
//  2. Configuration file (config.yaml)
//  3. Built-in defaults
//
// The same three-source merge every 12-factor-ish service ends up with.
// main() additionally loads a .env file via godotenv before calling Load,
// so .env entries arrive here as ordinary environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the dashboard needs at startup.
// Using a struct for config (instead of individual parameters) makes it easy
// to pass around as a single value and to extend without touching signatures.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// BackendOrigin is the fixed origin of the CodeVault REST API.
	// All data operations are proxied there; it is not configurable per
	// request, only at startup.
	BackendOrigin string `yaml:"backend_origin"`

	// SessionDBPath is the SQLite file holding session records.
	// ":memory:" is valid and used by tests.
	SessionDBPath string `yaml:"session_db_path"`

	// CookieSecret seals the session cookie. Any non-empty string works;
	// it is stretched to a fixed-size key before use.
	CookieSecret string `yaml:"cookie_secret"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Dev enables template reloading from disk.
	Dev bool `yaml:"dev"`

	// BackendTimeout bounds every round-trip to the backend.
	BackendTimeout time.Duration `yaml:"backend_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:           ":8080",
		BackendOrigin:  "http://127.0.0.1:8000",
		SessionDBPath:  "data/sessions.db",
		CookieSecret:   "dev-secret-change-in-production",
		LogLevel:       "info",
		BackendTimeout: 15 * time.Second,
	}
}

// Load builds the final configuration: defaults, then the YAML file at path
// (skipped silently when path is "" and ./config.yaml does not exist), then
// environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine — defaults plus env cover it.
	default:
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg fields from environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("BACKEND_ORIGIN"); v != "" {
		cfg.BackendOrigin = v
	}
	if v := os.Getenv("SESSION_DB_PATH"); v != "" {
		cfg.SessionDBPath = v
	}
	if v := os.Getenv("COOKIE_SECRET"); v != "" {
		cfg.CookieSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DEV"); v != "" {
		cfg.Dev = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BackendTimeout = d
		}
	}
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	u, err := url.Parse(c.BackendOrigin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_origin %q is not an absolute URL", c.BackendOrigin)
	}
	if c.CookieSecret == "" {
		return fmt.Errorf("cookie_secret must not be empty")
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("backend_timeout must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel translates the textual log level into a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
