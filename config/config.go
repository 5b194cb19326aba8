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
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Usage     UsageConfig     `yaml:"usage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// UpstreamConfig configures the upstream service.
type UpstreamConfig struct {
	URL             string        `yaml:"url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// RateLimitConfig configures the per-client fixed window.
type RateLimitConfig struct {
	Limit      int  `yaml:"limit"`       // Requests per window
	WindowSecs int  `yaml:"window_secs"` // Window length in seconds
	Enforce    bool `yaml:"enforce"`     // Reject over-limit requests with 429
	Shards     int  `yaml:"shards"`      // In-memory store shards
}

// Window returns the window length as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSecs) * time.Second
}

// UsageConfig configures request log recording.
// Use "memory" for a bounded in-memory ring or "sqlite" for persistence.
type UsageConfig struct {
	Store         string        `yaml:"store"` // "memory" or "sqlite"
	DSN           string        `yaml:"dsn"`   // sqlite database path
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	RingSize      int           `yaml:"ring_size"` // memory store capacity
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // Enable /metrics endpoint
}

// Load reads configuration from a YAML file.
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

	// Environment variables always override file values
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	LIMITGATE_UPSTREAM_URL      - Upstream API URL (required)
//	LIMITGATE_SERVER_HOST       - Server host (default: 0.0.0.0)
//	LIMITGATE_SERVER_PORT       - Server port (default: 8080)
//	LIMITGATE_RATELIMIT_LIMIT   - Requests per window (default: 15)
//	LIMITGATE_RATELIMIT_WINDOW  - Window length in seconds (default: 10)
//	LIMITGATE_RATELIMIT_ENFORCE - Reject over-limit requests (default: false)
//	LIMITGATE_USAGE_STORE       - Usage store: memory or sqlite
//	LIMITGATE_USAGE_DSN         - SQLite path for usage store
//	LIMITGATE_LOG_LEVEL         - Log level: debug, info, warn, error
//	LIMITGATE_LOG_FORMAT        - Log format: json or console
//	LIMITGATE_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set LIMITGATE_UPSTREAM_URL")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("LIMITGATE_UPSTREAM_URL") != ""
}

// applyEnvOverrides applies LIMITGATE_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIMITGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LIMITGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LIMITGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("LIMITGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("LIMITGATE_UPSTREAM_URL"); v != "" {
		cfg.Upstream.URL = v
	}
	if v := os.Getenv("LIMITGATE_UPSTREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.Timeout = d
		}
	}

	if v := os.Getenv("LIMITGATE_RATELIMIT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Limit = n
		}
	}
	if v := os.Getenv("LIMITGATE_RATELIMIT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.WindowSecs = n
		}
	}
	if v := os.Getenv("LIMITGATE_RATELIMIT_ENFORCE"); v != "" {
		cfg.RateLimit.Enforce = parseBool(v)
	}

	if v := os.Getenv("LIMITGATE_USAGE_STORE"); v != "" {
		cfg.Usage.Store = v
	}
	if v := os.Getenv("LIMITGATE_USAGE_DSN"); v != "" {
		cfg.Usage.DSN = v
	}

	if v := os.Getenv("LIMITGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LIMITGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("LIMITGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.RateLimit.Limit == 0 {
		cfg.RateLimit.Limit = 15
	}
	if cfg.RateLimit.WindowSecs == 0 {
		cfg.RateLimit.WindowSecs = 10
	}
	if cfg.RateLimit.Shards == 0 {
		cfg.RateLimit.Shards = 32
	}

	if cfg.Usage.Store == "" {
		cfg.Usage.Store = "memory"
	}
	if cfg.Usage.DSN == "" {
		cfg.Usage.DSN = "limitgate.db"
	}
	if cfg.Usage.BatchSize == 0 {
		cfg.Usage.BatchSize = 100
	}
	if cfg.Usage.FlushInterval == 0 {
		cfg.Usage.FlushInterval = 10 * time.Second
	}
	if cfg.Usage.RingSize == 0 {
		cfg.Usage.RingSize = 4096
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}

	if cfg.RateLimit.Limit < 1 {
		return fmt.Errorf("rate_limit.limit must be > 0, got %d", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.WindowSecs < 1 {
		return fmt.Errorf("rate_limit.window_secs must be > 0, got %d", cfg.RateLimit.WindowSecs)
	}

	validStores := map[string]bool{"memory": true, "sqlite": true}
	if !validStores[cfg.Usage.Store] {
		return fmt.Errorf("usage.store must be 'memory' or 'sqlite', got %q", cfg.Usage.Store)
	}
	if cfg.Usage.Store == "sqlite" && cfg.Usage.DSN == "" {
		return fmt.Errorf("usage.dsn is required when usage.store is 'sqlite'")
	}

	return nil
}
