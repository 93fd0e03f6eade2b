// Package config loads the exchange CLI configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, as in EXCHANGE_BASE_URL.
const Prefix = "EXCHANGE"

// Config holds the CLI configuration.
type Config struct {
	// BaseURL is the transport's default base URL.
	BaseURL string `envconfig:"BASE_URL"`

	// Timeout bounds each call. Zero means no bound.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s"`

	// RateLimit is the maximum number of requests per second. Zero means unlimited.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Transport selects the HTTP client: "http" or "resty".
	Transport string `envconfig:"TRANSPORT" default:"http"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		LogLevel:  "info",
		Transport: "http",
	}
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Transport {
	case "http", "resty":
	default:
		return fmt.Errorf("unknown transport %q, want http or resty", c.Transport)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit)
	}
	return nil
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
