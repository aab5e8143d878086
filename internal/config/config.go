// Package config loads and validates runsearch configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Tracking server settings.
	TrackingURI      string
	TrackingToken    string // Bearer token; takes precedence over basic auth.
	TrackingUsername string
	TrackingPassword string
	RequestTimeout   time.Duration

	// Search defaults.
	MaxResults   int  // Page size when a request does not set one.
	FetchParents bool // Backfill lineage parents by default.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed values are reported together rather than silently replaced.
func Load() (Config, error) {
	var errs []error
	str := func(key, def string) string { return envStr(key, def) }
	integer := func(key string, def int) int {
		v, err := envInt(key, def)
		errs = append(errs, err)
		return v
	}
	boolean := func(key string, def bool) bool {
		v, err := envBool(key, def)
		errs = append(errs, err)
		return v
	}
	duration := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		errs = append(errs, err)
		return v
	}

	cfg := Config{
		TrackingURI:      str("MLFLOW_TRACKING_URI", ""),
		TrackingToken:    str("MLFLOW_TRACKING_TOKEN", ""),
		TrackingUsername: str("MLFLOW_TRACKING_USERNAME", ""),
		TrackingPassword: str("MLFLOW_TRACKING_PASSWORD", ""),
		RequestTimeout:   duration("RUNSEARCH_REQUEST_TIMEOUT", 30*time.Second),
		MaxResults:       integer("RUNSEARCH_MAX_RESULTS", 100),
		FetchParents:     boolean("RUNSEARCH_FETCH_PARENTS", true),
		OTELEndpoint:     str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:     boolean("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:      str("OTEL_SERVICE_NAME", "runsearch"),
		LogLevel:         str("RUNSEARCH_LOG_LEVEL", "info"),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.TrackingURI == "" {
		return fmt.Errorf("config: MLFLOW_TRACKING_URI is required")
	}
	if u, err := url.Parse(c.TrackingURI); err != nil || u.Host == "" {
		return fmt.Errorf("config: MLFLOW_TRACKING_URI %q is not an absolute URL", c.TrackingURI)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("config: RUNSEARCH_MAX_RESULTS must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: RUNSEARCH_REQUEST_TIMEOUT must be positive")
	}
	if c.TrackingPassword != "" && c.TrackingUsername == "" {
		return fmt.Errorf("config: MLFLOW_TRACKING_PASSWORD is set without MLFLOW_TRACKING_USERNAME")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
