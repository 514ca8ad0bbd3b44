// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers an optional YAML file and GREENALLOC_* env vars on top.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Risk tolerance bounds accepted by the allocation engine.
const (
	minRiskTolerance = 0
	maxRiskTolerance = 100
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory extraction job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of extraction workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the upload idempotency cache. Zero or less is unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxBatches bounds the in-memory batch store. Zero is unbounded.
	MaxBatches int `koanf:"max_batches"`

	// BatchRetention drops batches older than this. Zero keeps them forever.
	BatchRetention time.Duration `koanf:"batch_retention"`

	// ExtractionTimeout caps a single batch extraction.
	ExtractionTimeout time.Duration `koanf:"extraction_timeout"`

	// ExtractionConcurrency bounds concurrent manifest parsing per batch.
	ExtractionConcurrency int `koanf:"extraction_concurrency"`

	// FixtureLatencyMin and FixtureLatencyMax bound the simulated PDF extraction delay.
	FixtureLatencyMin time.Duration `koanf:"fixture_latency_min"`
	FixtureLatencyMax time.Duration `koanf:"fixture_latency_max"`

	// MaxUploadBytes caps the request body of POST /batches.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// DefaultRiskTolerance is used when a request omits risk_tolerance.
	DefaultRiskTolerance float64 `koanf:"default_risk_tolerance"`

	// ClampRiskTolerance clamps out-of-range request values into [0,100]
	// instead of rejecting them.
	ClampRiskTolerance bool `koanf:"clamp_risk_tolerance"`

	// CORSAllowedOrigins lists origins allowed by the CORS middleware.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		QueueSize:             1_000,
		WorkerCount:           runtime.NumCPU(),
		DedupeSize:            50_000,
		MaxBatches:            10_000,
		BatchRetention:        24 * time.Hour,
		ExtractionTimeout:     30 * time.Second,
		ExtractionConcurrency: 4,
		FixtureLatencyMin:     1200 * time.Millisecond,
		FixtureLatencyMax:     1800 * time.Millisecond,
		MaxUploadBytes:        32 << 20,
		DefaultRiskTolerance:  50,
		ClampRiskTolerance:    true,
		CORSAllowedOrigins:    []string{"*"},
	}
}

// Validate reports the first invalid setting, wrapped with ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.MaxBatches < 0:
		return fmt.Errorf("%w: max_batches must not be negative, got %d", ErrInvalidConfig, c.MaxBatches)
	case c.BatchRetention < 0:
		return fmt.Errorf("%w: batch_retention must not be negative, got %s", ErrInvalidConfig, c.BatchRetention)
	case c.ExtractionTimeout <= 0:
		return fmt.Errorf("%w: extraction_timeout must be positive, got %s", ErrInvalidConfig, c.ExtractionTimeout)
	case c.ExtractionConcurrency <= 0:
		return fmt.Errorf("%w: extraction_concurrency must be positive, got %d", ErrInvalidConfig, c.ExtractionConcurrency)
	case c.FixtureLatencyMin < 0 || c.FixtureLatencyMax < c.FixtureLatencyMin:
		return fmt.Errorf("%w: fixture latency range [%s, %s] is invalid", ErrInvalidConfig, c.FixtureLatencyMin, c.FixtureLatencyMax)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive, got %d", ErrInvalidConfig, c.MaxUploadBytes)
	case c.DefaultRiskTolerance < minRiskTolerance || c.DefaultRiskTolerance > maxRiskTolerance:
		return fmt.Errorf("%w: default_risk_tolerance must be within [0,100], got %v", ErrInvalidConfig, c.DefaultRiskTolerance)
	}
	return nil
}
