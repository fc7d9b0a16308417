package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the recollect service and jobs.
// Environment variables are parsed with the RECOLLECT_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override driver: auto, postgres, sqlite
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8000"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SQLite Configuration; empty resolves to ~/.recollect/recollect.db
	SQLitePath string `envconfig:"SQLITE_PATH" default:""`

	// Recording archive
	RecordingsDir   string `envconfig:"RECORDINGS_DIR" default:""`
	RecordingSource string `envconfig:"RECORDING_SOURCE" default:"stationary"`
	FFmpegPath      string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath     string `envconfig:"FFPROBE_PATH" default:"ffprobe"`

	// Search engine
	CatalogTimeoutSeconds int    `envconfig:"CATALOG_TIMEOUT_SECONDS" default:"5"`
	ProbeStrategy         string `envconfig:"PROBE_STRATEGY" default:"midpoint"`
	SessionIdleTTLMinutes int    `envconfig:"SESSION_IDLE_TTL_MINUTES" default:"0"`
	ReaperIntervalSeconds int    `envconfig:"REAPER_INTERVAL_SECONDS" default:"60"`

	// Health
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`

	// Catalog sync
	SyncIntervalSeconds int `envconfig:"SYNC_INTERVAL_SECONDS" default:"0"`
	ChecksumWorkers     int `envconfig:"CHECKSUM_WORKERS" default:"4"`

	// Logging
	LogFile  string `envconfig:"LOG_FILE" default:""`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver and SQLitePath when left empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud-dev", "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve sqlite path: %w", err)
		}
		c.SQLitePath = filepath.Join(home, ".recollect", "recollect.db")
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for DB_DRIVER=postgres")
	}

	switch c.ProbeStrategy {
	case "", "midpoint", "coverage":
	default:
		return fmt.Errorf("unsupported PROBE_STRATEGY: %s", c.ProbeStrategy)
	}
	if c.ChecksumWorkers < 1 {
		c.ChecksumWorkers = 1
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with RECOLLECT_
// Example: RECOLLECT_HTTP_PORT, RECOLLECT_RECORDINGS_DIR
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("RECOLLECT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("sqlite_path", cfg.SQLitePath).
		Str("postgres_dsn_present", func() string {
			if cfg.PostgresDSN != "" {
				return "true"
			}
			return "false"
		}()).
		Str("recordings_dir", cfg.RecordingsDir).
		Str("probe_strategy", cfg.ProbeStrategy).
		Int("catalog_timeout_seconds", cfg.CatalogTimeoutSeconds).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
	}

	cfg.HTTPPort = 8000

	cfg.BuildTarget = "local"
	cfg.DBDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(os.TempDir(), "recollect-test.db")

	cfg.RecordingSource = "stationary"
	cfg.FFmpegPath = "ffmpeg"
	cfg.FFprobePath = "ffprobe"

	cfg.CatalogTimeoutSeconds = 5
	cfg.ProbeStrategy = "midpoint"
	cfg.ReaperIntervalSeconds = 60
	cfg.HealthIntervalSeconds = 30
	cfg.HealthProbeTimeoutSeconds = 2
	cfg.BootstrapTimeoutSeconds = 5
	cfg.ChecksumWorkers = 4
	cfg.LogLevel = "debug"

	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// CatalogTimeout returns the per-prompt catalog deadline; zero disables it.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.CatalogTimeoutSeconds) * time.Second
}

// SessionIdleTTL returns how long an untouched search is kept; zero keeps searches forever.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLMinutes) * time.Minute
}

func (c *Config) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSeconds) * time.Second
}

func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSeconds) * time.Second
}

func (c *Config) HealthProbeTimeout() time.Duration {
	return time.Duration(c.HealthProbeTimeoutSeconds) * time.Second
}

func (c *Config) BootstrapTimeout() time.Duration {
	return time.Duration(c.BootstrapTimeoutSeconds) * time.Second
}

func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}
