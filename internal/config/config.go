// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package config

import (
	"time"

	"github.com/tomtom215/auditkeep/internal/audit"
	"github.com/tomtom215/auditkeep/internal/buffer"
	"github.com/tomtom215/auditkeep/internal/database"
	"github.com/tomtom215/auditkeep/internal/health"
	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/notify"
	"github.com/tomtom215/auditkeep/internal/retention"
)

// Config is the complete process configuration.
type Config struct {
	Database  database.Config `koanf:"database"`
	External  ExternalConfig  `koanf:"external"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Buffer    buffer.Config   `koanf:"buffer"`
	Audit     AuditConfig     `koanf:"audit"`
	Retention RetentionConfig `koanf:"retention"`
	Notify    notify.Config   `koanf:"notify"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Site      SiteConfig      `koanf:"site"`

	// Settings seeds the runtime settings store (buffer.use_external,
	// retention.*, archive.*).
	Settings map[string]any `koanf:"settings"`
}

// ExternalConfig selects a client/server store as the primary store.
type ExternalConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Driver         string        `koanf:"driver" validate:"omitempty,oneof=mysql postgres"`
	DSN            string        `koanf:"dsn"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// Store returns the store description, or nil when disabled.
func (e ExternalConfig) Store() *database.ExternalConfig {
	if !e.Enabled {
		return nil
	}
	return &database.ExternalConfig{Driver: e.Driver, DSN: e.DSN, ConnectTimeout: e.ConnectTimeout}
}

// ArchiveConfig is the store the pruner switches to when archiving is on.
type ArchiveConfig struct {
	Driver         string        `koanf:"driver" validate:"omitempty,oneof=mysql postgres"`
	DSN            string        `koanf:"dsn"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// Store returns the store description, or nil when no DSN is set.
func (a ArchiveConfig) Store() *database.ExternalConfig {
	if a.DSN == "" {
		return nil
	}
	return &database.ExternalConfig{Driver: a.Driver, DSN: a.DSN, ConnectTimeout: a.ConnectTimeout}
}

// AuditConfig tunes the event logger.
type AuditConfig struct {
	MetadataRetries int `koanf:"metadata_retries" validate:"gte=0,lte=10"`
}

// Logger returns the audit.Config for these settings.
func (a AuditConfig) Logger() audit.Config {
	cfg := audit.DefaultConfig()
	cfg.MetadataRetries = a.MetadataRetries
	return cfg
}

// RetentionConfig schedules the pruner. The policy itself lives in the
// runtime settings.
type RetentionConfig struct {
	Interval    time.Duration `koanf:"interval"`
	LogResults  bool          `koanf:"log_results"`
	MetaAlertID int           `koanf:"meta_alert_id" validate:"gte=10"`
}

// Job returns the retention.JobConfig for these settings.
func (r RetentionConfig) Job() retention.JobConfig {
	return retention.JobConfig{LogResults: r.LogResults, MetaAlertID: r.MetaAlertID}
}

// BreakerConfig tunes the store health probe.
type BreakerConfig struct {
	MaxFailures uint32        `koanf:"max_failures" validate:"gte=1"`
	OpenTimeout time.Duration `koanf:"open_timeout"`
	Timeout     time.Duration `koanf:"timeout"`
}

// Probe returns the health.ProbeConfig for these settings.
func (b BreakerConfig) Probe() health.ProbeConfig {
	cfg := health.DefaultProbeConfig("")
	cfg.MaxFailures = b.MaxFailures
	if b.OpenTimeout > 0 {
		cfg.OpenTimeout = b.OpenTimeout
	}
	if b.Timeout > 0 {
		cfg.Timeout = b.Timeout
	}
	return cfg
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`
	RateWindow      time.Duration `koanf:"rate_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config without the output writer.
type LoggingConfig struct {
	Level     string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format    string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

// Logging returns the logging.Config for these settings.
func (l LoggingConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	cfg.Timestamp = l.Timestamp
	return cfg
}

// SiteConfig identifies this deployment.
type SiteConfig struct {
	ID int `koanf:"id" validate:"gte=0"`
}

// defaultConfig returns the configuration used when nothing is set.
func defaultConfig() *Config {
	return &Config{
		Database: database.Config{
			Driver:         database.DialectDuckDB,
			DSN:            "/data/auditkeep.duckdb",
			TablePrefix:    database.DefaultTablePrefix,
			ConnectTimeout: 5 * time.Second,
			MaxOpenConns:   4,
		},
		External: ExternalConfig{
			Enabled:        false,
			ConnectTimeout: 5 * time.Second,
		},
		Archive: ArchiveConfig{
			ConnectTimeout: 5 * time.Second,
		},
		Buffer: buffer.DefaultConfig(),
		Audit: AuditConfig{
			MetadataRetries: 0,
		},
		Retention: RetentionConfig{
			Interval:    time.Hour,
			LogResults:  true,
			MetaAlertID: retention.DefaultMetaAlertID,
		},
		Notify: notify.DefaultConfig(),
		Breaker: BreakerConfig{
			MaxFailures: 3,
			OpenTimeout: 30 * time.Second,
			Timeout:     5 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       100,
			RateWindow:      time.Minute,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Timestamp: true,
		},
		Site: SiteConfig{ID: 0},
		// Non-nil so koanf can merge file and env settings into it.
		Settings: map[string]any{},
	}
}
