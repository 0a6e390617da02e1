// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/auditkeep/config.yaml",
	"/etc/auditkeep/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load reads configuration in layers, later layers winning:
//  1. Defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first default
// path that exists, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names (lower case) to config paths.
var envMappings = map[string]string{
	// Local store
	"database_driver":          "database.driver",
	"database_dsn":             "database.dsn",
	"duckdb_path":              "database.dsn",
	"database_table_prefix":    "database.table_prefix",
	"database_connect_timeout": "database.connect_timeout",
	"database_max_open_conns":  "database.max_open_conns",

	// External and archive stores
	"external_enabled":         "external.enabled",
	"external_driver":          "external.driver",
	"external_dsn":             "external.dsn",
	"external_connect_timeout": "external.connect_timeout",
	"archive_driver":           "archive.driver",
	"archive_dsn":              "archive.dsn",

	// Buffer
	"buffer_backend":        "buffer.backend",
	"buffer_path":           "buffer.path",
	"buffer_sync_writes":    "buffer.sync_writes",
	"buffer_redis_addr":     "buffer.redis_addr",
	"buffer_redis_password": "buffer.redis_password",
	"buffer_redis_db":       "buffer.redis_db",
	"buffer_key_prefix":     "buffer.key_prefix",
	"buffer_drain_interval": "buffer.drain_interval",
	"redis_addr":            "buffer.redis_addr",
	"redis_password":        "buffer.redis_password",

	// Audit logger
	"audit_metadata_retries": "audit.metadata_retries",

	// Retention schedule
	"retention_interval":      "retention.interval",
	"retention_log_results":   "retention.log_results",
	"retention_meta_alert_id": "retention.meta_alert_id",

	// Runtime settings
	"buffer_use_external":     "settings.buffer.use_external",
	"retention_date_enabled":  "settings.retention.date_enabled",
	"retention_max_age":       "settings.retention.max_age",
	"retention_count_enabled": "settings.retention.count_enabled",
	"retention_max_count":     "settings.retention.max_count",
	"archive_enabled":         "settings.archive.enabled",

	// Notifications
	"notify_backend":    "notify.backend",
	"notify_topic":      "notify.topic",
	"notify_queue_size": "notify.queue_size",
	"nats_url":          "notify.nats_url",

	// Health probe
	"breaker_max_failures": "breaker.max_failures",
	"breaker_open_timeout": "breaker.open_timeout",
	"breaker_timeout":      "breaker.timeout",

	// HTTP server
	"http_addr":               "server.addr",
	"server_addr":             "server.addr",
	"server_read_timeout":     "server.read_timeout",
	"server_write_timeout":    "server.write_timeout",
	"server_shutdown_timeout": "server.shutdown_timeout",
	"rate_limit_requests":     "server.rate_limit",
	"rate_limit_window":       "server.rate_window",

	// Logging
	"log_level":     "logging.level",
	"log_format":    "logging.format",
	"log_caller":    "logging.caller",
	"log_timestamp": "logging.timestamp",

	// Site
	"site_id": "site.id",
}

// envTransformFunc maps an environment variable to its config path.
// Unknown variables map to "" and are ignored.
//
// Examples:
//   - DATABASE_DRIVER -> database.driver
//   - EXTERNAL_DSN -> external.dsn
//   - RETENTION_MAX_AGE -> settings.retention.max_age
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
