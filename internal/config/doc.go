// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

/*
Package config loads the Auditkeep process configuration.

# Configuration Sources

Load layers three sources with koanf, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, or the first of config.yaml,
    config.yml, /etc/auditkeep/config.yaml, /etc/auditkeep/config.yml
 3. Environment variables, mapped through an explicit table

# Sections

  - database: local store (duckdb or sqlite)
  - external: optional MySQL or PostgreSQL primary store
  - archive: store the pruner uses while archiving is enabled
  - buffer: BadgerDB or Redis buffer store and drain schedule
  - audit: event logger tunables
  - retention: pruner schedule and meta-event
  - notify: post-write signal bus
  - breaker: store health probe
  - server: HTTP API
  - logging: zerolog output
  - site: current site identifier
  - settings: initial runtime settings (buffer.use_external, retention.*,
    archive.*)

# Environment Variables

Selected variables:

	DATABASE_DRIVER, DATABASE_DSN       local store
	EXTERNAL_ENABLED, EXTERNAL_DRIVER   external store
	EXTERNAL_DSN
	BUFFER_BACKEND, BUFFER_PATH         buffer store
	REDIS_ADDR
	BUFFER_USE_EXTERNAL                 settings.buffer.use_external
	RETENTION_DATE_ENABLED              settings.retention.date_enabled
	RETENTION_MAX_AGE                   settings.retention.max_age
	RETENTION_COUNT_ENABLED             settings.retention.count_enabled
	RETENTION_MAX_COUNT                 settings.retention.max_count
	ARCHIVE_ENABLED                     settings.archive.enabled
	NOTIFY_BACKEND, NATS_URL            notifications
	HTTP_ADDR                           server.addr
	LOG_LEVEL, LOG_FORMAT               logging

See envMappings for the full table.

# Validation

Struct tags are checked with go-playground/validator through the validation
package; cross-field rules return *ConfigError.
*/
package config
