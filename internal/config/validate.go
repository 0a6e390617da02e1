// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package config

import (
	"fmt"

	"github.com/tomtom215/auditkeep/internal/retention"
	"github.com/tomtom215/auditkeep/internal/settings"
	"github.com/tomtom215/auditkeep/internal/validation"
)

// ConfigError describes one invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

// Validate checks struct tags first, then the rules that span fields.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateExternal(); err != nil {
		return err
	}
	if err := c.Buffer.Validate(); err != nil {
		return err
	}
	if c.Retention.Interval < 0 {
		return &ConfigError{Field: "retention.interval", Message: "must not be negative"}
	}
	if c.Buffer.DrainInterval < 0 {
		return &ConfigError{Field: "buffer.drain_interval", Message: "must not be negative"}
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		return &ConfigError{Field: "server.rate_window", Message: "must be positive when rate_limit is set"}
	}
	return c.validateSettings()
}

func (c *Config) validateExternal() error {
	if c.External.Enabled {
		if c.External.Driver == "" {
			return &ConfigError{Field: "external.driver", Message: "is required when external.enabled is true"}
		}
		if c.External.DSN == "" {
			return &ConfigError{Field: "external.dsn", Message: "is required when external.enabled is true"}
		}
	}
	if c.Archive.DSN != "" && c.Archive.Driver == "" {
		return &ConfigError{Field: "archive.driver", Message: "is required when archive.dsn is set"}
	}
	return nil
}

// validateSettings rejects a retention policy the pruner could never run.
func (c *Config) validateSettings() error {
	s, err := settings.NewKoanf(c.Settings)
	if err != nil {
		return &ConfigError{Field: "settings", Message: err.Error()}
	}

	policy := retention.PolicyFromSettings(s)
	if policy.DateEnabled {
		if _, err := retention.ParseMaxAge(policy.MaxAge); err != nil {
			return &ConfigError{Field: "settings." + settings.KeyRetentionMaxAge, Message: err.Error()}
		}
	}
	if policy.CountEnabled && policy.MaxCount < 1 {
		return &ConfigError{Field: "settings." + settings.KeyRetentionMaxCount, Message: "must be at least 1"}
	}
	if s.GetBool(settings.KeyArchivingEnabled) && c.Archive.Store() == nil {
		return &ConfigError{Field: "archive.dsn", Message: "is required when settings.archive.enabled is true"}
	}
	return nil
}
