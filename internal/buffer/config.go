// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package buffer

import (
	"fmt"
	"time"
)

// Backends.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config holds Buffer Store configuration. It is the buffer section of the
// process config; the koanf tags are the YAML keys.
//
// Defaults: badger at /data/buffer with synchronous writes, Redis at
// localhost:6379 under the auditkeep:buffer prefix, a drain every minute
// and a 5m Redis drain lock.
type Config struct {
	Backend string `koanf:"backend" validate:"oneof=badger redis"`

	// BadgerDB
	Path             string `koanf:"path"`
	InMemory         bool   `koanf:"in_memory"`
	SyncWrites       bool   `koanf:"sync_writes"`
	MemTableSize     int64  `koanf:"memtable_size"`
	ValueLogFileSize int64  `koanf:"vlog_size"`
	NumCompactors    int    `koanf:"num_compactors"`
	Compression      bool   `koanf:"compression"`

	// Redis
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	KeyPrefix     string `koanf:"key_prefix"`

	DrainInterval time.Duration `koanf:"drain_interval"`
	DrainLockTTL  time.Duration `koanf:"drain_lock_ttl"`
}

// DefaultConfig favours durability over throughput.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendBadger,
		Path:             "/data/buffer",
		SyncWrites:       true,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		Compression:      true,
		RedisAddr:        "localhost:6379",
		KeyPrefix:        "auditkeep:buffer",
		DrainInterval:    time.Minute,
		DrainLockTTL:     5 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBadger:
		if c.Path == "" && !c.InMemory {
			return &ConfigError{Field: "Path", Message: "path is required for the badger backend"}
		}
		if c.NumCompactors != 0 && c.NumCompactors < 2 {
			return &ConfigError{Field: "NumCompactors", Message: "badger requires at least 2 compactors"}
		}
		if c.MemTableSize < 0 || c.ValueLogFileSize < 0 {
			return &ConfigError{Field: "MemTableSize", Message: "sizes must not be negative"}
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return &ConfigError{Field: "RedisAddr", Message: "redis address is required for the redis backend"}
		}
		if c.KeyPrefix == "" {
			return &ConfigError{Field: "KeyPrefix", Message: "key prefix is required for the redis backend"}
		}
	default:
		return &ConfigError{Field: "Backend", Message: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
	if c.DrainInterval < 0 {
		return &ConfigError{Field: "DrainInterval", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "buffer config error: " + e.Field + ": " + e.Message
}
