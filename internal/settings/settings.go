// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package settings provides the runtime settings the event logger and the
// retention pruner consult on every call: buffer policy, retention policy
// and archiving flags.
//
// Settings are injected into consumers as a Provider rather than read from
// global state. The default implementation keeps them in a koanf instance
// seeded from the "settings" section of the configuration.
package settings

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// Setting keys.
const (
	KeyUseExternalBuffer = "buffer.use_external"

	KeyRetentionDateEnabled  = "retention.date_enabled"
	KeyRetentionMaxAge       = "retention.max_age"
	KeyRetentionCountEnabled = "retention.count_enabled"
	KeyRetentionMaxCount     = "retention.max_count"

	KeyArchivingEnabled           = "archive.enabled"
	KeyArchiveMigrationInProgress = "archive.migration_in_progress"
)

// Provider reads settings.
type Provider interface {
	// GetBool returns the boolean at key, false when absent.
	GetBool(key string) bool

	// Get returns the raw value at key, def when absent.
	Get(key string, def any) any
}

// Store is a Provider that can also be written.
type Store interface {
	Provider
	Set(key string, value any) error
}

// Koanf is a Store backed by a koanf instance.
type Koanf struct {
	mu sync.RWMutex
	k  *koanf.Koanf
}

// NewKoanf creates a Store seeded with initial values. Keys may be nested
// maps or dotted paths.
func NewKoanf(initial map[string]any) (*Koanf, error) {
	k := koanf.New(".")
	if len(initial) > 0 {
		if err := k.Load(confmap.Provider(initial, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
	}
	return &Koanf{k: k}, nil
}

// GetBool accepts real booleans as well as the string and numeric forms
// ("true", "yes", "1", 1) settings commonly arrive in from env or forms.
func (s *Koanf) GetBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch v := s.k.Get(key).(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on", "enable", "enabled":
			return true
		}
		return false
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// Get returns the value at key or def.
func (s *Koanf) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.k.Exists(key) {
		return def
	}
	return s.k.Get(key)
}

// Set writes value at key.
func (s *Koanf) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.k.Set(key, value)
}

// All returns a flattened copy of every setting.
func (s *Koanf) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.All()
}

// String reads key as a string.
func String(p Provider, key, def string) string {
	switch v := p.Get(key, def).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Int64 reads key as an integer. Strings are parsed; anything unparseable
// returns def.
func Int64(p Provider, key string, def int64) int64 {
	switch v := p.Get(key, def).(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}
