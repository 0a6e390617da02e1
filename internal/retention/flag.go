// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package retention

import (
	"context"
	"fmt"

	"github.com/tomtom215/auditkeep/internal/settings"
)

// AdvisoryFlag is the cooperative "archive migration in progress" marker.
//
// It is not a lock. Set does not compare-and-swap and IsSet is a plain
// read, so a migration that starts between the Pruner's IsSet check and its
// deletes is not excluded. Migration tooling sets the flag before it starts
// and clears it when done; the Pruner only reads it.
type AdvisoryFlag struct {
	store settings.Store
	key   string
}

// NewAdvisoryFlag returns the migration flag stored in s.
func NewAdvisoryFlag(s settings.Store) *AdvisoryFlag {
	return &AdvisoryFlag{store: s, key: settings.KeyArchiveMigrationInProgress}
}

// Set raises the flag.
func (f *AdvisoryFlag) Set(_ context.Context) error {
	if err := f.store.Set(f.key, true); err != nil {
		return fmt.Errorf("set %s: %w", f.key, err)
	}
	return nil
}

// Clear lowers the flag.
func (f *AdvisoryFlag) Clear(_ context.Context) error {
	if err := f.store.Set(f.key, false); err != nil {
		return fmt.Errorf("clear %s: %w", f.key, err)
	}
	return nil
}

// IsSet reports whether the flag is raised. A nil flag is never set.
func (f *AdvisoryFlag) IsSet(_ context.Context) bool {
	if f == nil || f.store == nil {
		return false
	}
	return f.store.GetBool(f.key)
}
