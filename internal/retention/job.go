// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package retention

import (
	"context"

	"github.com/tomtom215/auditkeep/internal/audit"
	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/settings"
)

// DefaultMetaAlertID is the alert code of the "records pruned" meta-event.
const DefaultMetaAlertID = 6000

// EventLogger records the prune meta-event. *audit.Logger implements it.
type EventLogger interface {
	Log(ctx context.Context, alertID int, data map[string]any, opts ...audit.LogOption) (*audit.Result, error)
}

// JobConfig configures a Job.
type JobConfig struct {
	// LogResults records a meta-event for every run that deleted rows.
	LogResults bool

	// MetaAlertID is the meta-event alert code.
	MetaAlertID int
}

// Job runs one prune with the policy currently in settings and, when
// enabled, records what it deleted as an audit event of its own.
type Job struct {
	pruner   *Pruner
	settings settings.Provider
	events   EventLogger
	config   JobConfig
}

// NewJob creates a Job. events may be nil when LogResults is off.
func NewJob(pruner *Pruner, provider settings.Provider, events EventLogger, cfg JobConfig) *Job {
	if cfg.MetaAlertID == 0 {
		cfg.MetaAlertID = DefaultMetaAlertID
	}
	return &Job{pruner: pruner, settings: provider, events: events, config: cfg}
}

// Run prunes once.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	res, err := j.pruner.Prune(ctx, PolicyFromSettings(j.settings))
	if err != nil {
		return nil, err
	}

	if res.Deleted == 0 || !j.config.LogResults || j.events == nil {
		return res, nil
	}

	_, lerr := j.events.Log(ctx, j.config.MetaAlertID, map[string]any{
		"EventCount": res.Deleted,
		"Query":      res.Query(),
	})
	if lerr != nil {
		logging.Ctx(ctx).Warn().Err(lerr).Int64("deleted", res.Deleted).Msg("Failed to record prune event")
	}
	return res, nil
}
