// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package retention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/auditkeep/internal/database"
	"github.com/tomtom215/auditkeep/internal/health"
	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/metrics"
	"github.com/tomtom215/auditkeep/internal/models"
	"github.com/tomtom215/auditkeep/internal/settings"
)

// Errors
var (
	// ErrInvalidMaxAge is returned for a max_age that cannot be parsed.
	ErrInvalidMaxAge = errors.New("invalid retention max age")

	// ErrInvalidMaxCount is returned when the count policy is on with a
	// max_count below 1.
	ErrInvalidMaxCount = errors.New("invalid retention max count")

	// ErrStoreUnavailable is returned when the target store is unreachable.
	ErrStoreUnavailable = errors.New("retention store unavailable")
)

// No-op reasons.
const (
	ReasonDisabled        = "policy_disabled"
	ReasonMigration       = "migration_in_progress"
	ReasonUnderMaxCount   = "under_max_count"
	ReasonNothingEligible = "nothing_eligible"
	ReasonNothingDeleted  = "nothing_deleted"
)

// Store is the part of a store handle the Pruner uses. *database.Conn
// implements it.
type Store interface {
	health.Handle
	Name() string
	CountOccurrences(ctx context.Context) (int64, error)
	HighWaterMark(ctx context.Context, sel database.Selection) (int64, bool, error)
	DeleteMetadataUpTo(ctx context.Context, hwm int64) (int64, database.Statement, error)
	DeleteOccurrences(ctx context.Context, sel database.Selection, hwm int64) (int64, database.Statement, error)
	CreateTableIfMissing(ctx context.Context, table string) bool
}

// StoreFunc returns a store handle.
type StoreFunc func(ctx context.Context) Store

// Deps are the Pruner's collaborators.
type Deps struct {
	Settings settings.Provider
	Primary  StoreFunc
	Archive  StoreFunc
	Flag     *AdvisoryFlag
}

// Config holds Pruner tunables.
type Config struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Result describes a prune run. A no-op has Deleted == 0 and a Reason.
type Result struct {
	Deleted         int64    `json:"deleted"`
	MetadataDeleted int64    `json:"metadata_deleted"`
	Plan            []string `json:"plan,omitempty"`
	HighWaterMark   int64    `json:"high_water_mark,omitempty"`
	Cutoff          *float64 `json:"cutoff,omitempty"`
	MaxItems        int64    `json:"max_items,omitempty"`
	Total           int64    `json:"total"`
	Store           string   `json:"store,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

// Query returns the executed statements as one string.
func (r *Result) Query() string {
	return strings.Join(r.Plan, "; ")
}

func noop(reason string) *Result {
	return &Result{Reason: reason}
}

// Pruner deletes old audit rows according to a Policy.
type Pruner struct {
	deps   Deps
	config Config
}

// New creates a Pruner.
func New(deps Deps, cfg Config) *Pruner {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Pruner{deps: deps, config: cfg}
}

// Prune applies policy to the active store.
//
// Selection is oldest first by created_on. With the date policy on, only
// rows at or before the cutoff are eligible; with the count policy on, at
// most total-max_count+1 rows are. Both bounds apply together. Metadata is
// deleted first, by occurrence_id up to the highest selected id, then the
// selected occurrences. Each delete is one statement.
func (p *Pruner) Prune(ctx context.Context, policy Policy) (res *Result, err error) {
	start := time.Now()
	defer func() {
		var deleted int64
		if res != nil {
			deleted = res.Deleted
		}
		metrics.RecordPrune(deleted, time.Since(start), err)
	}()

	if !policy.Enabled() {
		return noop(ReasonDisabled), nil
	}
	if p.deps.Flag.IsSet(ctx) {
		logging.Ctx(ctx).Info().Msg("Archive migration in progress, skipping prune")
		return noop(ReasonMigration), nil
	}

	var cutoffFn func(time.Time) time.Time
	if policy.DateEnabled {
		if cutoffFn, err = ParseMaxAge(policy.MaxAge); err != nil {
			return nil, err
		}
	}
	if policy.CountEnabled && policy.MaxCount < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxCount, policy.MaxCount)
	}

	store, err := p.store(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	err = withTableRetry(ctx, store, func() error {
		var cerr error
		total, cerr = store.CountOccurrences(ctx)
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("count occurrences: %w", err)
	}

	if policy.CountEnabled && total < policy.MaxCount {
		return &Result{Total: total, Store: store.Name(), Reason: ReasonUnderMaxCount}, nil
	}

	res = &Result{Total: total, Store: store.Name()}
	var sel database.Selection

	if cutoffFn != nil {
		cutoff := models.Timestamp(cutoffFn(p.config.Clock()))
		res.Cutoff = &cutoff
		sel.Cutoff = &cutoff
	}
	if policy.CountEnabled {
		res.MaxItems = max(total-policy.MaxCount+1, 0)
		if res.MaxItems-1 == 0 {
			res.Reason = ReasonUnderMaxCount
			return res, nil
		}
		sel.Limit = res.MaxItems
	}

	var (
		hwm   int64
		found bool
	)
	err = withTableRetry(ctx, store, func() error {
		var herr error
		hwm, found, herr = store.HighWaterMark(ctx, sel)
		return herr
	})
	if err != nil {
		return nil, fmt.Errorf("high water mark: %w", err)
	}
	if !found {
		res.Reason = ReasonNothingEligible
		return res, nil
	}
	res.HighWaterMark = hwm

	err = withTableRetry(ctx, store, func() error {
		n, stmt, derr := store.DeleteMetadataUpTo(ctx, hwm)
		if derr == nil {
			res.MetadataDeleted = n
			res.Plan = append(res.Plan, stmt.String())
		}
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("delete metadata: %w", err)
	}

	err = withTableRetry(ctx, store, func() error {
		n, stmt, derr := store.DeleteOccurrences(ctx, sel, hwm)
		if derr == nil {
			res.Deleted = n
			res.Plan = append(res.Plan, stmt.String())
		}
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("delete occurrences: %w", err)
	}

	if res.Deleted == 0 {
		res.Reason = ReasonNothingDeleted
		return res, nil
	}

	logging.Ctx(ctx).Info().
		Str("store", res.Store).
		Int64("deleted", res.Deleted).
		Int64("metadata_deleted", res.MetadataDeleted).
		Int64("high_water_mark", hwm).
		Msg("Pruned audit records")
	return res, nil
}

// store picks the archive store when archiving is on.
func (p *Pruner) store(ctx context.Context) (Store, error) {
	get, name := p.deps.Primary, "primary"
	if p.deps.Settings != nil && p.deps.Settings.GetBool(settings.KeyArchivingEnabled) {
		get, name = p.deps.Archive, "archive"
	}
	if get == nil {
		return nil, fmt.Errorf("%w: no %s store", ErrStoreUnavailable, name)
	}

	store := get(ctx)
	if !health.IsHealthy(store) {
		var cause error = database.ErrNoConnection
		if store != nil {
			if cerr := store.ConnectErr(); cerr != nil {
				cause = cerr
			}
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, name, cause)
	}
	return store, nil
}

// withTableRetry runs op and, if it fails because a table is missing,
// creates both tables and runs it exactly once more.
func withTableRetry(ctx context.Context, store Store, op func() error) error {
	err := op()
	if !database.IsTableNotFound(err) {
		return err
	}
	logging.Ctx(ctx).Warn().Err(err).Str("store", store.Name()).Msg("Audit table missing, creating")
	store.CreateTableIfMissing(ctx, database.TableOccurrences)
	store.CreateTableIfMissing(ctx, database.TableMetadata)
	return op()
}
