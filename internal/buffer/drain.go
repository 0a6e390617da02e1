// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package buffer

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/auditkeep/internal/logging"
)

// Writer writes one buffered entry to its final store.
type Writer interface {
	WriteBuffered(ctx context.Context, entry *Entry) error
}

// WriterFunc is a function type that implements Writer.
type WriterFunc func(ctx context.Context, entry *Entry) error

// WriteBuffered implements Writer.
func (f WriterFunc) WriteBuffered(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

// DrainResult contains the results of a drain run.
type DrainResult struct {
	// TotalPending is the number of entries found when the drain started.
	TotalPending int `json:"total_pending"`

	// Drained is the number of entries written and removed.
	Drained int `json:"drained"`

	// Failed is the number of entries the writer refused. They stay buffered.
	Failed int `json:"failed"`

	// Errors contains the writer and removal errors, in order.
	Errors []error `json:"-"`

	Duration time.Duration `json:"duration"`
}

// Drain replays every buffered entry through writer in key order.
//
// An entry is removed only after writer succeeds. A failed entry is kept and
// the drain moves on, so one bad entry never blocks the ones after it. Only
// one drain runs per store at a time; a concurrent call returns
// ErrDrainInProgress. Drain stops early when ctx is cancelled and returns
// the partial result with ctx.Err(), and likewise with ErrDrainLockLost when
// the store is a LockHolder that no longer holds the lock.
func Drain(ctx context.Context, store Store, writer Writer) (*DrainResult, error) {
	if writer == nil {
		return nil, ErrNilWriter
	}

	release, ok, err := store.TryLockDrain(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock buffer drain: %w", err)
	}
	if !ok {
		return nil, ErrDrainInProgress
	}
	defer release()

	start := time.Now()
	entries, err := store.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pending entries: %w", err)
	}

	result := &DrainResult{}
	defer RecordDrain(result)

	result.TotalPending = len(entries)
	if result.TotalPending == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	logging.Info().Int("pending_entries", result.TotalPending).Msg("Buffer drain found pending entries")

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, ctx.Err())
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}

		if h, ok := store.(LockHolder); ok && !h.DrainLockHeld() {
			// Another drainer may own these entries now.
			logging.Error().Int("remaining", result.TotalPending-result.Drained-result.Failed).
				Msg("Buffer drain stopped: drain lock lost")
			result.Errors = append(result.Errors, ErrDrainLockLost)
			result.Duration = time.Since(start)
			return result, ErrDrainLockLost
		}

		if err := writer.WriteBuffered(ctx, entry); err != nil {
			logging.Warn().Err(err).Str("key", entry.Key).Int("alert_id", entry.Event.Occurrence.AlertID).
				Msg("Buffer drain failed to write entry")
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("write entry %s: %w", entry.Key, err))
			continue
		}

		if err := store.Remove(ctx, entry.Key); err != nil {
			// Written but still buffered: the next drain writes it again.
			logging.Error().Err(err).Str("key", entry.Key).Msg("Buffer drain failed to remove written entry")
			result.Errors = append(result.Errors, fmt.Errorf("remove entry %s: %w", entry.Key, err))
		}
		result.Drained++
		logging.Trace().Str("key", entry.Key).Int("alert_id", entry.Event.Occurrence.AlertID).
			Msg("Buffer drain wrote entry")
	}

	result.Duration = time.Since(start)

	logging.Info().
		Int("drained", result.Drained).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Buffer drain complete")

	return result, nil
}
