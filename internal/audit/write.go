// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/auditkeep/internal/buffer"
	"github.com/tomtom215/auditkeep/internal/database"
	"github.com/tomtom215/auditkeep/internal/health"
	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/metrics"
	"github.com/tomtom215/auditkeep/internal/models"
)

// WriteDirect inserts occ and then one metadata row per entry of data, in
// name order, and sets occ.ID.
//
// The two steps are deliberately not a transaction. Once the occurrence is
// written it is never rolled back: a failed metadata row is retried up to
// Config.MetadataRetries more times, then counted in the returned failure
// count and logged. An error is returned only when the occurrence itself
// could not be written, after one create-table-and-retry cycle for a
// missing table.
func (l *Logger) WriteDirect(ctx context.Context, conn Store, occ *models.Occurrence, data models.Data) (int, error) {
	if !health.IsHealthy(conn) {
		return 0, ErrStoreUnavailable
	}

	created := false
	_, err := conn.InsertOccurrence(ctx, occ)
	if database.IsTableNotFound(err) {
		l.createTables(ctx, conn)
		created = true
		_, err = conn.InsertOccurrence(ctx, occ)
	}
	if err != nil {
		return 0, fmt.Errorf("write occurrence: %w", err)
	}

	failures := 0
	for _, entry := range data.Entries(occ.ID) {
		var err error
		for attempt := 0; attempt <= l.config.MetadataRetries; attempt++ {
			err = conn.InsertMetadata(ctx, entry.OccurrenceID, entry.Name, entry.Value)
			if database.IsTableNotFound(err) && !created {
				l.createTables(ctx, conn)
				created = true
				err = conn.InsertMetadata(ctx, entry.OccurrenceID, entry.Name, entry.Value)
			}
			if err == nil || ctx.Err() != nil {
				break
			}
		}
		if err != nil {
			failures++
			l.warnMetadata(ctx, occ, entry.Name, err)
		}
	}

	metrics.RecordMetadataFailures(failures)
	return failures, nil
}

func (l *Logger) createTables(ctx context.Context, conn Store) {
	conn.CreateTableIfMissing(ctx, database.TableOccurrences)
	conn.CreateTableIfMissing(ctx, database.TableMetadata)
}

// warnMetadata logs a lost metadata row, rate limited so a failing store
// does not flood the log.
func (l *Logger) warnMetadata(ctx context.Context, occ *models.Occurrence, name string, err error) {
	if !l.warnLimiter.Allow() {
		l.suppressed.Add(1)
		return
	}
	event := logging.Ctx(ctx).Warn().Err(err).
		Int64("occurrence_id", occ.ID).
		Int("alert_id", occ.AlertID).
		Str("name", name)
	if n := l.suppressed.Swap(0); n > 0 {
		event = event.Int64("suppressed", n)
	}
	event.Msg("Metadata write failed, occurrence kept")
}

// WriteBuffered writes one buffered event to the current primary store,
// keeping its created_on and is_migrated. It fails, leaving the entry
// buffered, when the store is unreachable or the occurrence cannot be
// written. Metadata failures do not fail it.
func (l *Logger) WriteBuffered(ctx context.Context, entry *buffer.Entry) error {
	if entry == nil {
		return errors.New("nil buffer entry")
	}

	conn := l.connect(ctx)
	if !health.IsHealthy(conn) {
		return ErrStoreUnavailable
	}

	occ := entry.Event.Occurrence
	occ.ID = 0
	failures, err := l.WriteDirect(ctx, conn, &occ, entry.Event.Metadata)
	if err != nil {
		return err
	}

	metrics.RecordEvent(metrics.OutcomeWritten)
	logging.Ctx(ctx).Debug().
		Str("key", entry.Key).
		Int64("occurrence_id", occ.ID).
		Int("metadata_failures", failures).
		Msg("Buffered event written")
	return nil
}

// DrainBuffer replays the buffer into the primary store.
func (l *Logger) DrainBuffer(ctx context.Context) (*buffer.DrainResult, error) {
	if l.deps.Buffer == nil {
		return nil, ErrNoBuffer
	}
	return buffer.Drain(ctx, l.deps.Buffer, buffer.WriterFunc(l.WriteBuffered))
}

// Buffer returns the configured buffer store, or nil.
func (l *Logger) Buffer() buffer.Store {
	return l.deps.Buffer
}
