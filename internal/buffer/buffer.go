// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package buffer is the durable staging area for audit events that could not
// be written to the primary store.
//
// Entries are keyed by the occurrence's created_on timestamp encoded as a
// fixed-width microsecond count, so key order is chronological order and
// Drain replays events in the order they happened. A second enqueue with the
// same timestamp overwrites the first (last write wins). Entries are never
// modified: they are added, and removed once Drain has written them.
//
// Two backends exist: BadgerStore for a single process and RedisStore for
// several processes sharing one buffer.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/auditkeep/internal/models"
)

// Errors
var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("buffer store is closed")

	// ErrDrainInProgress is returned by Drain when another drain holds the lock.
	ErrDrainInProgress = errors.New("buffer drain already in progress")

	// ErrNilWriter is returned by Drain without a writer.
	ErrNilWriter = errors.New("drain writer cannot be nil")

	// ErrDrainLockLost is returned by Drain when the lock expired or was
	// taken over mid-drain.
	ErrDrainLockLost = errors.New("buffer drain lock lost")
)

// Entry is one buffered event.
type Entry struct {
	// Key is KeyFor(Event.Occurrence.CreatedOn).
	Key string `json:"key"`

	Event models.BufferedEvent `json:"event"`

	// EnqueuedAt is when the entry was buffered.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Store is a persisted, ordered collection of buffered events.
type Store interface {
	// Enqueue adds a snapshot. It returns false with a nil error when the
	// snapshot is not a valid occurrence, and a non-nil error only when the
	// backend failed. Safe for concurrent use.
	Enqueue(ctx context.Context, occ *models.Occurrence, meta models.Data) (bool, error)

	// Pending returns every entry ordered by key.
	Pending(ctx context.Context) ([]*Entry, error)

	// Remove deletes one entry. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Len returns the number of buffered entries.
	Len(ctx context.Context) (int, error)

	// TryLockDrain takes the drain lock. ok is false if it is held elsewhere.
	TryLockDrain(ctx context.Context) (release func(), ok bool, err error)

	Close() error
}

// LockHolder is implemented by stores whose drain lock can be lost while a
// drain runs. Drain checks it before writing each entry.
type LockHolder interface {
	DrainLockHeld() bool
}

// keyWidth fits any int64 microsecond value.
const keyWidth = 20

// KeyFor returns the buffer key for a created_on timestamp.
func KeyFor(createdOn float64) string {
	return fmt.Sprintf("%0*d", keyWidth, int64(math.Round(createdOn*1e6)))
}

// ValidSnapshot reports whether occ and meta can be buffered.
func ValidSnapshot(occ *models.Occurrence, meta models.Data) bool {
	if occ == nil || occ.AlertID <= 0 || !models.ValidTimestamp(occ.CreatedOn) {
		return false
	}
	for name := range meta {
		if name == "" {
			return false
		}
	}
	return true
}

func newEntry(occ *models.Occurrence, meta models.Data) *Entry {
	snapshot := *occ
	snapshot.ID = 0
	if meta == nil {
		meta = models.Data{}
	}
	return &Entry{
		Key:        KeyFor(occ.CreatedOn),
		Event:      models.BufferedEvent{Occurrence: snapshot, Metadata: meta.Clone()},
		EnqueuedAt: time.Now().UTC(),
	}
}

// Open creates the store selected by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendRedis:
		return OpenRedis(ctx, cfg)
	default:
		return OpenBadger(cfg)
	}
}
