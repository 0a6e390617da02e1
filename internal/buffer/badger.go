// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package buffer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/models"
)

const prefixEntry = "buffer:"

const badgerCloseTimeout = 30 * time.Second

// BadgerStore is a Store backed by an embedded BadgerDB. The drain lock is
// local to the process.
type BadgerStore struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool

	draining atomic.Bool
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens (or creates) the BadgerDB buffer described by cfg.
func OpenBadger(cfg Config) (*BadgerStore, error) {
	cfg.Backend = BackendBadger
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid buffer config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites && !cfg.InMemory
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumCompactors > 0 {
		opts.NumCompactors = cfg.NumCompactors
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("Buffer store opened")

	return &BadgerStore{db: db, config: cfg}, nil
}

func (s *BadgerStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Enqueue implements Store.
func (s *BadgerStore) Enqueue(ctx context.Context, occ *models.Occurrence, meta models.Data) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	if !ValidSnapshot(occ, meta) {
		RecordRejected()
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	entry := newEntry(occ, meta)
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("marshal buffer entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixEntry+entry.Key), data)
	})
	if err != nil {
		return false, fmt.Errorf("write to BadgerDB: %w", err)
	}

	RecordEnqueued(BackendBadger)
	return true, nil
}

// Pending implements Store. Badger iterates keys in byte order, which is
// chronological order for KeyFor keys.
func (s *BadgerStore) Pending(ctx context.Context) ([]*Entry, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	var entries []*Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Buffer failed to unmarshal entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate buffer entries: %w", err)
	}
	return entries, nil
}

// Remove implements Store.
func (s *BadgerStore) Remove(_ context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixEntry + key))
	})
	if err != nil {
		return fmt.Errorf("delete buffer entry %s: %w", key, err)
	}
	return nil
}

// Len implements Store.
func (s *BadgerStore) Len(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count buffer entries: %w", err)
	}
	return n, nil
}

// TryLockDrain implements Store.
func (s *BadgerStore) TryLockDrain(_ context.Context) (func(), bool, error) {
	if s.isClosed() {
		return nil, false, ErrClosed
	}
	if !s.draining.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(func() { s.draining.Store(false) }) }, true, nil
}

// Close closes the underlying BadgerDB. Calling Close twice is a no-op.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Buffer store closed")
		return nil
	case <-time.After(badgerCloseTimeout):
		logging.Warn().Dur("timeout", badgerCloseTimeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", badgerCloseTimeout)
	}
}
