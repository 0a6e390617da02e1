// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package buffer

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/tomtom215/auditkeep/internal/models"
)

// Test helpers

func createTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "buffer")
	cfg.SyncWrites = false
	store, err := OpenBadger(cfg)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func testOccurrence(alertID int, createdOn float64) *models.Occurrence {
	return &models.Occurrence{AlertID: alertID, SiteID: 1, CreatedOn: createdOn}
}

func mustEnqueue(t *testing.T, s Store, occ *models.Occurrence, meta models.Data) {
	t.Helper()
	ok, err := s.Enqueue(context.Background(), occ, meta)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if !ok {
		t.Fatalf("Enqueue() = false for %+v", occ)
	}
}

func TestKeyFor_Ordering(t *testing.T) {
	t.Parallel()

	stamps := []float64{1700000000.5, 99.000001, 1700000000.000001, 1e9, 1700000000.499999}
	keys := make([]string, len(stamps))
	for i, ts := range stamps {
		keys[i] = KeyFor(ts)
		if len(keys[i]) != keyWidth {
			t.Errorf("KeyFor(%v) length = %d, want %d", ts, len(keys[i]), keyWidth)
		}
	}

	sortedStamps := append([]float64(nil), stamps...)
	sort.Float64s(sortedStamps)
	sort.Strings(keys)
	for i, ts := range sortedStamps {
		if keys[i] != KeyFor(ts) {
			t.Errorf("lexical order differs from chronological order at %d: %s vs %s", i, keys[i], KeyFor(ts))
		}
	}

	if KeyFor(1.0000004) != KeyFor(1.0) {
		t.Error("KeyFor should round to the microsecond")
	}
}

func TestValidSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		occ  *models.Occurrence
		meta models.Data
		want bool
	}{
		{"valid", testOccurrence(1003, 1700000000), models.Data{"Username": models.String("admin")}, true},
		{"valid without metadata", testOccurrence(1003, 1700000000), nil, true},
		{"nil occurrence", nil, nil, false},
		{"zero alert", testOccurrence(0, 1700000000), nil, false},
		{"negative alert", testOccurrence(-1, 1700000000), nil, false},
		{"zero timestamp", testOccurrence(1003, 0), nil, false},
		{"NaN timestamp", testOccurrence(1003, math.NaN()), nil, false},
		{"Inf timestamp", testOccurrence(1003, math.Inf(1)), nil, false},
		{"empty metadata name", testOccurrence(1003, 1700000000), models.Data{"": models.Int(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidSnapshot(tt.occ, tt.meta); got != tt.want {
				t.Errorf("ValidSnapshot() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBadgerStore_EnqueueAndPending(t *testing.T) {
	t.Parallel()
	store := createTestStore(t)
	ctx := context.Background()

	// Enqueued out of order; Pending must return chronological order.
	mustEnqueue(t, store, testOccurrence(1003, 1700000003.25), models.Data{"Username": models.String("c")})
	mustEnqueue(t, store, testOccurrence(1001, 1700000001.5), models.Data{"Username": models.String("a")})
	mustEnqueue(t, store, testOccurrence(1002, 1700000002), nil)

	entries, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Pending() returned %d entries, want 3", len(entries))
	}
	for i, want := range []int{1001, 1002, 1003} {
		if got := entries[i].Event.Occurrence.AlertID; got != want {
			t.Errorf("entries[%d].AlertID = %d, want %d", i, got, want)
		}
	}

	first := entries[0]
	if first.Key != KeyFor(1700000001.5) {
		t.Errorf("Key = %s, want %s", first.Key, KeyFor(1700000001.5))
	}
	if first.Event.Occurrence.CreatedOn != 1700000001.5 {
		t.Errorf("CreatedOn = %v, want 1700000001.5", first.Event.Occurrence.CreatedOn)
	}
	if v, ok := first.Event.Metadata["Username"].AsString(); !ok || v != "a" {
		t.Errorf("Metadata[Username] = %v, want a", first.Event.Metadata["Username"])
	}
	if first.EnqueuedAt.IsZero() {
		t.Error("EnqueuedAt should be set")
	}

	n, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}
}

func TestBadgerStore_EnqueueInvalid(t *testing.T) {
	t.Parallel()
	store := createTestStore(t)

	ok, err := store.Enqueue(context.Background(), testOccurrence(0, 1700000000), nil)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if ok {
		t.Error("Enqueue() = true for an invalid snapshot")
	}
	if n, _ := store.Len(context.Background()); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

func TestBadgerStore_LastWriteWins(t *testing.T) {
	t.Parallel()
	store := createTestStore(t)
	ctx := context.Background()

	mustEnqueue(t, store, testOccurrence(1001, 1700000000), models.Data{"v": models.Int(1)})
	mustEnqueue(t, store, testOccurrence(1002, 1700000000), models.Data{"v": models.Int(2)})

	entries, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Pending() returned %d entries, want 1", len(entries))
	}
	if entries[0].Event.Occurrence.AlertID != 1002 {
		t.Errorf("AlertID = %d, want 1002", entries[0].Event.Occurrence.AlertID)
	}
}

func TestBadgerStore_Remove(t *testing.T) {
	t.Parallel()
	store := createTestStore(t)
	ctx := context.Background()

	mustEnqueue(t, store, testOccurrence(1001, 1700000001), nil)
	mustEnqueue(t, store, testOccurrence(1002, 1700000002), nil)

	if err := store.Remove(ctx, KeyFor(1700000001)); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove(ctx, KeyFor(42)); err != nil {
		t.Errorf("Remove() of a missing key error = %v", err)
	}

	entries, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Event.Occurrence.AlertID != 1002 {
		t.Errorf("Pending() after Remove = %+v", entries)
	}
}

func TestBadgerStore_ConcurrentEnqueue(t *testing.T) {
	t.Parallel()
	store := createTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			occ := testOccurrence(1000+i, 1700000000+float64(i))
			if _, err := store.Enqueue(context.Background(), occ, nil); err != nil {
				t.Errorf("Enqueue(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Len(context.Background())
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if got != n {
		t.Errorf("Len() = %d, want %d", got, n)
	}
}

func TestBadgerStore_TryLockDrain(t *testing.T) {
	t.Parallel()
	store := createTestStore(t)
	ctx := context.Background()

	release, ok, err := store.TryLockDrain(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLockDrain() = %v, %v", ok, err)
	}

	if _, ok, _ := store.TryLockDrain(ctx); ok {
		t.Error("second TryLockDrain() should fail while the lock is held")
	}

	release()
	release()

	release2, ok, err := store.TryLockDrain(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLockDrain() after release = %v, %v", ok, err)
	}
	release2()
}

func TestBadgerStore_Closed(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "buffer")
	cfg.SyncWrites = false
	store, err := OpenBadger(cfg)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if _, err := store.Enqueue(ctx, testOccurrence(1003, 1700000000), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue() error = %v, want ErrClosed", err)
	}
	if _, err := store.Pending(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Pending() error = %v, want ErrClosed", err)
	}
	if err := store.Remove(ctx, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Remove() error = %v, want ErrClosed", err)
	}
}

func TestBadgerStore_Reopen(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "buffer")

	store, err := OpenBadger(cfg)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	mustEnqueue(t, store, testOccurrence(1003, 1700000000), models.Data{"Username": models.String("admin")})
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	store, err = OpenBadger(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer store.Close()

	entries, err := store.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Event.Occurrence.AlertID != 1003 {
		t.Errorf("entries after reopen = %+v", entries)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"in memory without path", func(c *Config) { c.Path = ""; c.InMemory = true }, ""},
		{"badger without path", func(c *Config) { c.Path = "" }, "Path"},
		{"too few compactors", func(c *Config) { c.NumCompactors = 1 }, "NumCompactors"},
		{"redis", func(c *Config) { c.Backend = BackendRedis }, ""},
		{"redis without addr", func(c *Config) { c.Backend = BackendRedis; c.RedisAddr = "" }, "RedisAddr"},
		{"redis without prefix", func(c *Config) { c.Backend = BackendRedis; c.KeyPrefix = "" }, "KeyPrefix"},
		{"unknown backend", func(c *Config) { c.Backend = "memcached" }, "Backend"},
		{"negative interval", func(c *Config) { c.DrainInterval = -1 }, "DrainInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantErr {
				t.Errorf("Field = %s, want %s", cfgErr.Field, tt.wantErr)
			}
		})
	}
}
