// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package buffer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/models"
)

// lockReleaseScript deletes the lock only if it still holds our token.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// lockExtendScript resets the lock's expiry only if it still holds our token.
const lockExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// RedisStore is a Store shared by several processes. A sorted set indexes
// keys by timestamp and a hash holds the payloads; both are written in one
// MULTI/EXEC.
type RedisStore struct {
	client  *redis.Client
	release *redis.Script
	extend  *redis.Script

	indexKey   string
	entriesKey string
	lockKey    string
	lockTTL    time.Duration

	// lockHeld is true from a successful TryLockDrain until release, or
	// until a refresh finds the lock gone.
	lockHeld atomic.Bool

	mu     sync.RWMutex
	closed bool
}

var (
	_ Store      = (*RedisStore)(nil)
	_ LockHolder = (*RedisStore)(nil)
)

// OpenRedis connects to the Redis buffer described by cfg and verifies the
// connection with PING.
func OpenRedis(ctx context.Context, cfg Config) (*RedisStore, error) {
	cfg.Backend = BackendRedis
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid buffer config: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}

	s := NewRedisStore(client, cfg.KeyPrefix, cfg.DrainLockTTL)
	logging.Info().
		Str("addr", cfg.RedisAddr).
		Str("prefix", cfg.KeyPrefix).
		Msg("Buffer store opened")
	return s, nil
}

// NewRedisStore wraps an existing client. The store owns the client from
// here on and closes it in Close.
func NewRedisStore(client *redis.Client, prefix string, lockTTL time.Duration) *RedisStore {
	if lockTTL <= 0 {
		lockTTL = DefaultConfig().DrainLockTTL
	}
	return &RedisStore{
		client:     client,
		release:    redis.NewScript(lockReleaseScript),
		extend:     redis.NewScript(lockExtendScript),
		indexKey:   prefix + ":index",
		entriesKey: prefix + ":entries",
		lockKey:    prefix + ":drain_lock",
		lockTTL:    lockTTL,
	}
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Enqueue implements Store.
func (s *RedisStore) Enqueue(ctx context.Context, occ *models.Occurrence, meta models.Data) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	if !ValidSnapshot(occ, meta) {
		RecordRejected()
		return false, nil
	}

	entry := newEntry(occ, meta)
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("marshal buffer entry: %w", err)
	}

	score := math.Round(occ.CreatedOn * 1e6)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.indexKey, redis.Z{Score: score, Member: entry.Key})
		pipe.HSet(ctx, s.entriesKey, entry.Key, data)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("write to redis: %w", err)
	}

	RecordEnqueued(BackendRedis)
	return true, nil
}

// Pending implements Store.
func (s *RedisStore) Pending(ctx context.Context) ([]*Entry, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	keys, err := s.client.ZRange(ctx, s.indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read buffer index: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, s.entriesKey, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read buffer entries: %w", err)
	}

	entries := make([]*Entry, 0, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a payload; a concurrent Remove got there first.
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logging.Warn().Err(err).Str("key", keys[i]).Msg("Buffer failed to unmarshal entry")
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Remove implements Store.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.indexKey, key)
		pipe.HDel(ctx, s.entriesKey, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete buffer entry %s: %w", key, err)
	}
	return nil
}

// Len implements Store.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	n, err := s.client.ZCard(ctx, s.indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count buffer entries: %w", err)
	}
	return int(n), nil
}

// TryLockDrain implements Store. The lock expires after the configured TTL
// so a crashed drainer cannot hold it forever. While held, the expiry is
// pushed back every third of the TTL; if a refresh finds another token in
// the key, DrainLockHeld reports false from then on.
func (s *RedisStore) TryLockDrain(ctx context.Context) (func(), bool, error) {
	if s.isClosed() {
		return nil, false, ErrClosed
	}

	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.lockKey, token, s.lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire drain lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	s.lockHeld.Store(true)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.keepLock(token, stop)
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			s.lockHeld.Store(false)

			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := s.release.Run(rctx, s.client, []string{s.lockKey}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				logging.Warn().Err(err).Str("key", s.lockKey).Msg("Failed to release drain lock")
			}
		})
	}
	return release, true, nil
}

// keepLock extends the drain lock until stop is closed. It gives up, and
// clears lockHeld, once the lock is no longer ours or has gone a full TTL
// without a successful refresh.
func (s *RedisStore) keepLock(token string, stop <-chan struct{}) {
	interval := s.lockTTL / 3
	if interval <= 0 {
		interval = s.lockTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastRefresh := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := s.extend.Run(ctx, s.client, []string{s.lockKey}, token, s.lockTTL.Milliseconds()).Int64()
		cancel()

		switch {
		case err != nil:
			logging.Warn().Err(err).Str("key", s.lockKey).Msg("Failed to refresh drain lock")
			if time.Since(lastRefresh) < s.lockTTL {
				continue
			}
		case n == 1:
			lastRefresh = time.Now()
			continue
		}

		s.lockHeld.Store(false)
		logging.Error().Str("key", s.lockKey).Msg("Drain lock lost")
		return
	}
}

// DrainLockHeld implements LockHolder.
func (s *RedisStore) DrainLockHeld() bool {
	return s.lockHeld.Load()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
