// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/auditkeep/internal/audit"
	"github.com/tomtom215/auditkeep/internal/buffer"
	"github.com/tomtom215/auditkeep/internal/logging"
)

// Drainer replays buffered events into the primary store.
// Satisfied by *audit.Logger.
type Drainer interface {
	DrainBuffer(ctx context.Context) (*buffer.DrainResult, error)
}

// DrainService replays the event buffer on a fixed interval.
//
// A drain that finds the store still unreachable leaves every entry
// buffered and is retried on the next tick. A drain already running
// elsewhere (another replica sharing a Redis buffer, or a manual drain
// through the API) is skipped. Without a buffer store the service stops
// and is not restarted.
type DrainService struct {
	tickerService
	drainer Drainer
}

// NewDrainService creates a drain loop. A non-positive interval disables it.
func NewDrainService(drainer Drainer, interval time.Duration) *DrainService {
	s := &DrainService{drainer: drainer}
	s.tickerService = tickerService{
		name:     "buffer-drain",
		interval: interval,
		tick:     s.drain,
	}
	return s
}

func (s *DrainService) drain(ctx context.Context) error {
	result, err := s.drainer.DrainBuffer(ctx)
	switch {
	case errors.Is(err, audit.ErrNoBuffer):
		return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, err)
	case errors.Is(err, buffer.ErrDrainInProgress):
		logging.Debug().Msg("Buffer drain already running, skipping")
		return nil
	case errors.Is(err, buffer.ErrDrainLockLost):
		logging.Warn().Msg("Buffer drain lost its lock, another instance will finish it")
		return nil
	case err != nil:
		return fmt.Errorf("drain buffer: %w", err)
	}

	if result.TotalPending > 0 {
		logging.Info().
			Int("pending", result.TotalPending).
			Int("drained", result.Drained).
			Int("failed", result.Failed).
			Dur("duration", result.Duration).
			Msg("Buffer drained")
	}
	return nil
}
