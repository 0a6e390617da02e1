// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/retention"
)

// PruneRunner applies the current retention policy once.
// Satisfied by *retention.Job.
type PruneRunner interface {
	Run(ctx context.Context) (*retention.Result, error)
}

// PruneService runs the retention job on a fixed interval. The policy is
// re-read from settings on every run, so policy changes apply at the next
// tick without a restart.
type PruneService struct {
	tickerService
	job PruneRunner
}

// NewPruneService creates a prune loop. A non-positive interval disables it.
func NewPruneService(job PruneRunner, interval time.Duration) *PruneService {
	s := &PruneService{job: job}
	s.tickerService = tickerService{
		name:     "retention-pruner",
		interval: interval,
		tick:     s.prune,
	}
	return s
}

func (s *PruneService) prune(ctx context.Context) error {
	result, err := s.job.Run(ctx)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if result.Deleted == 0 {
		logging.Debug().Str("reason", result.Reason).Msg("Retention run deleted nothing")
	}
	return nil
}
