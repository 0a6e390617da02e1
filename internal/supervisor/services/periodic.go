// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/auditkeep/internal/logging"
)

// tickerService calls tick once at start and then every interval until ctx
// is canceled. A tick error is logged and the loop continues, except
// suture.ErrDoNotRestart which stops the service for good.
type tickerService struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context) error
}

func (s *tickerService) Serve(ctx context.Context) error {
	logger := logging.WithComponent(s.name)

	if s.interval <= 0 {
		logger.Info().Msg("Interval not set, service disabled")
		return suture.ErrDoNotRestart
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil {
			if errors.Is(err, suture.ErrDoNotRestart) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn().Err(err).Msg("Scheduled run failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *tickerService) String() string {
	return s.name
}
