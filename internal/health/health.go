// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package health classifies store connections as reachable or not.
//
// IsHealthy is a pure inspection of a handle's connect error and is called
// before every write. Probe performs the active ping that sets that error,
// guarded by a circuit breaker so a dead store is not pinged (and waited on)
// for every event.
package health

import (
	"context"
	"reflect"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/metrics"
)

// Handle is anything that can report a low-level connect error.
type Handle interface {
	ConnectErr() error
}

// IsHealthy reports whether h is usable. A nil handle, a typed-nil handle
// and a handle carrying a connect error are all unhealthy. It never panics.
func IsHealthy(h Handle) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			healthy = false
		}
		metrics.RecordHealthCheck(healthy)
	}()

	if h == nil {
		return false
	}
	if rv := reflect.ValueOf(h); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return false
	}
	return h.ConnectErr() == nil
}

// ProbeConfig configures a Probe.
type ProbeConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// Timeout bounds a single ping.
	Timeout time.Duration

	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open before a trial ping.
	OpenTimeout time.Duration
}

// DefaultProbeConfig returns the default probe settings.
func DefaultProbeConfig(name string) ProbeConfig {
	return ProbeConfig{
		Name:        name,
		Timeout:     5 * time.Second,
		MaxFailures: 3,
		OpenTimeout: 30 * time.Second,
	}
}

// Probe pings a store through a circuit breaker.
type Probe struct {
	cfg ProbeConfig
	cb  *gobreaker.CircuitBreaker[struct{}]
}

// NewProbe creates a Probe.
func NewProbe(cfg ProbeConfig) *Probe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Store health breaker changed state")
			metrics.RecordBreakerState(name, int(to))
		},
	}

	return &Probe{
		cfg: cfg,
		cb:  gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Check runs ping with the configured timeout. While the breaker is open it
// returns gobreaker.ErrOpenState without calling ping.
func (p *Probe) Check(ctx context.Context, ping func(context.Context) error) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		return struct{}{}, ping(pctx)
	})
	return err
}

// State returns the breaker state.
func (p *Probe) State() gobreaker.State {
	return p.cb.State()
}
