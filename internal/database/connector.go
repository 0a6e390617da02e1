// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/auditkeep/internal/health"
	"github.com/tomtom215/auditkeep/internal/logging"
)

const localKey = "local"

// Connector hands out store handles. Handles are cached per store and
// re-probed through a circuit breaker, so a dead store costs one bounded
// ping per OpenTimeout instead of one per event.
type Connector struct {
	local    Config
	external *ExternalConfig
	archive  *ExternalConfig

	probeCfg health.ProbeConfig
	recheck  time.Duration

	mu     sync.Mutex
	conns  map[string]*Conn
	probes map[string]*health.Probe
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithExternal makes ext the primary store.
func WithExternal(ext *ExternalConfig) ConnectorOption {
	return func(c *Connector) { c.external = ext }
}

// WithArchive sets the archive store used when archiving is enabled.
func WithArchive(ext *ExternalConfig) ConnectorOption {
	return func(c *Connector) { c.archive = ext }
}

// WithProbe overrides the breaker settings. Name is set per store.
func WithProbe(cfg health.ProbeConfig) ConnectorOption {
	return func(c *Connector) { c.probeCfg = cfg }
}

// WithRecheck sets how long a successful probe is trusted before the store
// is pinged again. Zero pings on every Get.
func WithRecheck(d time.Duration) ConnectorOption {
	return func(c *Connector) { c.recheck = d }
}

// NewConnector creates a Connector for the local store.
func NewConnector(local Config, opts ...ConnectorOption) *Connector {
	if local.TablePrefix == "" {
		local.TablePrefix = DefaultTablePrefix
	}
	c := &Connector{
		local:    local,
		probeCfg: health.DefaultProbeConfig(""),
		recheck:  2 * time.Second,
		conns:    make(map[string]*Conn),
		probes:   make(map[string]*health.Probe),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the handle for ext, or for the local store when ext is nil.
// It never returns nil and never blocks longer than the connect timeout;
// an unreachable store yields a handle whose ConnectErr is set.
func (c *Connector) Get(ctx context.Context, ext *ExternalConfig) *Conn {
	key, name := localKey, localKey
	if ext != nil {
		key, name = ext.key(), "external"
		if ext == c.archive {
			name = "archive"
		}
	}

	c.mu.Lock()
	conn, ok := c.conns[key]
	if !ok {
		if ext == nil {
			conn = open(name, c.local.Driver, c.local.DSN, c.local.TablePrefix, false, c.local.MaxOpenConns)
		} else {
			conn = open(name, ext.Driver, ext.DSN, c.local.TablePrefix, true, 0)
		}
		c.conns[key] = conn
	}
	probe, ok := c.probes[key]
	if !ok {
		cfg := c.probeCfg
		cfg.Name = "store-" + name
		if t := c.timeoutFor(ext); t > 0 {
			cfg.Timeout = t
		}
		probe = health.NewProbe(cfg)
		c.probes[key] = probe
	}
	c.mu.Unlock()

	if conn.db == nil || conn.dialect == nil {
		// Open itself failed; nothing to probe.
		return conn
	}
	if c.recheck > 0 && conn.probedWithin(c.recheck) {
		return conn
	}

	err := probe.Check(ctx, conn.Ping)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn().Err(err).Str("store", name).Msg("Audit store unreachable")
	}
	conn.setConnectErr(err)
	return conn
}

func (c *Connector) timeoutFor(ext *ExternalConfig) time.Duration {
	if ext != nil {
		return ext.ConnectTimeout
	}
	return c.local.ConnectTimeout
}

// Primary returns the store events are written to: the external store when
// one is configured, else the local one.
func (c *Connector) Primary(ctx context.Context) *Conn {
	return c.Get(ctx, c.external)
}

// Archive returns the archive store. Without one configured the handle
// reports ErrNoArchive.
func (c *Connector) Archive(ctx context.Context) *Conn {
	if c.archive == nil {
		return &Conn{name: "archive", connectErr: ErrNoArchive}
	}
	return c.Get(ctx, c.archive)
}

// HasExternal reports whether an external primary store is configured.
func (c *Connector) HasExternal() bool {
	return c.external != nil
}

// Close closes every cached handle.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for key, conn := range c.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.conns, key)
	}
	return errors.Join(errs...)
}
