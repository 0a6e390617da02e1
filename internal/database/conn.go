// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package database

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"
)

// Config describes the local store.
type Config struct {
	Driver         string        `koanf:"driver" validate:"required,oneof=duckdb sqlite"`
	DSN            string        `koanf:"dsn"`
	TablePrefix    string        `koanf:"table_prefix" validate:"omitempty,max=32"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxOpenConns   int           `koanf:"max_open_conns" validate:"gte=0"`
}

// DefaultConfig returns an in-memory DuckDB store.
func DefaultConfig() Config {
	return Config{
		Driver:         DialectDuckDB,
		DSN:            "",
		TablePrefix:    DefaultTablePrefix,
		ConnectTimeout: 5 * time.Second,
		MaxOpenConns:   4,
	}
}

// ExternalConfig describes a client/server store used for the primary
// (external) or archive connection. Table names follow the local prefix.
type ExternalConfig struct {
	Driver         string        `koanf:"driver" validate:"required,oneof=mysql postgres"`
	DSN            string        `koanf:"dsn" validate:"required"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

func (e *ExternalConfig) key() string {
	return e.Driver + "|" + e.DSN
}

// Conn is a handle to one audit store.
type Conn struct {
	db       *sql.DB
	dialect  *Dialect
	tables   Tables
	name     string
	external bool

	mu         sync.RWMutex
	connectErr error
	lastProbe  time.Time
}

// NewConn wraps an open *sql.DB. Tests use it with in-memory SQLite.
func NewConn(db *sql.DB, dialect, tablePrefix string, external bool) (*Conn, error) {
	d, err := DialectFor(dialect)
	if err != nil {
		return nil, err
	}
	if tablePrefix == "" {
		tablePrefix = DefaultTablePrefix
	}
	return &Conn{
		db:       db,
		dialect:  d,
		tables:   TablesWithPrefix(tablePrefix),
		name:     d.Name,
		external: external,
	}, nil
}

// open creates a handle without contacting the store. Errors are stored on
// the handle.
func open(name, driver, dsn, prefix string, external bool, maxOpen int) *Conn {
	c := &Conn{name: name, external: external, tables: TablesWithPrefix(prefix)}

	d, err := DialectFor(driver)
	if err != nil {
		c.connectErr = err
		return c
	}
	c.dialect = d

	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		c.connectErr = err
		return c
	}
	if d.Name == DialectSQLite && isMemoryDSN(dsn) {
		// Every connection to :memory: is a separate database.
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	c.db = db
	return c
}

func isMemoryDSN(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// ConnectErr returns the last connect error, or nil when the store answered
// the most recent probe. A nil handle reports ErrNoConnection.
func (c *Conn) ConnectErr() error {
	if c == nil {
		return ErrNoConnection
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	if c.db == nil {
		return ErrNoConnection
	}
	return nil
}

func (c *Conn) setConnectErr(err error) {
	c.mu.Lock()
	c.connectErr = err
	c.lastProbe = time.Now()
	c.mu.Unlock()
}

func (c *Conn) probedWithin(d time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectErr == nil && !c.lastProbe.IsZero() && time.Since(c.lastProbe) < d
}

// Ping contacts the store.
func (c *Conn) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return ErrNoConnection
	}
	return c.db.PingContext(ctx)
}

// Name identifies the handle in logs: the dialect, or local/external/archive
// when created by a Connector.
func (c *Conn) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// External reports whether the handle points at an external store.
func (c *Conn) External() bool { return c != nil && c.external }

// Dialect returns the SQL dialect.
func (c *Conn) Dialect() *Dialect { return c.dialect }

// Tables returns the physical table names.
func (c *Conn) Tables() Tables { return c.tables }

// DB exposes the underlying pool.
func (c *Conn) DB() *sql.DB { return c.db }

// Close closes the pool.
func (c *Conn) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
