// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

/*
schema.go - Audit Table Lifecycle

Two tables hold the audit log:
  - <prefix>occurrences: one row per event. id is assigned by the store
    (sequence, AUTOINCREMENT, AUTO_INCREMENT or BIGSERIAL), created_on is a
    microsecond Unix timestamp indexed for oldest-first retention scans.
  - <prefix>metadata: one row per (occurrence_id, name), value holds the
    typed envelope produced by models.Value.

Tables are not created eagerly. Writers and the pruner call
CreateTableIfMissing when a statement fails with a table-not-found error
and retry once.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/metrics"
)

const schemaTimeout = 30 * time.Second

func (d *Dialect) occurrencesDDL(table string) []string {
	switch d.Name {
	case DialectDuckDB:
		return []string{
			fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s_id_seq START 1`, table),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
				id BIGINT PRIMARY KEY DEFAULT nextval('%[1]s_id_seq'),
				site_id INTEGER NOT NULL DEFAULT 0,
				alert_id INTEGER NOT NULL,
				created_on DOUBLE NOT NULL,
				is_migrated BOOLEAN NOT NULL DEFAULT false
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_created_on_idx ON %[1]s (created_on)`, table),
		}
	case DialectSQLite:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				site_id INTEGER NOT NULL DEFAULT 0,
				alert_id INTEGER NOT NULL,
				created_on REAL NOT NULL,
				is_migrated INTEGER NOT NULL DEFAULT 0
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_created_on_idx ON %[1]s (created_on)`, table),
		}
	case DialectMySQL:
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
				"  id BIGINT NOT NULL AUTO_INCREMENT,\n"+
				"  site_id BIGINT NOT NULL DEFAULT 0,\n"+
				"  alert_id BIGINT NOT NULL,\n"+
				"  created_on DECIMAL(16,6) NOT NULL,\n"+
				"  is_migrated TINYINT(1) NOT NULL DEFAULT 0,\n"+
				"  PRIMARY KEY (id),\n"+
				"  KEY created_on (created_on)\n"+
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", table),
		}
	case DialectPostgres:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				site_id INTEGER NOT NULL DEFAULT 0,
				alert_id INTEGER NOT NULL,
				created_on DOUBLE PRECISION NOT NULL,
				is_migrated BOOLEAN NOT NULL DEFAULT FALSE
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_created_on_idx ON %[1]s (created_on)`, table),
		}
	}
	return nil
}

func (d *Dialect) metadataDDL(table string) []string {
	switch d.Name {
	case DialectDuckDB:
		return []string{
			fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s_id_seq START 1`, table),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
				id BIGINT PRIMARY KEY DEFAULT nextval('%[1]s_id_seq'),
				occurrence_id BIGINT NOT NULL,
				name VARCHAR NOT NULL,
				value VARCHAR NOT NULL,
				UNIQUE (occurrence_id, name)
			)`, table),
		}
	case DialectSQLite:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				occurrence_id INTEGER NOT NULL,
				name TEXT NOT NULL,
				value TEXT NOT NULL,
				UNIQUE (occurrence_id, name)
			)`, table),
		}
	case DialectMySQL:
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
				"  id BIGINT NOT NULL AUTO_INCREMENT,\n"+
				"  occurrence_id BIGINT NOT NULL,\n"+
				"  name VARCHAR(100) NOT NULL,\n"+
				"  value LONGTEXT NOT NULL,\n"+
				"  PRIMARY KEY (id),\n"+
				"  UNIQUE KEY occurrence_name (occurrence_id, name)\n"+
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", table),
		}
	case DialectPostgres:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				occurrence_id BIGINT NOT NULL,
				name VARCHAR(100) NOT NULL,
				value TEXT NOT NULL,
				UNIQUE (occurrence_id, name)
			)`, table),
		}
	}
	return nil
}

// CreateTableIfMissing creates one audit table (logical or physical name)
// and reports whether it exists afterwards. Failures are logged, not returned.
func (c *Conn) CreateTableIfMissing(ctx context.Context, table string) bool {
	if err := c.createTable(ctx, table); err != nil {
		logging.Error().Err(err).Str("table", table).Str("store", c.name).Msg("Failed to create audit table")
		return false
	}
	return true
}

// CreateTables creates both audit tables.
func (c *Conn) CreateTables(ctx context.Context) error {
	for _, t := range []string{TableOccurrences, TableMetadata} {
		if err := c.createTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) createTable(ctx context.Context, table string) error {
	if err := c.ConnectErr(); err != nil {
		return err
	}
	physical, ok := c.tables.Physical(table)
	if !ok {
		return fmt.Errorf("unknown audit table %q", table)
	}

	var stmts []string
	if physical == c.tables.Occurrences {
		stmts = c.dialect.occurrencesDDL(physical)
	} else {
		stmts = c.dialect.metadataDDL(physical)
	}

	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()

	start := time.Now()
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			metrics.RecordDBQuery("create_table", c.dialect.Name, time.Since(start), err)
			return fmt.Errorf("failed to create %s: %w", physical, err)
		}
	}
	metrics.RecordDBQuery("create_table", c.dialect.Name, time.Since(start), nil)
	metrics.RecordTableCreated(table)
	logging.Info().Str("table", physical).Str("store", c.name).Msg("Audit table ready")
	return nil
}
