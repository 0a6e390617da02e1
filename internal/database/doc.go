// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package database stores audit occurrences and their metadata in a
// relational store: DuckDB or SQLite locally, MySQL or PostgreSQL
// externally.
//
// # Handles
//
// A Conn never fails to construct. Connect failures are carried on the
// handle and reported by ConnectErr, so callers classify reachability with
// health.IsHealthy instead of handling errors from the connection provider.
//
// The Connector caches one handle per (driver, DSN) pair and serves three
// roles:
//
//   - Primary: the external store when one is configured, else local
//   - Archive: the store the pruner uses while archiving is enabled
//   - Get: any explicitly described store, used by the buffer drain
//
// # Tables
//
// Two logical tables exist, named with the configured prefix:
//
//	<prefix>occurrences  id, site_id, alert_id, created_on, is_migrated
//	<prefix>metadata     id, occurrence_id, name, value
//
// Writes that fail with a missing table are classified as ErrTableNotFound;
// callers create the table with CreateTableIfMissing and retry once.
//
// # Retention
//
// Deletions are bounded by a high-water mark taken before any delete:
//
//	hwm, ok, _ := conn.HighWaterMark(ctx, sel)
//	conn.DeleteMetadataUpTo(ctx, hwm)
//	conn.DeleteOccurrences(ctx, sel, hwm)
//
// Rows inserted after the mark was taken are never touched. Selections
// are built with the query subpackage.
package database
