// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package audit is the single ingestion path for security audit events.
//
// # Overview
//
// Logger.Log turns an alert code plus a data map into one occurrence row and
// one metadata row per data entry. Every call takes one of three routes:
//
//   - filtered: alert codes below MinAlertID are a retired legacy channel
//     and are dropped without a trace
//   - written: the store is reachable, so the occurrence and its metadata
//     are inserted directly
//   - buffered: the store is unreachable, or it is external and the
//     buffer.use_external setting is on, so the event goes to the
//     buffer.Store and is written later by DrainBuffer
//
// # Timestamps
//
// created_on is computed as follows:
//
//	WithTimestamp(ts)            -> ts verbatim, row marked is_migrated
//	otherwise now (microseconds) -> TimestampHook(now, alertID, data)
//	data["Timestamp"] if present -> wins over the hooked value
//
// The Timestamp key is always removed from data before metadata is written.
//
// # Write Semantics
//
// The occurrence and its metadata are written as separate statements with
// no enclosing transaction. The occurrence is authoritative: if it is
// written and a metadata insert fails, the occurrence stays and the failure
// is counted in Result.MetadataFailures. If the occurrence itself cannot be
// written, the event is buffered instead.
//
// # Usage
//
//	logger := audit.New(audit.Deps{
//	    Settings: settingsStore,
//	    Sites:    audit.StaticSite(1),
//	    Connect:  func(ctx context.Context) audit.Store { return connector.Primary(ctx) },
//	    Buffer:   bufferStore,
//	    Sink:     publisher,
//	}, audit.DefaultConfig())
//
//	res, err := logger.Log(ctx, 1003, map[string]any{"Username": "admin"})
package audit
