// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

/*
Package services adapts Auditkeep components to suture.Service.

  - HTTPServerService: the API server, with graceful shutdown
  - DrainService: replays the event buffer into the primary store every
    buffer.drain_interval
  - PruneService: applies the retention policy every retention.interval

The two periodic services run once at start and then on a ticker. A failed
run is logged and retried on the next tick rather than returned, so a store
outage does not push the supervisor into backoff.
*/
package services
