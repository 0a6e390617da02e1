// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

/*
Package api serves the Auditkeep HTTP API with chi.

# Routes

	POST /api/v1/events              log an event (202 with the audit.Result)
	GET  /api/v1/occurrences         newest occurrences, ?limit=1..1000
	GET  /api/v1/occurrences/{id}    one occurrence with its metadata
	POST /api/v1/retention/prune     run the retention policy now
	GET  /api/v1/buffer              buffer backlog
	POST /api/v1/buffer/drain        replay the buffer now (409 while a drain runs)
	GET  /healthz                    liveness
	GET  /readyz                     primary store reachability
	GET  /metrics                    Prometheus

Every response uses the APIResponse envelope. Requests under /api/v1 are
rate limited per client IP with httprate and recorded in the
auditkeep_api_* metrics.
*/
package api
