// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package metrics holds the process-wide Prometheus collectors. Buffer
// collectors live next to the buffer implementation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes.
const (
	OutcomeWritten  = "written"
	OutcomeBuffered = "buffered"
	OutcomeFiltered = "filtered"
)

var (
	// Store metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditkeep_db_query_duration_seconds",
			Help:    "Duration of audit store statements in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "dialect"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditkeep_db_query_errors_total",
			Help: "Total number of failed audit store statements",
		},
		[]string{"operation", "dialect"},
	)

	TablesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditkeep_tables_created_total",
			Help: "Tables created reactively after a table-not-found error",
		},
		[]string{"table"},
	)

	// Event logger metrics
	EventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditkeep_events_logged_total",
			Help: "Events passed to the logger, by outcome (written, buffered, filtered)",
		},
		[]string{"outcome"},
	)

	MetadataWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditkeep_metadata_write_failures_total",
			Help: "Metadata rows lost after their occurrence was written",
		},
	)

	// Health metrics
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditkeep_health_checks_total",
			Help: "Connection health checks, by result",
		},
		[]string{"result"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "auditkeep_health_breaker_state",
			Help: "Health probe circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Retention metrics
	PruneRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditkeep_prune_runs_total",
			Help: "Retention prune runs, by result (deleted, noop, error)",
		},
		[]string{"result"},
	)

	PruneDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditkeep_prune_deleted_total",
			Help: "Occurrence rows deleted by retention",
		},
	)

	PruneDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auditkeep_prune_duration_seconds",
			Help:    "Duration of retention prune runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Notification metrics
	NotifyPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditkeep_notify_published_total",
			Help: "Post-write signals published",
		},
	)

	NotifyDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditkeep_notify_dropped_total",
			Help: "Post-write signals dropped, by reason (queue_full, publish_error, closed)",
		},
		[]string{"reason"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditkeep_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditkeep_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordDBQuery records one store statement.
func RecordDBQuery(operation, dialect string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, dialect).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, dialect).Inc()
	}
}

// RecordTableCreated counts a reactive table creation.
func RecordTableCreated(table string) {
	TablesCreated.WithLabelValues(table).Inc()
}

// RecordEvent counts a logged event by outcome.
func RecordEvent(outcome string) {
	EventsLogged.WithLabelValues(outcome).Inc()
}

// RecordMetadataFailures counts lost metadata rows.
func RecordMetadataFailures(n int) {
	if n > 0 {
		MetadataWriteFailures.Add(float64(n))
	}
}

// RecordHealthCheck counts a health classification.
func RecordHealthCheck(healthy bool) {
	result := "unhealthy"
	if healthy {
		result = "healthy"
	}
	HealthChecks.WithLabelValues(result).Inc()
}

// RecordBreakerState exports a breaker state as a number.
func RecordBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordPrune records a prune run. A run that deleted nothing counts as noop.
func RecordPrune(deleted int64, duration time.Duration, err error) {
	PruneDuration.Observe(duration.Seconds())
	switch {
	case err != nil:
		PruneRuns.WithLabelValues("error").Inc()
	case deleted > 0:
		PruneRuns.WithLabelValues("deleted").Inc()
		PruneDeleted.Add(float64(deleted))
	default:
		PruneRuns.WithLabelValues("noop").Inc()
	}
}

// RecordNotifyPublished counts a published signal.
func RecordNotifyPublished() {
	NotifyPublished.Inc()
}

// RecordNotifyDropped counts a dropped signal.
func RecordNotifyDropped(reason string) {
	NotifyDropped.WithLabelValues(reason).Inc()
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
