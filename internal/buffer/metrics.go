// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package buffer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for buffer operations
var (
	// bufferEnqueuedTotal counts entries written to the buffer.
	bufferEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditkeep_buffer_enqueued_total",
		Help: "Total number of events written to the buffer store",
	}, []string{"backend"})

	// bufferRejectedTotal counts snapshots refused as invalid.
	bufferRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditkeep_buffer_rejected_total",
		Help: "Total number of invalid snapshots refused by the buffer store",
	})

	// bufferDrainedTotal counts entries written and removed by Drain.
	bufferDrainedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditkeep_buffer_drained_total",
		Help: "Total number of buffered events written to the store by drain",
	})

	// bufferDrainFailedTotal counts entries the writer refused during Drain.
	bufferDrainFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditkeep_buffer_drain_failed_total",
		Help: "Total number of buffered events that failed to drain",
	})

	// bufferPendingEntries is the number of entries seen by the last drain.
	bufferPendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auditkeep_buffer_pending_entries",
		Help: "Buffered events remaining after the last drain",
	})
)

// RecordEnqueued records a successful enqueue on backend.
func RecordEnqueued(backend string) {
	bufferEnqueuedTotal.WithLabelValues(backend).Inc()
}

// RecordRejected records an invalid snapshot.
func RecordRejected() {
	bufferRejectedTotal.Inc()
}

// RecordDrain records the outcome of one drain run.
func RecordDrain(r *DrainResult) {
	if r == nil {
		return
	}
	bufferDrainedTotal.Add(float64(r.Drained))
	bufferDrainFailedTotal.Add(float64(r.Failed))
	bufferPendingEntries.Set(float64(r.TotalPending - r.Drained))
}
