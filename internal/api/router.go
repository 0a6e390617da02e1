// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP routes.
//
// Probes and /metrics sit outside the rate limiter so monitoring never gets
// throttled.
func NewRouter(h *Handler, cfg MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cfg.CORS())

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.RateLimit())
		r.Use(Metrics)

		r.Post("/events", h.LogEvent)

		r.Get("/occurrences", h.ListOccurrences)
		r.Get("/occurrences/{id}", h.GetOccurrence)

		r.Post("/retention/prune", h.Prune)

		r.Get("/buffer", h.BufferStatus)
		r.Post("/buffer/drain", h.DrainBuffer)
	})

	return r
}
