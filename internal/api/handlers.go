// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/auditkeep/internal/audit"
	"github.com/tomtom215/auditkeep/internal/buffer"
	"github.com/tomtom215/auditkeep/internal/database"
	"github.com/tomtom215/auditkeep/internal/health"
	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/models"
	"github.com/tomtom215/auditkeep/internal/retention"
	"github.com/tomtom215/auditkeep/internal/validation"
)

const (
	defaultListLimit = 50
	maxBodyBytes     = 1 << 20
)

// EventLogger records audit events. Satisfied by *audit.Logger.
type EventLogger interface {
	Log(ctx context.Context, alertID int, data map[string]any, opts ...audit.LogOption) (*audit.Result, error)
}

// BufferDrainer exposes the event buffer. Satisfied by *audit.Logger.
type BufferDrainer interface {
	DrainBuffer(ctx context.Context) (*buffer.DrainResult, error)
	Buffer() buffer.Store
}

// PruneRunner applies the retention policy. Satisfied by *retention.Job.
type PruneRunner interface {
	Run(ctx context.Context) (*retention.Result, error)
}

// StoreProvider returns the primary store. Satisfied by *database.Connector.
type StoreProvider interface {
	Primary(ctx context.Context) *database.Conn
}

// Handler serves the Auditkeep API.
type Handler struct {
	events    EventLogger
	buffer    BufferDrainer
	retention PruneRunner
	stores    StoreProvider
}

// NewHandler creates a Handler. Every dependency is required.
func NewHandler(events EventLogger, buf BufferDrainer, job PruneRunner, stores StoreProvider) *Handler {
	return &Handler{
		events:    events,
		buffer:    buf,
		retention: job,
		stores:    stores,
	}
}

// LogEvent handles POST /api/v1/events.
func (h *Handler) LogEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req EventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	// Integers in data must stay integers.
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	result, err := h.events.Log(r.Context(), req.AlertID, req.Data, req.Options()...)
	switch {
	case errors.Is(err, audit.ErrMalformedData), errors.Is(err, audit.ErrInvalidTimestamp):
		rw.BadRequest(err.Error())
	case errors.Is(err, audit.ErrEventLost):
		logging.Ctx(r.Context()).Error().Err(err).Int("alert_id", req.AlertID).Msg("Audit event lost")
		rw.ServiceUnavailable("Event could not be stored or buffered")
	case err != nil:
		rw.InternalError("Failed to log event", err)
	default:
		rw.Accepted(result)
	}
}

// GetOccurrence handles GET /api/v1/occurrences/{id}.
func (h *Handler) GetOccurrence(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		rw.BadRequest("Occurrence id must be a positive integer")
		return
	}

	conn := h.stores.Primary(r.Context())
	if !health.IsHealthy(conn) {
		rw.ServiceUnavailable("Audit store unavailable")
		return
	}

	occ, err := conn.GetOccurrence(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) || database.IsTableNotFound(err) {
		rw.NotFound("Occurrence not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	meta, err := conn.ListMetadata(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(OccurrenceResponse{Occurrence: occ, Metadata: meta.Plain()})
}

// ListOccurrences handles GET /api/v1/occurrences, newest first.
func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := ListOccurrencesRequest{Limit: defaultListLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
		req.Limit = n
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	conn := h.stores.Primary(r.Context())
	if !health.IsHealthy(conn) {
		rw.ServiceUnavailable("Audit store unavailable")
		return
	}

	occs, err := conn.ListOccurrences(r.Context(), req.Limit, true)
	if err != nil && !database.IsTableNotFound(err) {
		rw.DatabaseError(err)
		return
	}
	if occs == nil {
		occs = []models.Occurrence{}
	}
	rw.Success(occs)
}

// Prune handles POST /api/v1/retention/prune.
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	result, err := h.retention.Run(r.Context())
	switch {
	case errors.Is(err, retention.ErrStoreUnavailable):
		rw.ServiceUnavailable("Audit store unavailable")
	case errors.Is(err, retention.ErrInvalidMaxAge), errors.Is(err, retention.ErrInvalidMaxCount):
		rw.BadRequest(err.Error())
	case err != nil:
		rw.InternalError("Prune failed", err)
	default:
		rw.Success(result)
	}
}

// DrainBuffer handles POST /api/v1/buffer/drain.
func (h *Handler) DrainBuffer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	result, err := h.buffer.DrainBuffer(r.Context())
	switch {
	case errors.Is(err, audit.ErrNoBuffer):
		rw.NotFound("No buffer store configured")
	case errors.Is(err, buffer.ErrDrainInProgress):
		rw.Conflict("A buffer drain is already in progress")
	case errors.Is(err, buffer.ErrDrainLockLost):
		rw.Conflict("Buffer drain lock was lost before the drain finished")
	case err != nil:
		rw.InternalError("Buffer drain failed", err)
	default:
		rw.Success(result)
	}
}

// BufferStatus handles GET /api/v1/buffer.
func (h *Handler) BufferStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	store := h.buffer.Buffer()
	if store == nil {
		rw.Success(BufferStatus{})
		return
	}
	n, err := store.Len(r.Context())
	if err != nil {
		rw.InternalError("Failed to read buffer", err)
		return
	}
	rw.Success(BufferStatus{Enabled: true, Pending: n})
}

// Healthz handles GET /healthz. It only reports that the process serves.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz: 200 while the primary store is reachable,
// 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	conn := h.stores.Primary(r.Context())
	if !health.IsHealthy(conn) {
		details := map[string]string{"store": conn.Name()}
		if err := conn.ConnectErr(); err != nil {
			details["error"] = err.Error()
		}
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Audit store unavailable", details)
		return
	}
	rw.Success(map[string]string{"status": "ready", "store": conn.Name()})
}
