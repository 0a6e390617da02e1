// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package api

import (
	"github.com/tomtom215/auditkeep/internal/audit"
	"github.com/tomtom215/auditkeep/internal/models"
)

// EventRequest is the body of POST /api/v1/events.
type EventRequest struct {
	AlertID int            `json:"alert_id" validate:"required,gte=1"`
	Data    map[string]any `json:"data" validate:"omitempty,dive,keys,required,endkeys"`

	// Timestamp imports a legacy record with its original created_on.
	Timestamp *float64 `json:"timestamp,omitempty" validate:"omitempty,timestamp"`

	SiteID         *int `json:"site_id,omitempty" validate:"omitempty,gte=0"`
	OverrideBuffer bool `json:"override_buffer,omitempty"`
}

// Options converts the optional fields to audit.LogOption values.
func (r *EventRequest) Options() []audit.LogOption {
	var opts []audit.LogOption
	if r.Timestamp != nil {
		opts = append(opts, audit.WithTimestamp(*r.Timestamp))
	}
	if r.SiteID != nil {
		opts = append(opts, audit.WithSiteID(*r.SiteID))
	}
	if r.OverrideBuffer {
		opts = append(opts, audit.WithBufferOverride())
	}
	return opts
}

// ListOccurrencesRequest holds the query parameters of
// GET /api/v1/occurrences.
type ListOccurrencesRequest struct {
	Limit int `json:"limit" validate:"min=1,max=1000"`
}

// OccurrenceResponse is an occurrence with its metadata as plain JSON values.
type OccurrenceResponse struct {
	Occurrence *models.Occurrence `json:"occurrence"`
	Metadata   map[string]any     `json:"metadata"`
}

// BufferStatus is the body of GET /api/v1/buffer.
type BufferStatus struct {
	Enabled bool `json:"enabled"`
	Pending int  `json:"pending"`
}
