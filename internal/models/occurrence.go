// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package models

import (
	"math"
	"time"
)

// Occurrence is one persisted audit event. Rows are append-only: the store
// assigns ID on insert and nothing updates them afterwards.
type Occurrence struct {
	ID      int64 `json:"id"`
	SiteID  int   `json:"site_id"`
	AlertID int   `json:"alert_id"`

	// CreatedOn is Unix seconds with microsecond precision. Ordering inside
	// a single second matters, so this is never truncated to an integer.
	CreatedOn float64 `json:"created_on"`

	// IsMigrated marks rows imported from a legacy schema.
	IsMigrated bool `json:"is_migrated"`
}

// Time returns CreatedOn as a time.Time in UTC.
func (o *Occurrence) Time() time.Time {
	return TimeFromTimestamp(o.CreatedOn)
}

// MetaEntry is one named value attached to an occurrence. (OccurrenceID, Name)
// is unique.
type MetaEntry struct {
	OccurrenceID int64  `json:"occurrence_id"`
	Name         string `json:"name"`
	Value        Value  `json:"value"`
}

// BufferedEvent is an occurrence snapshot plus its metadata, staged while
// the primary store cannot take the write.
type BufferedEvent struct {
	Occurrence Occurrence `json:"occurrence"`
	Metadata   Data       `json:"metadata"`
}

// Timestamp converts t to Unix seconds with microsecond precision.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// TimeFromTimestamp converts Unix seconds back to a time.Time in UTC.
func TimeFromTimestamp(ts float64) time.Time {
	micros := int64(math.Round(ts * 1e6))
	return time.UnixMicro(micros).UTC()
}

// ValidTimestamp reports whether ts can be used as a created_on value.
func ValidTimestamp(ts float64) bool {
	return ts > 0 && !math.IsNaN(ts) && !math.IsInf(ts, 0)
}
