// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package models defines the audit record shapes shared by the store, the
// buffer and the HTTP API.
//
// An Occurrence is one stored event row. Its Data is a set of named
// metadata Values, each a tagged union (null, string, int, float, bool,
// list, map) that survives a round trip through every store and the buffer
// without losing its kind:
//
//	v, err := models.FromAny(map[string]any{"roles": []any{"admin"}})
//	enc, _ := v.Encode()       // stored in the metadata value column
//	back, _ := models.ParseValue(enc)
//	back.Equal(v)              // true
package models
