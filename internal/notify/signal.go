// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package notify emits the post-write signal every logged audit event
// produces. Delivery is fire-and-forget: a slow or missing bus never delays
// or fails the write that triggered the signal.
package notify

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/auditkeep/internal/models"
)

// Signal is emitted after an event has been written or buffered.
type Signal struct {
	// Occurrence is the written row. Nil when the event was buffered.
	Occurrence *models.Occurrence `json:"occurrence,omitempty"`

	AlertID int         `json:"alert_id"`
	Data    models.Data `json:"data"`

	// Timestamp is the caller-supplied timestamp, if any.
	Timestamp *float64 `json:"timestamp,omitempty"`

	SiteID   int  `json:"site_id"`
	Migrated bool `json:"migrated"`
	Buffered bool `json:"buffered"`
}

// Sink receives post-write signals. Notify must not block the caller.
type Sink interface {
	Notify(ctx context.Context, sig Signal)
}

// SinkCloser is a Sink that owns resources.
type SinkCloser interface {
	Sink
	Close() error
}

// Nop discards every signal.
type Nop struct{}

// Notify implements Sink.
func (Nop) Notify(context.Context, Signal) {}

// Close implements SinkCloser.
func (Nop) Close() error { return nil }

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sig Signal)

// Notify implements Sink.
func (f SinkFunc) Notify(ctx context.Context, sig Signal) { f(ctx, sig) }

// DecodeSignal decodes a signal from a bus message.
func DecodeSignal(msg *message.Message) (Signal, error) {
	var sig Signal
	if err := json.Unmarshal(msg.Payload, &sig); err != nil {
		return Signal{}, fmt.Errorf("decode signal %s: %w", msg.UUID, err)
	}
	return sig, nil
}
