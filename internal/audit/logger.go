// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/auditkeep/internal/buffer"
	"github.com/tomtom215/auditkeep/internal/health"
	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/metrics"
	"github.com/tomtom215/auditkeep/internal/models"
	"github.com/tomtom215/auditkeep/internal/notify"
	"github.com/tomtom215/auditkeep/internal/settings"
)

// TimestampKey is the data key that carries a caller-supplied timestamp. It
// is consumed, never stored as metadata.
const TimestampKey = "Timestamp"

// DefaultMinAlertID is the lowest alert code that is logged.
const DefaultMinAlertID = 10

// Errors
var (
	// ErrMalformedData is returned when data holds a value that cannot be
	// stored. It also matches models.ErrUnsupportedValue.
	ErrMalformedData = errors.New("malformed event data")

	// ErrInvalidTimestamp is returned for an unusable WithTimestamp value.
	ErrInvalidTimestamp = errors.New("invalid event timestamp")

	// ErrNoBuffer is returned when an event must be buffered and no buffer
	// store is configured.
	ErrNoBuffer = errors.New("no buffer store configured")

	// ErrEventLost is returned when neither the store nor the buffer took
	// the event.
	ErrEventLost = errors.New("event could not be written or buffered")

	// ErrStoreUnavailable is returned by WriteBuffered while the store is
	// unreachable.
	ErrStoreUnavailable = errors.New("audit store unavailable")
)

// Outcome says where an event went.
type Outcome string

// Outcomes.
const (
	OutcomeWritten  Outcome = metrics.OutcomeWritten
	OutcomeBuffered Outcome = metrics.OutcomeBuffered
	OutcomeFiltered Outcome = metrics.OutcomeFiltered
)

// Store is the part of a store handle the logger writes through.
// *database.Conn implements it.
type Store interface {
	health.Handle
	External() bool
	InsertOccurrence(ctx context.Context, occ *models.Occurrence) (int64, error)
	InsertMetadata(ctx context.Context, occurrenceID int64, name string, value models.Value) error
	CreateTableIfMissing(ctx context.Context, table string) bool
}

// ConnectFunc returns the current primary store handle. It must not block
// beyond the store's connect timeout and may return an unhealthy handle.
type ConnectFunc func(ctx context.Context) Store

// SiteProvider supplies the current site identifier.
type SiteProvider interface {
	CurrentSiteID() int
}

// StaticSite is a SiteProvider with a fixed identifier.
type StaticSite int

// CurrentSiteID implements SiteProvider.
func (s StaticSite) CurrentSiteID() int { return int(s) }

// TimestampHook may replace the computed created_on of a new event.
type TimestampHook func(now float64, alertID int, data models.Data) float64

// SiteIDHook may replace the computed site ID of a new event.
type SiteIDHook func(siteID, alertID int) int

// Deps are the logger's collaborators.
type Deps struct {
	Settings settings.Provider
	Sites    SiteProvider
	Connect  ConnectFunc
	Buffer   buffer.Store
	Sink     notify.Sink

	TimestampHook TimestampHook
	SiteIDHook    SiteIDHook
}

// Config holds logger tunables.
type Config struct {
	// MetadataRetries is the number of extra attempts per metadata row.
	MetadataRetries int `koanf:"metadata_retries" validate:"gte=0,lte=10"`

	// MinAlertID filters alert codes below it.
	MinAlertID int `koanf:"min_alert_id"`

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time `koanf:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MetadataRetries: 0,
		MinAlertID:      DefaultMinAlertID,
		Clock:           time.Now,
	}
}

// Result describes what Log did.
type Result struct {
	Outcome    Outcome            `json:"outcome"`
	Occurrence *models.Occurrence `json:"occurrence,omitempty"`

	// BufferKey is set when the event was buffered.
	BufferKey string `json:"buffer_key,omitempty"`

	// MetadataFailures counts metadata rows that could not be written.
	MetadataFailures int `json:"metadata_failures"`
}

// LogOption customises one Log call.
type LogOption func(*logOptions)

type logOptions struct {
	timestamp      *float64
	siteID         *int
	overrideBuffer bool
}

// WithTimestamp sets created_on verbatim and marks the row as migrated. It
// exists for importing legacy records.
func WithTimestamp(ts float64) LogOption {
	return func(o *logOptions) { o.timestamp = &ts }
}

// WithSiteID sets the site ID instead of asking the SiteProvider.
func WithSiteID(id int) LogOption {
	return func(o *logOptions) { o.siteID = &id }
}

// WithBufferOverride writes directly to a reachable external store even
// when the buffer.use_external setting is on.
func WithBufferOverride() LogOption {
	return func(o *logOptions) { o.overrideBuffer = true }
}

// Logger records audit events. It is safe for concurrent use.
type Logger struct {
	deps   Deps
	config Config

	warnLimiter *rate.Limiter
	suppressed  atomic.Int64
}

// New creates a Logger. Missing Settings and Sink dependencies default to
// empty settings and a Nop sink.
func New(deps Deps, cfg Config) *Logger {
	if deps.Settings == nil {
		deps.Settings = emptySettings{}
	}
	if deps.Sink == nil {
		deps.Sink = notify.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MinAlertID == 0 {
		cfg.MinAlertID = DefaultMinAlertID
	}
	if cfg.MetadataRetries < 0 {
		cfg.MetadataRetries = 0
	}

	return &Logger{
		deps:   deps,
		config: cfg,
		// At most one metadata warning per 10s after a burst of 5.
		warnLimiter: rate.NewLimiter(rate.Every(10*time.Second), 5),
	}
}

// Log records one audit event. It returns an error only for data that
// cannot be stored and for events neither the store nor the buffer took;
// an unreachable store is handled by buffering.
func (l *Logger) Log(ctx context.Context, alertID int, data map[string]any, opts ...LogOption) (*Result, error) {
	if alertID < l.config.MinAlertID {
		metrics.RecordEvent(metrics.OutcomeFiltered)
		return &Result{Outcome: OutcomeFiltered}, nil
	}

	var o logOptions
	for _, opt := range opts {
		opt(&o)
	}

	values, err := models.DataFromMap(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	for name := range values {
		if name == "" {
			return nil, fmt.Errorf("%w: empty metadata name", ErrMalformedData)
		}
	}
	if o.timestamp != nil && !models.ValidTimestamp(*o.timestamp) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimestamp, *o.timestamp)
	}

	dataTimestamp, hasDataTimestamp := values[TimestampKey]
	delete(values, TimestampKey)

	occ := &models.Occurrence{
		AlertID:    alertID,
		SiteID:     l.siteID(alertID, o.siteID),
		CreatedOn:  l.createdOn(alertID, values, o.timestamp, dataTimestamp, hasDataTimestamp),
		IsMigrated: o.timestamp != nil,
	}

	conn := l.connect(ctx)
	result, err := l.route(ctx, conn, occ, values, o.overrideBuffer)
	if err != nil {
		return nil, err
	}

	metrics.RecordEvent(string(result.Outcome))
	l.deps.Sink.Notify(ctx, notify.Signal{
		Occurrence: result.Occurrence,
		AlertID:    alertID,
		Data:       values,
		Timestamp:  o.timestamp,
		SiteID:     occ.SiteID,
		Migrated:   occ.IsMigrated,
		Buffered:   result.Outcome == OutcomeBuffered,
	})

	return result, nil
}

// route applies the write decision table.
func (l *Logger) route(ctx context.Context, conn Store, occ *models.Occurrence, data models.Data, override bool) (*Result, error) {
	healthy := health.IsHealthy(conn)
	useBuffer := l.deps.Settings.GetBool(settings.KeyUseExternalBuffer)

	switch {
	case !healthy:
		return l.enqueue(ctx, occ, data)
	case conn.External() && useBuffer && !override:
		return l.enqueue(ctx, occ, data)
	}

	failures, err := l.WriteDirect(ctx, conn, occ, data)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("alert_id", occ.AlertID).
			Msg("Direct write failed, buffering event")
		occ.ID = 0
		return l.enqueue(ctx, occ, data)
	}

	return &Result{Outcome: OutcomeWritten, Occurrence: occ, MetadataFailures: failures}, nil
}

func (l *Logger) enqueue(ctx context.Context, occ *models.Occurrence, data models.Data) (*Result, error) {
	if l.deps.Buffer == nil {
		return nil, fmt.Errorf("%w: %w", ErrEventLost, ErrNoBuffer)
	}
	ok, err := l.deps.Buffer.Enqueue(ctx, occ, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventLost, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: buffer rejected snapshot for alert %d", ErrEventLost, occ.AlertID)
	}
	return &Result{Outcome: OutcomeBuffered, BufferKey: buffer.KeyFor(occ.CreatedOn)}, nil
}

func (l *Logger) connect(ctx context.Context) Store {
	if l.deps.Connect == nil {
		return nil
	}
	return l.deps.Connect(ctx)
}

func (l *Logger) siteID(alertID int, explicit *int) int {
	id := 0
	switch {
	case explicit != nil:
		id = *explicit
	case l.deps.Sites != nil:
		id = l.deps.Sites.CurrentSiteID()
	}
	if l.deps.SiteIDHook != nil {
		id = l.deps.SiteIDHook(id, alertID)
	}
	return id
}

func (l *Logger) createdOn(alertID int, data models.Data, explicit *float64, dataTS models.Value, hasDataTS bool) float64 {
	if explicit != nil {
		return *explicit
	}

	now := models.Timestamp(l.config.Clock())
	if l.deps.TimestampHook != nil {
		if hooked := l.deps.TimestampHook(now, alertID, data); models.ValidTimestamp(hooked) {
			now = hooked
		}
	}

	if hasDataTS {
		if ts, ok := timestampFromValue(dataTS); ok {
			return ts
		}
	}
	return now
}

// timestampFromValue accepts numbers and numeric strings.
func timestampFromValue(v models.Value) (float64, bool) {
	ts, ok := v.AsFloat()
	if s, isString := v.AsString(); isString {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		ts, ok = f, err == nil
	}
	return ts, ok && models.ValidTimestamp(ts)
}

type emptySettings struct{}

func (emptySettings) GetBool(string) bool       { return false }
func (emptySettings) Get(_ string, def any) any { return def }
