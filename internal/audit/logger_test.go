// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package audit

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/auditkeep/internal/buffer"
	"github.com/tomtom215/auditkeep/internal/database"
	"github.com/tomtom215/auditkeep/internal/models"
	"github.com/tomtom215/auditkeep/internal/notify"
	"github.com/tomtom215/auditkeep/internal/settings"
)

// Test helpers

// newSQLiteConn opens an in-memory SQLite store without tables.
func newSQLiteConn(t *testing.T, external bool) *database.Conn {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	conn, err := database.NewConn(db, database.DialectSQLite, "test_", external)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	return conn
}

func newTestBuffer(t *testing.T) buffer.Store {
	t.Helper()
	cfg := buffer.DefaultConfig()
	cfg.Path = ""
	cfg.InMemory = true
	store, err := buffer.OpenBadger(cfg)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestSettings(t *testing.T, values map[string]any) *settings.Koanf {
	t.Helper()
	s, err := settings.NewKoanf(values)
	if err != nil {
		t.Fatalf("NewKoanf: %v", err)
	}
	return s
}

// signalRecorder collects emitted signals.
type signalRecorder struct {
	mu      sync.Mutex
	signals []notify.Signal
}

func (r *signalRecorder) Notify(_ context.Context, sig notify.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
}

func (r *signalRecorder) all() []notify.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Signal(nil), r.signals...)
}

// fakeStore is an in-memory Store double.
type fakeStore struct {
	mu sync.Mutex

	connectErr error
	external   bool

	// missingTables makes inserts fail with a table-not-found error until
	// CreateTableIfMissing has been called.
	missingTables bool
	occErr        error
	metaErr       func(name string, attempt int) error

	nextID       int64
	occurrences  []models.Occurrence
	metadata     map[int64]models.Data
	metaAttempts map[string]int
	created      []string
	occCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{metadata: make(map[int64]models.Data), metaAttempts: make(map[string]int)}
}

func (f *fakeStore) ConnectErr() error { return f.connectErr }
func (f *fakeStore) External() bool    { return f.external }

func (f *fakeStore) InsertOccurrence(_ context.Context, occ *models.Occurrence) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.occCalls++
	if f.missingTables {
		return 0, errors.New("no such table: test_occurrences")
	}
	if f.occErr != nil {
		return 0, f.occErr
	}
	f.nextID++
	occ.ID = f.nextID
	f.occurrences = append(f.occurrences, *occ)
	return occ.ID, nil
}

func (f *fakeStore) InsertMetadata(_ context.Context, id int64, name string, v models.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingTables {
		return errors.New("no such table: test_metadata")
	}
	attempt := f.metaAttempts[name]
	f.metaAttempts[name]++
	if f.metaErr != nil {
		if err := f.metaErr(name, attempt); err != nil {
			return err
		}
	}
	if f.metadata[id] == nil {
		f.metadata[id] = models.Data{}
	}
	f.metadata[id][name] = v
	return nil
}

func (f *fakeStore) CreateTableIfMissing(_ context.Context, table string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, table)
	f.missingTables = false
	return true
}

func connectTo(s Store) ConnectFunc {
	return func(context.Context) Store { return s }
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestLogger(deps Deps, mutate ...func(*Config)) *Logger {
	cfg := DefaultConfig()
	cfg.Clock = fixedClock
	for _, m := range mutate {
		m(&cfg)
	}
	return New(deps, cfg)
}

// Healthy store, tables created lazily.
func TestLog_WritesOccurrenceAndMetadata(t *testing.T) {
	t.Parallel()
	conn := newSQLiteConn(t, false)
	rec := &signalRecorder{}
	logger := newTestLogger(Deps{Connect: connectTo(conn), Sink: rec, Buffer: newTestBuffer(t)})
	ctx := context.Background()

	res, err := logger.Log(ctx, 1003, map[string]any{"Username": "admin"})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if res.Outcome != OutcomeWritten {
		t.Fatalf("Outcome = %s, want written", res.Outcome)
	}
	if res.Occurrence == nil || res.Occurrence.ID == 0 {
		t.Fatalf("Occurrence = %+v, want an assigned id", res.Occurrence)
	}

	n, err := conn.CountOccurrences(ctx)
	if err != nil {
		t.Fatalf("CountOccurrences: %v", err)
	}
	if n != 1 {
		t.Errorf("occurrences = %d, want 1", n)
	}

	got, err := conn.GetOccurrence(ctx, res.Occurrence.ID)
	if err != nil {
		t.Fatalf("GetOccurrence: %v", err)
	}
	if got.AlertID != 1003 || got.IsMigrated {
		t.Errorf("occurrence = %+v", got)
	}
	if got.CreatedOn != models.Timestamp(fixedNow) {
		t.Errorf("CreatedOn = %v, want %v", got.CreatedOn, models.Timestamp(fixedNow))
	}

	meta, err := conn.ListMetadata(ctx, res.Occurrence.ID)
	if err != nil {
		t.Fatalf("ListMetadata: %v", err)
	}
	if len(meta) != 1 {
		t.Fatalf("metadata = %v, want one row", meta)
	}
	if v, ok := meta["Username"].AsString(); !ok || v != "admin" {
		t.Errorf("Username = %v, want admin", meta["Username"])
	}

	signals := rec.all()
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
	if signals[0].Occurrence == nil || signals[0].Buffered || signals[0].AlertID != 1003 {
		t.Errorf("signal = %+v", signals[0])
	}
}

// Alert codes below the threshold are dropped.
func TestLog_FiltersLegacyAlertCodes(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	buf := newTestBuffer(t)
	rec := &signalRecorder{}
	connected := false
	logger := newTestLogger(Deps{
		Connect: func(context.Context) Store { connected = true; return store },
		Buffer:  buf,
		Sink:    rec,
	})

	for _, alertID := range []int{9, 0, -5} {
		res, err := logger.Log(context.Background(), alertID, map[string]any{"Username": "admin"})
		if err != nil {
			t.Fatalf("Log(%d) error = %v", alertID, err)
		}
		if res.Outcome != OutcomeFiltered {
			t.Errorf("Log(%d) Outcome = %s, want filtered", alertID, res.Outcome)
		}
	}

	if connected {
		t.Error("filtered events must not touch the store")
	}
	if store.occCalls != 0 {
		t.Errorf("InsertOccurrence calls = %d, want 0", store.occCalls)
	}
	if n, _ := buf.Len(context.Background()); n != 0 {
		t.Errorf("buffer entries = %d, want 0", n)
	}
	if len(rec.all()) != 0 {
		t.Error("filtered events must not emit signals")
	}
}

// Increasing explicit timestamps read back in id order.
func TestLog_ExplicitTimestampsPreserveOrder(t *testing.T) {
	t.Parallel()
	conn := newSQLiteConn(t, false)
	logger := newTestLogger(Deps{Connect: connectTo(conn)})
	ctx := context.Background()

	stamps := []float64{1600000000.000001, 1600000000.000002, 1600000000.5, 1600000001, 1600000001}
	for _, ts := range stamps {
		if _, err := logger.Log(ctx, 2000, map[string]any{"n": ts}, WithTimestamp(ts)); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	rows, err := conn.ListOccurrences(ctx, 100, false)
	if err != nil {
		t.Fatalf("ListOccurrences: %v", err)
	}
	if len(rows) != len(stamps) {
		t.Fatalf("rows = %d, want %d", len(rows), len(stamps))
	}
	for i := range rows {
		if !rows[i].IsMigrated {
			t.Errorf("row %d IsMigrated = false, want true for explicit timestamps", i)
		}
		if rows[i].CreatedOn != stamps[i] {
			t.Errorf("row %d CreatedOn = %v, want %v", i, rows[i].CreatedOn, stamps[i])
		}
		if i > 0 && rows[i].CreatedOn < rows[i-1].CreatedOn {
			t.Errorf("row %d created_on %v < previous %v", i, rows[i].CreatedOn, rows[i-1].CreatedOn)
		}
	}
}

// An unreachable store buffers without attempting a direct insert.
func TestLog_BuffersWhenStoreUnreachable(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.connectErr = errors.New("dial tcp: connection refused")
	buf := newTestBuffer(t)
	rec := &signalRecorder{}
	logger := newTestLogger(Deps{Connect: connectTo(store), Buffer: buf, Sink: rec})
	ctx := context.Background()

	res, err := logger.Log(ctx, 1003, map[string]any{"Username": "admin"}, WithSiteID(4))
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if res.Outcome != OutcomeBuffered {
		t.Errorf("Outcome = %s, want buffered", res.Outcome)
	}
	if store.occCalls != 0 {
		t.Errorf("InsertOccurrence calls = %d, want 0", store.occCalls)
	}

	entries, err := buf.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("buffer entries = %d, want 1", len(entries))
	}
	occ := entries[0].Event.Occurrence
	if occ.AlertID != 1003 || occ.SiteID != 4 || occ.CreatedOn != models.Timestamp(fixedNow) {
		t.Errorf("buffered occurrence = %+v", occ)
	}
	if entries[0].Key != res.BufferKey {
		t.Errorf("BufferKey = %s, entry key = %s", res.BufferKey, entries[0].Key)
	}
	if v, _ := entries[0].Event.Metadata["Username"].AsString(); v != "admin" {
		t.Errorf("buffered metadata = %v", entries[0].Event.Metadata)
	}

	signals := rec.all()
	if len(signals) != 1 || !signals[0].Buffered || signals[0].Occurrence != nil {
		t.Errorf("signals = %+v, want one buffered signal without occurrence", signals)
	}
}

func TestLog_BuffersWithNilConnection(t *testing.T) {
	t.Parallel()
	buf := newTestBuffer(t)
	var nilConn *database.Conn
	logger := newTestLogger(Deps{
		Connect: func(context.Context) Store { return nilConn },
		Buffer:  buf,
	})

	res, err := logger.Log(context.Background(), 1003, nil)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if res.Outcome != OutcomeBuffered {
		t.Errorf("Outcome = %s, want buffered", res.Outcome)
	}
}

// A metadata failure never removes the occurrence.
func TestLog_MetadataFailureKeepsOccurrence(t *testing.T) {
	t.Parallel()
	conn := newSQLiteConn(t, false)
	if err := conn.CreateTables(context.Background()); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	failing := &failingMetadataConn{Conn: conn}
	logger := newTestLogger(Deps{Connect: connectTo(failing)})
	ctx := context.Background()

	res, err := logger.Log(ctx, 1003, map[string]any{"Username": "admin", "IP": "10.0.0.1"})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if res.Outcome != OutcomeWritten {
		t.Fatalf("Outcome = %s, want written", res.Outcome)
	}
	if res.MetadataFailures != 2 {
		t.Errorf("MetadataFailures = %d, want 2", res.MetadataFailures)
	}

	got, err := conn.GetOccurrence(ctx, res.Occurrence.ID)
	if err != nil {
		t.Fatalf("GetOccurrence after metadata failure: %v", err)
	}
	if got.AlertID != 1003 {
		t.Errorf("AlertID = %d, want 1003", got.AlertID)
	}
}

// failingMetadataConn is a real store whose metadata inserts always fail.
type failingMetadataConn struct {
	*database.Conn
}

func (f *failingMetadataConn) InsertMetadata(context.Context, int64, string, models.Value) error {
	return errors.New("disk full")
}

func TestLog_DecisionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		external  bool
		useBuffer bool
		override  bool
		want      Outcome
	}{
		{"local store, buffer policy off", false, false, false, OutcomeWritten},
		{"local store, buffer policy on", false, true, false, OutcomeWritten},
		{"external store, buffer policy off", true, false, false, OutcomeWritten},
		{"external store, buffer policy on", true, true, false, OutcomeBuffered},
		{"external store, buffer policy on, override", true, true, true, OutcomeWritten},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			store.external = tt.external
			logger := newTestLogger(Deps{
				Settings: newTestSettings(t, map[string]any{settings.KeyUseExternalBuffer: tt.useBuffer}),
				Connect:  connectTo(store),
				Buffer:   newTestBuffer(t),
			})

			var opts []LogOption
			if tt.override {
				opts = append(opts, WithBufferOverride())
			}
			res, err := logger.Log(context.Background(), 1003, map[string]any{"k": "v"}, opts...)
			if err != nil {
				t.Fatalf("Log() error = %v", err)
			}
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s", res.Outcome, tt.want)
			}
			wantCalls := 0
			if tt.want == OutcomeWritten {
				wantCalls = 1
			}
			if store.occCalls != wantCalls {
				t.Errorf("InsertOccurrence calls = %d, want %d", store.occCalls, wantCalls)
			}
		})
	}
}

func TestLog_Timestamp(t *testing.T) {
	t.Parallel()
	hooked := 1700000000.25
	hook := func(float64, int, models.Data) float64 { return hooked }

	tests := []struct {
		name    string
		data    map[string]any
		opts    []LogOption
		want    float64
		migrate bool
	}{
		{"hook replaces now", map[string]any{"a": 1}, nil, hooked, false},
		{"float data timestamp wins", map[string]any{TimestampKey: 1500000000.5}, nil, 1500000000.5, false},
		{"int data timestamp wins", map[string]any{TimestampKey: 1500000000}, nil, 1500000000, false},
		{"string data timestamp wins", map[string]any{TimestampKey: " 1500000000.75 "}, nil, 1500000000.75, false},
		{"unparseable data timestamp falls back", map[string]any{TimestampKey: "yesterday"}, nil, hooked, false},
		{"zero data timestamp falls back", map[string]any{TimestampKey: 0}, nil, hooked, false},
		{"explicit timestamp is verbatim", map[string]any{TimestampKey: 1500000000.5}, []LogOption{WithTimestamp(1400000000.000001)}, 1400000000.000001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			logger := newTestLogger(Deps{Connect: connectTo(store), TimestampHook: hook})

			res, err := logger.Log(context.Background(), 1003, tt.data, tt.opts...)
			if err != nil {
				t.Fatalf("Log() error = %v", err)
			}
			if res.Occurrence.CreatedOn != tt.want {
				t.Errorf("CreatedOn = %v, want %v", res.Occurrence.CreatedOn, tt.want)
			}
			if res.Occurrence.IsMigrated != tt.migrate {
				t.Errorf("IsMigrated = %v, want %v", res.Occurrence.IsMigrated, tt.migrate)
			}
			if _, stored := store.metadata[res.Occurrence.ID][TimestampKey]; stored {
				t.Error("Timestamp must not be stored as metadata")
			}
		})
	}
}

func TestLog_SiteID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sites SiteProvider
		hook  SiteIDHook
		opts  []LogOption
		want  int
	}{
		{"default", nil, nil, nil, 0},
		{"provider", StaticSite(3), nil, nil, 3},
		{"explicit wins over provider", StaticSite(3), nil, []LogOption{WithSiteID(8)}, 8},
		{"hook overrides", StaticSite(3), func(site, _ int) int { return site * 10 }, nil, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			logger := newTestLogger(Deps{Connect: connectTo(store), Sites: tt.sites, SiteIDHook: tt.hook})
			res, err := logger.Log(context.Background(), 1003, nil, tt.opts...)
			if err != nil {
				t.Fatalf("Log() error = %v", err)
			}
			if res.Occurrence.SiteID != tt.want {
				t.Errorf("SiteID = %d, want %d", res.Occurrence.SiteID, tt.want)
			}
		})
	}
}

func TestLog_MalformedData(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	logger := newTestLogger(Deps{Connect: connectTo(store)})

	_, err := logger.Log(context.Background(), 1003, map[string]any{"ch": make(chan int)})
	if !errors.Is(err, ErrMalformedData) {
		t.Errorf("error = %v, want ErrMalformedData", err)
	}
	if !errors.Is(err, models.ErrUnsupportedValue) {
		t.Errorf("error = %v, want ErrUnsupportedValue", err)
	}

	_, err = logger.Log(context.Background(), 1003, map[string]any{"": "x"})
	if !errors.Is(err, ErrMalformedData) {
		t.Errorf("empty name error = %v, want ErrMalformedData", err)
	}

	_, err = logger.Log(context.Background(), 1003, nil, WithTimestamp(-1))
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("negative timestamp error = %v, want ErrInvalidTimestamp", err)
	}

	if store.occCalls != 0 {
		t.Errorf("InsertOccurrence calls = %d, want 0", store.occCalls)
	}
}

func TestLog_TableNotFoundRetriesOnce(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.missingTables = true
	logger := newTestLogger(Deps{Connect: connectTo(store)})

	res, err := logger.Log(context.Background(), 1003, map[string]any{"Username": "admin"})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if res.Outcome != OutcomeWritten {
		t.Errorf("Outcome = %s, want written", res.Outcome)
	}
	if store.occCalls != 2 {
		t.Errorf("InsertOccurrence calls = %d, want 2", store.occCalls)
	}
	if len(store.created) != 2 {
		t.Errorf("created tables = %v, want both", store.created)
	}
}

func TestLog_OccurrenceFailureFallsBackToBuffer(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.occErr = errors.New("deadlock found")
	buf := newTestBuffer(t)
	logger := newTestLogger(Deps{Connect: connectTo(store), Buffer: buf})

	res, err := logger.Log(context.Background(), 1003, map[string]any{"Username": "admin"})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if res.Outcome != OutcomeBuffered {
		t.Errorf("Outcome = %s, want buffered", res.Outcome)
	}
	if n, _ := buf.Len(context.Background()); n != 1 {
		t.Errorf("buffer entries = %d, want 1", n)
	}
}

func TestLog_NoBuffer(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.connectErr = errors.New("refused")
	logger := newTestLogger(Deps{Connect: connectTo(store)})

	_, err := logger.Log(context.Background(), 1003, nil)
	if !errors.Is(err, ErrEventLost) || !errors.Is(err, ErrNoBuffer) {
		t.Errorf("error = %v, want ErrEventLost and ErrNoBuffer", err)
	}
}

func TestWriteDirect_MetadataRetries(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	// Fails twice, then succeeds.
	store.metaErr = func(_ string, attempt int) error {
		if attempt < 2 {
			return errors.New("lock wait timeout")
		}
		return nil
	}

	tests := []struct {
		retries      int
		wantFailures int
	}{
		{0, 1},
		{2, 0},
	}

	for _, tt := range tests {
		store.metaAttempts = make(map[string]int)
		logger := newTestLogger(Deps{}, func(c *Config) { c.MetadataRetries = tt.retries })
		occ := &models.Occurrence{AlertID: 1003, CreatedOn: 1700000000}
		failures, err := logger.WriteDirect(context.Background(), store, occ, models.Data{"k": models.String("v")})
		if err != nil {
			t.Fatalf("WriteDirect() error = %v", err)
		}
		if failures != tt.wantFailures {
			t.Errorf("retries=%d: failures = %d, want %d", tt.retries, failures, tt.wantFailures)
		}
	}
}

// Three buffered entries drain in order.
func TestDrainBuffer_WritesInOrder(t *testing.T) {
	t.Parallel()
	conn := newSQLiteConn(t, false)
	buf := newTestBuffer(t)
	logger := newTestLogger(Deps{Connect: connectTo(conn), Buffer: buf})
	ctx := context.Background()

	for i, ts := range []float64{1700000003, 1700000001, 1700000002} {
		occ := &models.Occurrence{AlertID: 1000 + i, CreatedOn: ts, IsMigrated: i == 1}
		if ok, err := buf.Enqueue(ctx, occ, models.Data{"i": models.Int(int64(i))}); !ok || err != nil {
			t.Fatalf("Enqueue: %v, %v", ok, err)
		}
	}

	result, err := logger.DrainBuffer(ctx)
	if err != nil {
		t.Fatalf("DrainBuffer() error = %v", err)
	}
	if result.Drained != 3 || result.Failed != 0 {
		t.Errorf("result = %+v, want 3 drained", result)
	}
	if n, _ := buf.Len(ctx); n != 0 {
		t.Errorf("buffer entries after drain = %d, want 0", n)
	}

	rows, err := conn.ListOccurrences(ctx, 10, false)
	if err != nil {
		t.Fatalf("ListOccurrences: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	wantAlerts := []int{1001, 1002, 1000}
	for i, row := range rows {
		if row.AlertID != wantAlerts[i] {
			t.Errorf("row %d AlertID = %d, want %d", i, row.AlertID, wantAlerts[i])
		}
	}
	if !rows[0].IsMigrated || rows[1].IsMigrated {
		t.Error("is_migrated must survive the buffer")
	}
	meta, err := conn.ListMetadata(ctx, rows[0].ID)
	if err != nil {
		t.Fatalf("ListMetadata: %v", err)
	}
	if v, _ := meta["i"].AsInt(); v != 1 {
		t.Errorf("metadata i = %v, want 1", meta["i"])
	}
}

func TestWriteBuffered_StoreUnavailable(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.connectErr = errors.New("refused")
	buf := newTestBuffer(t)
	logger := newTestLogger(Deps{Connect: connectTo(store), Buffer: buf})
	ctx := context.Background()

	if ok, err := buf.Enqueue(ctx, &models.Occurrence{AlertID: 1003, CreatedOn: 1700000000}, nil); !ok || err != nil {
		t.Fatalf("Enqueue: %v, %v", ok, err)
	}

	result, err := logger.DrainBuffer(ctx)
	if err != nil {
		t.Fatalf("DrainBuffer() error = %v", err)
	}
	if result.Failed != 1 || result.Drained != 0 {
		t.Errorf("result = %+v, want 1 failed", result)
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], ErrStoreUnavailable) {
		t.Errorf("Errors = %v, want ErrStoreUnavailable", result.Errors)
	}
	if n, _ := buf.Len(ctx); n != 1 {
		t.Errorf("buffer entries = %d, want 1", n)
	}
}

func TestDrainBuffer_NoBuffer(t *testing.T) {
	t.Parallel()
	logger := newTestLogger(Deps{})
	if _, err := logger.DrainBuffer(context.Background()); !errors.Is(err, ErrNoBuffer) {
		t.Errorf("DrainBuffer() error = %v, want ErrNoBuffer", err)
	}
}

func TestLog_Concurrent(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	logger := newTestLogger(Deps{Connect: connectTo(store)})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := logger.Log(context.Background(), 1000+i, map[string]any{"i": i}); err != nil {
				t.Errorf("Log() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.occurrences) != 20 {
		t.Errorf("occurrences = %d, want 20", len(store.occurrences))
	}
}
