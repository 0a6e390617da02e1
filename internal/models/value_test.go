// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package models

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestValue_RoundTripNested(t *testing.T) {
	t.Parallel()

	original := Map(map[string]Value{
		"user":    String("admin"),
		"roles":   List(String("administrator"), String("editor")),
		"id":      Int(math.MaxInt64),
		"ratio":   Float(2),
		"enabled": Bool(true),
		"missing": Null(),
		"nested":  Map(map[string]Value{"depth": List(Int(1), List(Float(0.5)))}),
	})

	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := ParseValue(encoded)
	if err != nil {
		t.Fatalf("ParseValue(%s): %v", encoded, err)
	}
	if !decoded.Equal(original) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", decoded, original)
	}

	m, _ := decoded.AsMap()
	if k := m["ratio"].Kind(); k != KindFloat {
		t.Errorf("ratio kind = %s, want float (integral floats must stay floats)", k)
	}
	if i, ok := m["id"].AsInt(); !ok || i != math.MaxInt64 {
		t.Errorf("id = %d, %v; want exact int64", i, ok)
	}
}

func TestValue_EnvelopeShape(t *testing.T) {
	t.Parallel()

	got, err := String("admin").Encode()
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"t":"string","v":"admin"}` {
		t.Errorf("Encode() = %s", got)
	}

	got, _ = Null().Encode()
	if got != `{"t":"null"}` {
		t.Errorf("null Encode() = %s", got)
	}
}

func TestParseValue_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"not json", "admin"},
		{"empty", ""},
		{"truncated", `{"t":"int","v":`},
		{"bare number", "42"},
		{"unknown kind", `{"t":"blob","v":"x"}`},
		{"missing payload", `{"t":"int"}`},
		{"wrong payload", `{"t":"int","v":"seven"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseValue(tt.input); !errors.Is(err, ErrInvalidEncoding) {
				t.Errorf("ParseValue(%q) error = %v, want ErrInvalidEncoding", tt.input, err)
			}
		})
	}
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	v, err := FromAny(map[string]any{
		"count":  3,
		"small":  uint8(7),
		"ratio":  float32(0.5),
		"tags":   []string{"a", "b"},
		"number": json.Number("42"),
		"items":  []any{"x", true, nil},
	})
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	m, ok := v.AsMap()
	if !ok {
		t.Fatalf("expected map, got %s", v.Kind())
	}
	if i, _ := m["count"].AsInt(); i != 3 {
		t.Errorf("count = %d", i)
	}
	if i, _ := m["number"].AsInt(); i != 42 {
		t.Errorf("json.Number should become int, got %s", m["number"].Kind())
	}
	items, _ := m["items"].AsList()
	if len(items) != 3 || !items[2].IsNull() {
		t.Errorf("items = %v", items)
	}
}

func TestFromAny_Unsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input any
	}{
		{"struct", struct{ A int }{1}},
		{"channel", make(chan int)},
		{"NaN", math.NaN()},
		{"infinity", math.Inf(1)},
		{"uint overflow", uint64(math.MaxUint64)},
		{"nested func", map[string]any{"cb": func() {}}},
		{"int keyed map", map[int]string{1: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := FromAny(tt.input); !errors.Is(err, ErrUnsupportedValue) {
				t.Errorf("FromAny(%T) error = %v, want ErrUnsupportedValue", tt.input, err)
			}
		})
	}
}

func TestValue_AnyAndString(t *testing.T) {
	t.Parallel()

	v := List(Int(1), String("two"), Bool(false))
	plain, ok := v.Any().([]any)
	if !ok || len(plain) != 3 {
		t.Fatalf("Any() = %#v", v.Any())
	}
	if plain[0] != int64(1) || plain[1] != "two" || plain[2] != false {
		t.Errorf("Any() = %#v", plain)
	}
	if s := v.String(); s != `[1,"two",false]` {
		t.Errorf("String() = %s", s)
	}
	if s := String("admin").String(); s != "admin" {
		t.Errorf("String() = %s", s)
	}
}

func TestValue_EqualDistinguishesKinds(t *testing.T) {
	t.Parallel()

	if Int(1).Equal(Float(1)) {
		t.Error("int 1 must not equal float 1")
	}
	if !List().Equal(List()) {
		t.Error("empty lists must be equal")
	}
	if Map(map[string]Value{"a": Int(1)}).Equal(Map(map[string]Value{"b": Int(1)})) {
		t.Error("maps with different keys must differ")
	}
}

func TestDataFromMap(t *testing.T) {
	t.Parallel()

	d, err := DataFromMap(map[string]any{"Username": "admin", "Attempts": 2})
	if err != nil {
		t.Fatalf("DataFromMap: %v", err)
	}
	if names := strings.Join(d.Names(), ","); names != "Attempts,Username" {
		t.Errorf("Names() = %s", names)
	}

	if _, err := DataFromMap(map[string]any{"bad": struct{}{}}); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("expected ErrUnsupportedValue, got %v", err)
	}
}

func TestData_Entries(t *testing.T) {
	t.Parallel()

	d := Data{"Username": String("admin"), "Attempts": Int(2)}
	entries := d.Entries(42)
	if len(entries) != 2 {
		t.Fatalf("Entries() returned %d rows, want 2", len(entries))
	}
	want := []MetaEntry{
		{OccurrenceID: 42, Name: "Attempts", Value: Int(2)},
		{OccurrenceID: 42, Name: "Username", Value: String("admin")},
	}
	for i, e := range entries {
		if e.OccurrenceID != want[i].OccurrenceID || e.Name != want[i].Name || !e.Value.Equal(want[i].Value) {
			t.Errorf("entries[%d] = %+v, want %+v", i, e, want[i])
		}
	}
	if got := Data(nil).Entries(1); len(got) != 0 {
		t.Errorf("nil Data Entries() = %v, want empty", got)
	}
}

func TestBufferedEvent_JSON(t *testing.T) {
	t.Parallel()

	ev := BufferedEvent{
		Occurrence: Occurrence{AlertID: 1003, SiteID: 2, CreatedOn: 1700000000.123456},
		Metadata:   Data{"Username": String("admin")},
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var back BufferedEvent
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.Occurrence != ev.Occurrence {
		t.Errorf("occurrence = %+v, want %+v", back.Occurrence, ev.Occurrence)
	}
	if !back.Metadata["Username"].Equal(String("admin")) {
		t.Errorf("metadata = %v", back.Metadata)
	}
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	tm := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
	ts := Timestamp(tm)
	if got := TimeFromTimestamp(ts); !got.Equal(tm) {
		t.Errorf("TimeFromTimestamp(%f) = %v, want %v", ts, got, tm)
	}
	if ValidTimestamp(0) || ValidTimestamp(math.NaN()) || !ValidTimestamp(ts) {
		t.Error("ValidTimestamp misclassified")
	}
}
