// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// Errors
var (
	// ErrUnsupportedValue is returned when a Go value has no metadata representation.
	ErrUnsupportedValue = errors.New("unsupported metadata value")

	// ErrInvalidEncoding is returned when a stored value envelope cannot be decoded.
	ErrInvalidEncoding = errors.New("invalid metadata value encoding")
)

// Kind identifies which variant a Value holds.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

var kindNames = [...]string{
	KindNull:   "null",
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindList:   "list",
	KindMap:    "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func parseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Value is a metadata value: string, int, float, bool, ordered list or
// string-keyed map. The zero Value is null.
//
// Values are encoded as a self-describing envelope {"t":"<kind>","v":<payload>}
// so ints stay ints and floats stay floats across a round trip.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	list []Value
	m    map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns an ordered list value.
func List(items ...Value) Value {
	l := make([]Value, len(items))
	copy(l, items)
	return Value{kind: KindList, list: l}
}

// Map returns a map value. The map is copied.
func Map(m map[string]Value) Value {
	c := make(map[string]Value, len(m))
	for k, v := range m {
		c[k] = v
	}
	return Value{kind: KindMap, m: c}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the numeric payload as float64. Ints convert.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns a copy of the list payload.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	l := make([]Value, len(v.list))
	copy(l, v.list)
	return l, true
}

// AsMap returns a copy of the map payload.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	m := make(map[string]Value, len(v.m))
	for k, item := range v.m {
		m[k] = item
	}
	return m, true
}

// Any converts v to plain Go values: nil, string, int64, float64, bool,
// []any or map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Any()
		}
		return out
	default:
		return nil
	}
}

// String renders v for logs and plan descriptions. Strings are returned as is.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNull:
		return ""
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		b, err := json.Marshal(v.Any())
		if err != nil {
			return fmt.Sprintf("%v", v.Any())
		}
		return string(b)
	}
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts a Go value into a Value. Supported inputs are nil, Value,
// strings, bools, every integer and float kind, json.Number, slices and
// string-keyed maps of those. Anything else yields ErrUnsupportedValue.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return fromUint(t)
	case float32:
		return fromFloat(float64(t))
	case float64:
		return fromFloat(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %q", ErrUnsupportedValue, t.String())
		}
		return fromFloat(f)
	case []Value:
		return List(t...), nil
	case map[string]Value:
		return Map(t), nil
	case []string:
		l := make([]Value, len(t))
		for i, s := range t {
			l[i] = String(s)
		}
		return Value{kind: KindList, list: l}, nil
	case []any:
		l := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			l[i] = v
		}
		return Value{kind: KindList, list: l}, nil
	case map[string]string:
		m := make(map[string]Value, len(t))
		for k, s := range t {
			m[k] = String(s)
		}
		return Value{kind: KindMap, m: m}, nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = v
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: uint64 %d overflows int64", ErrUnsupportedValue, u)
	}
	return Int(int64(u)), nil
}

func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: non-finite float", ErrUnsupportedValue)
	}
	return Float(f), nil
}

type envelope struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// MarshalJSON encodes v as a typed envelope.
func (v Value) MarshalJSON() ([]byte, error) {
	var (
		payload any
		err     error
		raw     []byte
	)
	switch v.kind {
	case KindNull:
		return []byte(`{"t":"null"}`), nil
	case KindString:
		payload = v.s
	case KindInt:
		payload = v.i
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("%w: non-finite float", ErrUnsupportedValue)
		}
		payload = v.f
	case KindBool:
		payload = v.b
	case KindList:
		list := v.list
		if list == nil {
			list = []Value{}
		}
		payload = list
	case KindMap:
		m := v.m
		if m == nil {
			m = map[string]Value{}
		}
		payload = m
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedValue, v.kind)
	}

	raw, err = json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{T: v.kind.String(), V: raw})
}

// UnmarshalJSON decodes a typed envelope.
func (v *Value) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	kind, ok := parseKind(env.T)
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEncoding, env.T)
	}
	if kind != KindNull && len(bytes.TrimSpace(env.V)) == 0 {
		return fmt.Errorf("%w: missing payload for %s", ErrInvalidEncoding, kind)
	}

	out := Value{kind: kind}
	var err error
	switch kind {
	case KindNull:
	case KindString:
		err = json.Unmarshal(env.V, &out.s)
	case KindInt:
		err = json.Unmarshal(env.V, &out.i)
	case KindFloat:
		err = json.Unmarshal(env.V, &out.f)
	case KindBool:
		err = json.Unmarshal(env.V, &out.b)
	case KindList:
		out.list = []Value{}
		err = json.Unmarshal(env.V, &out.list)
	case KindMap:
		out.m = map[string]Value{}
		err = json.Unmarshal(env.V, &out.m)
	}
	if err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidEncoding, kind, err)
	}
	*v = out
	return nil
}

// Encode returns the stored text form of v.
func (v Value) Encode() (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseValue decodes the stored text form produced by Encode.
func ParseValue(s string) (Value, error) {
	var v Value
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		if errors.Is(err, ErrInvalidEncoding) {
			return Value{}, err
		}
		// Not JSON at all: the decoder fails before UnmarshalJSON runs.
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return v, nil
}

// Data is the metadata attached to one occurrence, keyed by name.
type Data map[string]Value

// DataFromMap converts loosely typed input into Data.
func DataFromMap(in map[string]any) (Data, error) {
	out := make(Data, len(in))
	for k, x := range in {
		v, err := FromAny(x)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Names returns the metadata names in ascending order.
func (d Data) Names() []string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Entries returns d as rows for occurrenceID, in name order.
func (d Data) Entries(occurrenceID int64) []MetaEntry {
	names := d.Names()
	out := make([]MetaEntry, 0, len(names))
	for _, name := range names {
		out = append(out, MetaEntry{OccurrenceID: occurrenceID, Name: name, Value: d[name]})
	}
	return out
}

// Clone returns a shallow copy of d.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Plain converts d back into loosely typed values.
func (d Data) Plain() map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v.Any()
	}
	return out
}
