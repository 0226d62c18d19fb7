package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// DateLayout is the ISO form used for date values on the wire.
const DateLayout = "2006-01-02"

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindFloat
	KindDate
	KindBool
)

// Value is a typed cell: Text | Int | Float | Date | Bool | Null.
// The zero Value is Null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	t    time.Time
	b    bool
}

func Null() Value { return Value{} }
func Text(s string) Value { return Value{kind: KindText, s: s} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Date(t time.Time) Value { return Value{kind: KindDate, t: truncateDate(t)} }

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsText, AsInt, ... return the payload; callers check Kind first.
func (v Value) AsText() string { return v.s }
func (v Value) AsInt() int64 { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsBool() bool { return v.b }
func (v Value) AsDate() time.Time { return v.t }

// Any returns the Go value handed to the database driver as a bound parameter.
func (v Value) Any() any {
	switch v.kind {
	case KindText:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindDate:
		return v.t
	case KindBool:
		return v.b
	}
	return nil
}

// String renders the value for messages and CSV-like output.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindDate:
		return v.t.Format(DateLayout)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Equal compares by type-aware value: numbers as numbers, dates as dates.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNull || o.kind == KindNull {
		return v.kind == o.kind
	}
	if isNumeric(v.kind) && isNumeric(o.kind) {
		return v.number() == o.number()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.s == o.s
	case KindDate:
		return v.t.Equal(o.t)
	case KindBool:
		return v.b == o.b
	}
	return false
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }

func (v Value) number() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// MarshalJSON writes the natural JSON form; dates as YYYY-MM-DD.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindDate:
		return json.Marshal(v.t.Format(DateLayout))
	case KindNull:
		return []byte("null"), nil
	}
	return json.Marshal(v.Any())
}
