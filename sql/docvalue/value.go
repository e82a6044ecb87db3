// Package docvalue models the tagged document value union consumed by
// schema inference and produced by the executor's type coercion step.
package docvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags the variant a Value holds. Kept as a small int enum rather than
// a class hierarchy so dispatch is a single switch, not virtual calls.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindDecimal128
	KindString
	KindBinary
	KindObjectID
	KindDateTime
	KindTimestamp
	KindMinKey
	KindMaxKey
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindDouble:
		return "Double"
	case KindDecimal128:
		return "Decimal128"
	case KindString:
		return "String"
	case KindBinary:
		return "Binary"
	case KindObjectID:
		return "ObjectId"
	case KindDateTime:
		return "DateTime"
	case KindTimestamp:
		return "Timestamp"
	case KindMinKey:
		return "MinKey"
	case KindMaxKey:
		return "MaxKey"
	case KindArray:
		return "Array"
	case KindObject:
		return "Object"
	default:
		return "Unknown"
	}
}

// Field is one (name, value) pair of an Object, field order preserved for
// display purposes only — semantics never depend on it.
type Field struct {
	Name  string
	Value Value
}

// Value is the tagged document value. Exactly one of the typed fields below
// is meaningful for a given Kind.
type Value struct {
	kind Kind

	boolVal   bool
	intVal    int64
	doubleVal float64
	decimal   string // canonical decimal text, arbitrary precision preserved
	str       string
	binary    []byte
	objectID  string // 24-char hex
	dateTime  time.Time
	timestamp Timestamp
	array     []Value
	object    []Field
}

// Timestamp is a MongoDB-style (seconds, ordinal) BSON timestamp.
type Timestamp struct {
	Seconds uint32
	Ordinal uint32
}

func Null() Value                  { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, boolVal: b} }
func Int32(i int32) Value          { return Value{kind: KindInt32, intVal: int64(i)} }
func Int64(i int64) Value          { return Value{kind: KindInt64, intVal: i} }
func Double(f float64) Value       { return Value{kind: KindDouble, doubleVal: f} }
func Decimal128(s string) Value    { return Value{kind: KindDecimal128, decimal: s} }
func String(s string) Value        { return Value{kind: KindString, str: s} }
func Binary(b []byte) Value        { return Value{kind: KindBinary, binary: b} }
func ObjectID(hex string) Value    { return Value{kind: KindObjectID, objectID: hex} }
func DateTime(t time.Time) Value   { return Value{kind: KindDateTime, dateTime: t.UTC()} }
func Ts(ts Timestamp) Value        { return Value{kind: KindTimestamp, timestamp: ts} }
func MinKey() Value                { return Value{kind: KindMinKey} }
func MaxKey() Value                { return Value{kind: KindMaxKey} }
func Array(vs ...Value) Value      { return Value{kind: KindArray, array: vs} }
func Object(fields ...Field) Value { return Value{kind: KindObject, object: fields} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() bool          { return v.boolVal }
func (v Value) AsInt() int64          { return v.intVal }
func (v Value) AsDouble() float64     { return v.doubleVal }
func (v Value) AsDecimalText() string { return v.decimal }
func (v Value) AsString() string      { return v.str }
func (v Value) AsBinary() []byte      { return v.binary }
func (v Value) AsObjectIDHex() string { return v.objectID }
func (v Value) AsDateTime() time.Time { return v.dateTime }
func (v Value) AsTimestamp() Timestamp {
	return v.timestamp
}
func (v Value) AsArray() []Value  { return v.array }
func (v Value) AsObject() []Field { return v.object }

// IsNullish reports whether this value collapses to SQL NULL: a true
// document Null. Missing fields are represented by the absence of a Field,
// not by this Value, so callers distinguish "missing" from "null" at the
// Object/walk level, not here.
func (v Value) IsNullish() bool { return v.kind == KindNull }

// Field looks up a field by name in an Object value. Returns (zero, false)
// if the receiver is not an Object or the field is absent — the "missing"
// case the schema inference and executor both must distinguish from null.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, f := range v.object {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// CanonicalJSON renders the value as canonical extended-JSON, field order
// preserved from source, used by the executor for Object/Array columns that
// the type lattice resolved to VARCHAR (§4.1) and for date/timestamp values
// rendered into VARCHAR columns.
func (v Value) CanonicalJSON() string {
	var buf bytes.Buffer
	v.writeJSON(&buf)
	return buf.String()
}

func (v Value) writeJSON(buf *bytes.Buffer) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.boolVal {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt32, KindInt64:
		fmt.Fprintf(buf, "%d", v.intVal)
	case KindDouble:
		fmt.Fprintf(buf, "%v", v.doubleVal)
	case KindDecimal128:
		buf.WriteString(v.decimal)
	case KindString:
		b, _ := json.Marshal(v.str)
		buf.Write(b)
	case KindBinary:
		b, _ := json.Marshal(v.binary)
		buf.Write(b)
	case KindObjectID:
		fmt.Fprintf(buf, `{"$oid": %q}`, v.objectID)
	case KindDateTime:
		fmt.Fprintf(buf, `{"$date": %q}`, v.dateTime.Format(time.RFC3339Nano))
	case KindTimestamp:
		fmt.Fprintf(buf, `{"$timestamp": {"t": %d, "i": %d}}`, v.timestamp.Seconds, v.timestamp.Ordinal)
	case KindMinKey:
		buf.WriteString(`"MinKey"`)
	case KindMaxKey:
		buf.WriteString(`"MaxKey"`)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.array {
			if i > 0 {
				buf.WriteString(", ")
			}
			e.writeJSON(buf)
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.object {
			if i > 0 {
				buf.WriteString(", ")
			}
			nb, _ := json.Marshal(f.Name)
			buf.Write(nb)
			buf.WriteString(": ")
			f.Value.writeJSON(buf)
		}
		buf.WriteByte('}')
	}
}
