package ttd

import (
	"fmt"
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Identity tokens
// ---------------------------------------------------------------------------

// ObjectID identifies one heap object, function body or shared cell within a
// snapshot. Zero is never a valid id.
type ObjectID uint64

// InvalidID marks an absent reference.
const InvalidID ObjectID = 0

// cellBase starts the id range reserved for shared cells (promise
// already-resolved flags, Promise.all counters). Host addresses stay below it.
const cellBase ObjectID = 1 << 62

// IsCell reports whether id names a shared cell rather than a heap object.
func (id ObjectID) IsCell() bool { return id >= cellBase }

func (id ObjectID) String() string {
	if id == InvalidID {
		return "#invalid"
	}
	if id.IsCell() {
		return "#cell" + strconv.FormatUint(uint64(id-cellBase), 10)
	}
	return "#" + strconv.FormatUint(uint64(id), 16)
}

// TypeID identifies a type descriptor record.
type TypeID uint64

// WellKnownToken is the path-based identity of a runtime singleton, such as
// "Object.prototype" or "global". The empty token means none.
type WellKnownToken string

// ---------------------------------------------------------------------------
// Tagged values
// ---------------------------------------------------------------------------

// ValueTag discriminates Value.
type ValueTag uint8

const (
	TagAbsent ValueTag = iota
	TagNull
	TagUndefined
	TagBool
	TagInt
	TagFloat
	TagString
	TagSymbol
	TagObject
	tagLimit
)

var tagNames = [tagLimit]string{"absent", "null", "undefined", "bool", "int", "float", "string", "symbol", "object"}

func (t ValueTag) String() string {
	if t < tagLimit {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// Value is a slot in the serialized form: nothing, an inline primitive, or an
// ObjectID standing in for a heap reference.
//
// Bits holds the payload for bools (0/1), ints (int32 sign-extended), floats
// (IEEE bits), symbols (symbol id) and object refs (ObjectID). Str holds
// string contents and symbol descriptions.
type Value struct {
	Tag  ValueTag
	Bits uint64
	Str  string
}

func Absent() Value { return Value{} }
func Null() Value { return Value{Tag: TagNull} }
func Undefined() Value { return Value{Tag: TagUndefined} }

func Bool(b bool) Value {
	if b {
		return Value{Tag: TagBool, Bits: 1}
	}
	return Value{Tag: TagBool}
}

func Int(i int32) Value { return Value{Tag: TagInt, Bits: uint64(int64(i))} }
func Float(f float64) Value { return Value{Tag: TagFloat, Bits: math.Float64bits(f)} }
func String(s string) Value { return Value{Tag: TagString, Str: s} }
func Ref(id ObjectID) Value { return Value{Tag: TagObject, Bits: uint64(id)} }

// Symbol makes a symbol value. Symbols are primitives with identity, so both
// the host's symbol id and the description are kept.
func Symbol(id uint64, description string) Value {
	return Value{Tag: TagSymbol, Bits: id, Str: description}
}

// RefOrNull is Ref(id), or Null when id is invalid.
func RefOrNull(id ObjectID) Value {
	if id == InvalidID {
		return Null()
	}
	return Ref(id)
}

func (v Value) IsAbsent() bool { return v.Tag == TagAbsent }
func (v Value) IsRef() bool { return v.Tag == TagObject }

// ID returns the referenced object, or InvalidID when v is not a reference.
func (v Value) ID() ObjectID {
	if v.Tag != TagObject {
		return InvalidID
	}
	return ObjectID(v.Bits)
}

func (v Value) AsBool() bool { return v.Bits != 0 }
func (v Value) AsInt() int32 { return int32(int64(v.Bits)) }
func (v Value) AsFloat() float64 { return math.Float64frombits(v.Bits) }

// Equal compares tags and payloads. Floats compare by bits, so NaN equals NaN
// and +0 differs from -0.
func (v Value) Equal(o Value) bool {
	return v.Tag == o.Tag && v.Bits == o.Bits && v.Str == o.Str
}

func (v Value) String() string {
	switch v.Tag {
	case TagBool:
		return strconv.FormatBool(v.AsBool())
	case TagInt:
		return strconv.FormatInt(int64(v.AsInt()), 10)
	case TagFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case TagString:
		return strconv.Quote(v.Str)
	case TagSymbol:
		return "Symbol(" + v.Str + ")"
	case TagObject:
		return v.ID().String()
	}
	return v.Tag.String()
}
