package vm

import (
	"math"
)

// Value is a live value in the reference heap, represented using NaN-boxing.
//
// All values are 64-bit IEEE 754 doubles. Non-float values are encoded in the
// NaN space using the quiet NaN prefix and tag bits to distinguish types.
//
// Encoding scheme:
//   - Float: native IEEE 754 double (if not one of our tagged NaNs)
//   - SmallInt: quiet NaN + tagInt + 48-bit signed payload
//   - Object: quiet NaN + tagObject + object handle
//   - Symbol: quiet NaN + tagSymbol + symbol handle
//   - String: quiet NaN + tagString + string handle
//   - Special: quiet NaN + tagSpecial + special value ID
//
// Objects, symbols and strings are handles into the owning Heap's registries,
// never raw pointers, so a Value is only meaningful together with its Heap.
type Value uint64

// NaN-boxing constants
const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0
	// 0x7FF8_0000_0000_0000
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space
	// 0x0007_0000_0000_0000
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits for handle/int/id
	// 0x0000_FFFF_FFFF_FFFF
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	// Tag values (shifted into position)
	tagObject  uint64 = 0x0001000000000000 // Heap object handle
	tagInt     uint64 = 0x0002000000000000 // 48-bit signed integer
	tagSpecial uint64 = 0x0003000000000000 // null, undefined, true, false, hole
	tagSymbol  uint64 = 0x0004000000000000 // Symbol handle
	tagString  uint64 = 0x0005000000000000 // Interned string handle

	// Sign bit for 48-bit integer sign extension
	intSignBit uint64 = 0x0000800000000000

	// Mask for sign extension
	intSignExtend uint64 = 0xFFFF000000000000
)

// Special value payloads
const (
	specialNull      uint64 = 0
	specialTrue      uint64 = 1
	specialFalse     uint64 = 2
	specialUndefined uint64 = 3
	specialHole      uint64 = 4
)

// Pre-defined special values
const (
	Null      Value = Value(nanBits | tagSpecial | specialNull)
	True      Value = Value(nanBits | tagSpecial | specialTrue)
	False     Value = Value(nanBits | tagSpecial | specialFalse)
	Undefined Value = Value(nanBits | tagSpecial | specialUndefined)

	// Hole marks a missing array element. It never appears as a property
	// value.
	Hole Value = Value(nanBits | tagSpecial | specialHole)
)

// SmallInt range (48-bit signed)
const (
	MaxSmallInt int64 = (1 << 47) - 1
	MinSmallInt int64 = -(1 << 47)
)

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsFloat returns true if v represents a float64 value.
// A value is a float if it's not one of our tagged NaN values.
// This includes regular numbers, infinities, and "real" NaN values.
func (v Value) IsFloat() bool {
	bits := uint64(v)

	// Exponent is not all 1s, so it's a regular float
	if (bits & 0x7FF0000000000000) != 0x7FF0000000000000 {
		return true
	}

	// Infinity has mantissa == 0 (ignoring sign bit)
	if bits&0x000FFFFFFFFFFFFF == 0 {
		return true
	}

	// Quiet NaN bit not set: a signaling NaN, treat as float
	if (bits & nanBits) != nanBits {
		return true
	}

	// A quiet NaN with no tag bits is a "real" NaN. Negative quiet NaNs are
	// never produced by the tagging scheme either.
	return bits&tagMask == 0 || bits&(1<<63) != 0
}

func (v Value) hasTag(tag uint64) bool {
	return (uint64(v) & (1<<63 | nanBits | tagMask)) == (nanBits | tag)
}

// IsSmallInt returns true if v represents a small integer.
func (v Value) IsSmallInt() bool { return v.hasTag(tagInt) }

// IsObject returns true if v is an object handle.
func (v Value) IsObject() bool { return v.hasTag(tagObject) }

// IsSymbol returns true if v is a symbol handle.
func (v Value) IsSymbol() bool { return v.hasTag(tagSymbol) }

// IsString returns true if v is a string handle.
func (v Value) IsString() bool { return v.hasTag(tagString) }

// IsSpecial returns true if v is null, undefined, true, false or the hole.
func (v Value) IsSpecial() bool { return v.hasTag(tagSpecial) }

func (v Value) IsBool() bool { return v == True || v == False }

// ---------------------------------------------------------------------------
// Float operations
// ---------------------------------------------------------------------------

// Float64 returns v as a float64.
// Panics if v is not a float.
func (v Value) Float64() float64 {
	if !v.IsFloat() {
		panic("Value.Float64: not a float")
	}
	return math.Float64frombits(uint64(v))
}

// FromFloat64 creates a Value from a float64. NaNs that would collide with
// the tag space are canonicalized.
func FromFloat64(f float64) Value {
	v := Value(math.Float64bits(f))
	if !v.IsFloat() {
		return Value(math.Float64bits(math.NaN()))
	}
	return v
}

// ---------------------------------------------------------------------------
// SmallInt operations
// ---------------------------------------------------------------------------

// SmallInt returns v as an int64.
// Panics if v is not a small integer.
func (v Value) SmallInt() int64 {
	if !v.IsSmallInt() {
		panic("Value.SmallInt: not a small integer")
	}
	payload := uint64(v) & payloadMask

	// Sign extend from 48 bits to 64 bits
	if (payload & intSignBit) != 0 {
		payload |= intSignExtend
	}
	return int64(payload)
}

// FromSmallInt creates a Value from an int64.
// Panics if n is outside the SmallInt range.
func FromSmallInt(n int64) Value {
	if n > MaxSmallInt || n < MinSmallInt {
		panic("FromSmallInt: value out of range")
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask))
}

// ---------------------------------------------------------------------------
// Handles
// ---------------------------------------------------------------------------

// Handle returns the registry handle of an object, symbol or string value.
func (v Value) Handle() uint32 { return uint32(uint64(v) & payloadMask) }

func fromObjectHandle(h uint32) Value { return Value(nanBits | tagObject | uint64(h)) }
func fromSymbolHandle(h uint32) Value { return Value(nanBits | tagSymbol | uint64(h)) }
func fromStringHandle(h uint32) Value { return Value(nanBits | tagString | uint64(h)) }

// ---------------------------------------------------------------------------
// Boolean operations
// ---------------------------------------------------------------------------

// Bool returns v as a bool.
// Panics if v is not true or false.
func (v Value) Bool() bool {
	switch v {
	case True:
		return true
	case False:
		return false
	default:
		panic("Value.Bool: not a boolean")
	}
}

// FromBool creates a Value from a bool.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}
