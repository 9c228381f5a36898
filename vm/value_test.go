package vm

import (
	"math"
	"testing"
)

func TestFloatValues(t *testing.T) {
	tests := []float64{0, -1.5, math.Pi, math.Inf(1), math.Inf(-1), math.MaxFloat64, math.SmallestNonzeroFloat64}
	for _, f := range tests {
		v := FromFloat64(f)
		if !v.IsFloat() {
			t.Errorf("FromFloat64(%v).IsFloat() = false", f)
			continue
		}
		if got := v.Float64(); got != f {
			t.Errorf("FromFloat64(%v).Float64() = %v", f, got)
		}
		if v.IsSmallInt() || v.IsObject() || v.IsSpecial() {
			t.Errorf("FromFloat64(%v) reports a tagged type", f)
		}
	}
}

func TestNegativeZeroKeepsSign(t *testing.T) {
	v := FromFloat64(math.Copysign(0, -1))
	if !math.Signbit(v.Float64()) {
		t.Error("negative zero lost its sign")
	}
}

func TestNaNValues(t *testing.T) {
	if v := FromFloat64(math.NaN()); !v.IsFloat() || !math.IsNaN(v.Float64()) {
		t.Error("math.NaN() should box as a float NaN")
	}

	// A NaN whose bits collide with a tagged value must not turn into one.
	collision := math.Float64frombits(uint64(fromObjectHandle(7)))
	v := FromFloat64(collision)
	if v.IsObject() {
		t.Fatal("colliding NaN boxed as an object handle")
	}
	if !math.IsNaN(v.Float64()) {
		t.Errorf("colliding NaN = %v, want NaN", v.Float64())
	}

	neg := Value(math.Float64bits(math.Copysign(math.NaN(), -1)))
	if !neg.IsFloat() {
		t.Error("negative NaN should be a float")
	}
}

func TestSmallInt(t *testing.T) {
	tests := []int64{0, 1, -1, 42, math.MaxInt32, math.MinInt32, MaxSmallInt, MinSmallInt}
	for _, n := range tests {
		v := FromSmallInt(n)
		if !v.IsSmallInt() {
			t.Errorf("FromSmallInt(%d).IsSmallInt() = false", n)
			continue
		}
		if got := v.SmallInt(); got != n {
			t.Errorf("FromSmallInt(%d).SmallInt() = %d", n, got)
		}
		if v.IsFloat() {
			t.Errorf("FromSmallInt(%d) reports float", n)
		}
	}
}

func TestSmallIntOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("FromSmallInt(MaxSmallInt+1) did not panic")
		}
	}()
	FromSmallInt(MaxSmallInt + 1)
}

func TestSpecials(t *testing.T) {
	for _, v := range []Value{Null, True, False, Undefined, Hole} {
		if !v.IsSpecial() {
			t.Errorf("%#x should be special", uint64(v))
		}
		if v.IsFloat() || v.IsObject() || v.IsSmallInt() {
			t.Errorf("%#x reports a non-special type", uint64(v))
		}
	}
	if !True.Bool() || False.Bool() {
		t.Error("Bool() wrong for True/False")
	}
	if FromBool(true) != True || FromBool(false) != False {
		t.Error("FromBool wrong")
	}
	if Null.IsBool() || !True.IsBool() {
		t.Error("IsBool wrong")
	}
}

func TestHandles(t *testing.T) {
	tests := []struct {
		v    Value
		want func(Value) bool
	}{
		{fromObjectHandle(12), Value.IsObject},
		{fromSymbolHandle(12), Value.IsSymbol},
		{fromStringHandle(12), Value.IsString},
	}
	for _, tt := range tests {
		if !tt.want(tt.v) {
			t.Errorf("%#x has the wrong tag", uint64(tt.v))
		}
		if got := tt.v.Handle(); got != 12 {
			t.Errorf("Handle() = %d, want 12", got)
		}
	}
	if fromObjectHandle(1) == fromSymbolHandle(1) {
		t.Error("object and symbol handles collide")
	}
}
