package vm

import (
	"math"
	"testing"
)

func TestValueRoundTrips(t *testing.T) {
	ints := []int32{0, 1, -1, 42, math.MaxInt32, math.MinInt32}
	for _, n := range ints {
		v := IntVal(n)
		if !v.IsInt() || v.IsFloat() || v.IsObj() || v.IsBool() || v.IsNil() {
			t.Fatalf("IntVal(%d): wrong tags", n)
		}
		if v.AsInt() != n {
			t.Errorf("IntVal(%d) round-tripped to %d", n, v.AsInt())
		}
	}

	floats := []float64{0, 1.5, -2.25, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1), math.Inf(-1)}
	for _, f := range floats {
		v := FloatVal(f)
		if !v.IsFloat() || v.IsInt() || v.IsObj() {
			t.Fatalf("FloatVal(%g): wrong tags", f)
		}
		if v.AsFloat() != f {
			t.Errorf("FloatVal(%g) round-tripped to %g", f, v.AsFloat())
		}
	}

	// A hardware quiet NaN is still a float, not a tagged value.
	nan := FloatVal(math.NaN())
	if !nan.IsFloat() {
		t.Errorf("NaN must decode as float")
	}
	if !math.IsNaN(nan.AsFloat()) {
		t.Errorf("NaN payload lost")
	}

	if !NilVal().IsNil() || NilVal().Truthy() {
		t.Errorf("nil tags wrong")
	}
	if !BoolVal(true).IsBool() || !BoolVal(true).AsBool() {
		t.Errorf("true tags wrong")
	}
	if !BoolVal(false).IsBool() || BoolVal(false).AsBool() {
		t.Errorf("false tags wrong")
	}

	h := Handle(7)
	v := ObjVal(h)
	if !v.IsObj() || v.IsInt() || v.IsFloat() {
		t.Fatalf("ObjVal: wrong tags")
	}
	if v.AsHandle() != h {
		t.Errorf("handle round-tripped to %d", v.AsHandle())
	}
}

func TestValueEquality(t *testing.T) {
	if !IntVal(3).Equals(FloatVal(3.0)) {
		t.Errorf("3 == 3.0 must hold across representations")
	}
	if IntVal(3).Equals(FloatVal(3.5)) {
		t.Errorf("3 != 3.5")
	}
	if !NilVal().Equals(NilVal()) {
		t.Errorf("nil == nil")
	}
	if NilVal().Equals(BoolVal(false)) {
		t.Errorf("nil != false")
	}
	if !ObjVal(5).Equals(ObjVal(5)) || ObjVal(5).Equals(ObjVal(6)) {
		t.Errorf("object equality is handle identity")
	}
}

func TestTruthiness(t *testing.T) {
	falsey := []Value{NilVal(), BoolVal(false)}
	for _, v := range falsey {
		if v.Truthy() {
			t.Errorf("expected falsey")
		}
	}
	truthy := []Value{BoolVal(true), IntVal(0), FloatVal(0), ObjVal(1)}
	for _, v := range truthy {
		if !v.Truthy() {
			t.Errorf("zero and objects are truthy")
		}
	}
}
