package vm

import "math"

// Handle is a stable index into the heap arena. Values reference heap
// objects by handle, never by Go pointer; the collector owns lifetime.
type Handle uint32

// InvalidHandle is never a live object; slot 0 of the arena is reserved.
const InvalidHandle Handle = 0

// Value is a 64-bit NaN-boxed word: either a legal IEEE double, or a
// quiet-NaN-tagged encoding of a 32-bit integer, a boolean, nil, or a
// heap-object handle. Any bit pattern with the NaN payload set is never
// a legal float; callers decode the NaN tag before the sub-tag.
type Value uint64

const (
	qnanBits = 0x7ffc000000000000
	signBit  = 0x8000000000000000
	intTag   = 0x0001000000000000

	nilBits   = qnanBits | 1
	falseBits = qnanBits | 2
	trueBits  = qnanBits | 3
)

// Constructors

func NilVal() Value {
	return Value(nilBits)
}

func BoolVal(b bool) Value {
	if b {
		return Value(trueBits)
	}
	return Value(falseBits)
}

func IntVal(v int32) Value {
	return Value(qnanBits | intTag | uint64(uint32(v)))
}

func FloatVal(f float64) Value {
	return Value(math.Float64bits(f))
}

func ObjVal(h Handle) Value {
	return Value(signBit | qnanBits | uint64(h))
}

// Accessors

func (v Value) AsInt() int32 {
	return int32(uint32(v))
}

func (v Value) AsFloat() float64 {
	return math.Float64frombits(uint64(v))
}

func (v Value) AsBool() bool {
	return uint64(v) == trueBits
}

func (v Value) AsHandle() Handle {
	return Handle(uint32(v))
}

// AsNumber widens either numeric representation to float64.
// Callers must check IsNumber first.
func (v Value) AsNumber() float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// Type checking helpers

func (v Value) IsFloat() bool { return uint64(v)&qnanBits != qnanBits }
func (v Value) IsInt() bool {
	return uint64(v)&(signBit|qnanBits|intTag) == (qnanBits | intTag)
}
func (v Value) IsBool() bool { return uint64(v)|1 == trueBits }
func (v Value) IsNil() bool  { return uint64(v) == nilBits }
func (v Value) IsObj() bool {
	return uint64(v)&(signBit|qnanBits) == (signBit | qnanBits)
}
func (v Value) IsNumber() bool { return v.IsInt() || v.IsFloat() }

// Equals is the per-tag equality relation: numeric equality for numbers
// (with int/float cross-comparison), bit identity for booleans and nil,
// handle identity for heap objects. Strings are interned, so handle
// identity is content equality for pooled strings.
func (v Value) Equals(other Value) bool {
	if v.IsNumber() && other.IsNumber() {
		if v.IsInt() && other.IsInt() {
			return v.AsInt() == other.AsInt()
		}
		return v.AsNumber() == other.AsNumber()
	}
	return v == other
}

// Truthy reports the conditional interpretation: nil and false are
// falsey, everything else is truthy.
func (v Value) Truthy() bool {
	if v.IsNil() {
		return false
	}
	if v.IsBool() {
		return v.AsBool()
	}
	return true
}
