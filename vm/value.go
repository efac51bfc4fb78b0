package vm

import (
	"math"
	"strconv"
)

// Kind is the runtime tag of a Value.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
)

func (k Kind) String() string {
	if k == KindFloat {
		return "float"
	}
	return "int"
}

// Value is one stack slot: a tagged union of a 64-bit signed integer and a
// 64-bit float. The zero Value is Integer 0.
type Value struct {
	kind Kind
	i    int64
	f    float64
}

// Int returns an Integer value.
func Int(n int64) Value { return Value{kind: KindInt, i: n} }

// Float returns a Float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns Integer 1 for true and Integer 0 for false.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Kind returns the runtime tag.
func (v Value) Kind() Kind { return v.kind }

// IsInt returns true if v is an Integer.
func (v Value) IsInt() bool { return v.kind == KindInt }

// IsFloat returns true if v is a Float.
func (v Value) IsFloat() bool { return v.kind == KindFloat }

// Int64 returns the integer payload. Floats are truncated toward zero;
// NaN converts to 0 and infinities saturate.
func (v Value) Int64() int64 {
	if v.kind == KindInt {
		return v.i
	}
	switch {
	case math.IsNaN(v.f):
		return 0
	case v.f >= math.MaxInt64:
		return math.MaxInt64
	case v.f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v.f)
}

// Float64 returns the value promoted to float.
func (v Value) Float64() float64 {
	if v.kind == KindFloat {
		return v.f
	}
	return float64(v.i)
}

// IsZero reports whether v is Integer 0 or Float 0.
func (v Value) IsZero() bool {
	if v.kind == KindFloat {
		return v.f == 0
	}
	return v.i == 0
}

// String formats integers in decimal and floats in their shortest form.
func (v Value) String() string {
	if v.kind == KindFloat {
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	}
	return strconv.FormatInt(v.i, 10)
}
