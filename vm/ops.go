package vm

import (
	"fmt"

	"github.com/chazu/tinyc/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Operator semantics
// ---------------------------------------------------------------------------

// Arith applies ADD, SUB, MUL, DIV or MOD. Integer arithmetic wraps; a
// Float operand promotes the other side. MOD is Integer only.
func Arith(op bytecode.Opcode, a, b Value) (Value, error) {
	if a.IsInt() && b.IsInt() {
		x, y := a.i, b.i
		switch op {
		case bytecode.OpAdd:
			return Int(x + y), nil
		case bytecode.OpSub:
			return Int(x - y), nil
		case bytecode.OpMul:
			return Int(x * y), nil
		case bytecode.OpDiv:
			if y == 0 {
				return Value{}, ErrDivisionByZero
			}
			return Int(x / y), nil
		case bytecode.OpMod:
			if y == 0 {
				return Value{}, ErrDivisionByZero
			}
			return Int(x % y), nil
		}
		return Value{}, fmt.Errorf("%w: %s is not arithmetic", ErrUnknownOpcode, op)
	}

	x, y := a.Float64(), b.Float64()
	switch op {
	case bytecode.OpAdd:
		return Float(x + y), nil
	case bytecode.OpSub:
		return Float(x - y), nil
	case bytecode.OpMul:
		return Float(x * y), nil
	case bytecode.OpDiv:
		if y == 0 {
			return Value{}, ErrDivisionByZero
		}
		return Float(x / y), nil
	case bytecode.OpMod:
		return Value{}, fmt.Errorf("%w: MOD on %s and %s", ErrTypeMismatch, a.Kind(), b.Kind())
	}
	return Value{}, fmt.Errorf("%w: %s is not arithmetic", ErrUnknownOpcode, op)
}

// Compare applies a comparison opcode and always yields Integer 0 or 1.
func Compare(op bytecode.Opcode, a, b Value) (Value, error) {
	var c int
	if a.IsInt() && b.IsInt() {
		c = cmp(a.i, b.i)
	} else {
		x, y := a.Float64(), b.Float64()
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		case x == y:
			c = 0
		default:
			// NaN is unordered: only NE holds.
			return Bool(op == bytecode.OpNe), nil
		}
	}

	switch op {
	case bytecode.OpEq:
		return Bool(c == 0), nil
	case bytecode.OpNe:
		return Bool(c != 0), nil
	case bytecode.OpLt:
		return Bool(c < 0), nil
	case bytecode.OpGt:
		return Bool(c > 0), nil
	case bytecode.OpLe:
		return Bool(c <= 0), nil
	case bytecode.OpGe:
		return Bool(c >= 0), nil
	}
	return Value{}, fmt.Errorf("%w: %s is not a comparison", ErrUnknownOpcode, op)
}

func cmp(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// Bitwise applies AND, OR, XOR, SHL or SHR to two Integers. SHR is
// arithmetic.
func Bitwise(op bytecode.Opcode, a, b Value) (Value, error) {
	if !a.IsInt() || !b.IsInt() {
		return Value{}, fmt.Errorf("%w: %s on %s and %s", ErrTypeMismatch, op, a.Kind(), b.Kind())
	}
	x, y := a.i, b.i
	switch op {
	case bytecode.OpAnd:
		return Int(x & y), nil
	case bytecode.OpOr:
		return Int(x | y), nil
	case bytecode.OpXor:
		return Int(x ^ y), nil
	case bytecode.OpShl, bytecode.OpShr:
		if y < 0 {
			return Value{}, ErrNegativeShift
		}
		if op == bytecode.OpShl {
			return Int(x << uint64(y)), nil
		}
		return Int(x >> uint64(y)), nil
	}
	return Value{}, fmt.Errorf("%w: %s is not bitwise", ErrUnknownOpcode, op)
}

// Neg negates a value. Integer negation wraps.
func Neg(a Value) Value {
	if a.IsFloat() {
		return Float(-a.f)
	}
	return Int(-a.i)
}

// Not is logical negation: Integer 1 for a zero operand, 0 otherwise.
func Not(a Value) Value {
	return Bool(a.IsZero())
}
