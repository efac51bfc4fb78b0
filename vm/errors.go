package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/tinyc/pkg/bytecode"
)

// Runtime error kinds. A RuntimeError wraps exactly one of these.
var (
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrStackOverflow   = errors.New("stack overflow")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrUnresolvedLabel = errors.New("unresolved label")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrMissingArity    = errors.New("missing function arity")
	ErrBadAddress      = errors.New("bad stack address")
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrNegativeShift   = errors.New("negative shift count")
)

// RuntimeError reports a fatal error during execution.
type RuntimeError struct {
	IP   int             // index of the failing instruction
	Op   bytecode.Opcode // its opcode
	Line int             // source line, 0 when unknown
	Err  error           // one of the Err* kinds, possibly wrapped
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error at %04d (%s, line %d): %v", e.IP, e.Op, e.Line, e.Err)
	}
	return fmt.Sprintf("runtime error at %04d (%s): %v", e.IP, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// fault carries an error through a panic to the RunFrom boundary.
type fault struct {
	err error
}

func (vm *VM) fail(err error) {
	panic(fault{err})
}

func (vm *VM) failf(kind error, format string, args ...interface{}) {
	panic(fault{fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))})
}
