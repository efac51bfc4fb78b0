package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/chazu/tinyc/pkg/bytecode"
	"github.com/tliron/commonlog"
)

// VM executes a flat instruction sequence against one typed value stack.
//
// Frame layout, from the frame pointer upward: arguments at offsets
// 0..arity-1, then body locals. The two cells directly below the frame
// pointer hold the caller's frame pointer and, on top of it, the return
// index.
type VM struct {
	stack  []Value
	fp     int
	depth  int // active call frames
	ip     int
	arity  map[int]int // entry index -> parameter count
	labels map[int64]int
	lines  []int
	out    io.Writer
	log    commonlog.Logger

	// Trace logs every dispatched instruction at debug level.
	Trace bool

	// MaxStack bounds the number of stack slots. 0 means unlimited.
	MaxStack int
}

// NewVM creates a VM for a program with the given entry -> arity table.
func NewVM(arity map[int]int) *VM {
	if arity == nil {
		arity = make(map[int]int)
	}
	return &VM{
		stack: make([]Value, 0, 256),
		arity: arity,
		out:   os.Stdout,
		log:   commonlog.GetLogger("tinyc.vm"),
	}
}

// SetOutput redirects PRINT and PRINTS.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetLogger sets the logger used for tracing.
func (vm *VM) SetLogger(log commonlog.Logger) {
	vm.log = log
}

// SetLines attaches a per-instruction source line table used in runtime
// error reports.
func (vm *VM) SetLines(lines []int) {
	vm.lines = lines
}

// Push places a value on the stack before a run, e.g. a placeholder for a
// top-level local.
func (vm *VM) Push(v Value) {
	vm.stack = append(vm.stack, v)
}

// Stack returns a copy of the current stack, bottom first.
func (vm *VM) Stack() []Value {
	return append([]Value(nil), vm.stack...)
}

// Reset clears the stack and frame state.
func (vm *VM) Reset() {
	vm.stack = vm.stack[:0]
	vm.fp = 0
	vm.depth = 0
	vm.ip = 0
}

// Run executes code from the first instruction.
func (vm *VM) Run(code []bytecode.Instruction) (Value, bool, error) {
	return vm.RunFrom(code, 0)
}

// Exec runs a compiled program the standard way: from main when the
// program has one, after pushing placeholders for main's parameters, or
// from the first instruction with one zero slot per top-level local.
func (vm *VM) Exec(prog *bytecode.Program) (Value, bool, error) {
	vm.lines = prog.Lines
	slots := len(prog.Locals)
	if prog.HasMain() {
		slots = prog.Arity["main"]
	}
	for i := 0; i < slots; i++ {
		vm.Push(Int(0))
	}
	return vm.RunFrom(prog.Code, prog.Start())
}

// RunFrom executes code starting at index start until the instruction
// pointer runs past the end. The top of the stack, coerced to Integer, is
// the result; ok is false when the stack is empty. Errors are
// *RuntimeError.
func (vm *VM) RunFrom(code []bytecode.Instruction, start int) (result Value, ok bool, err error) {
	vm.ip = start
	defer func() {
		if r := recover(); r != nil {
			f, isFault := r.(fault)
			if !isFault {
				panic(r)
			}
			re := &RuntimeError{IP: vm.ip, Err: f.err}
			if vm.ip >= 0 && vm.ip < len(code) {
				re.Op = code[vm.ip].Op
			}
			if vm.ip >= 0 && vm.ip < len(vm.lines) {
				re.Line = vm.lines[vm.ip]
			}
			result, ok, err = Value{}, false, re
		}
	}()

	if start < 0 || start > len(code) {
		vm.failf(ErrBadAddress, "start index %d outside code of length %d", start, len(code))
	}
	vm.resolveLabels(code)
	vm.execute(code)

	if len(vm.stack) == 0 {
		return Value{}, false, nil
	}
	top := vm.pop()
	return Int(top.Int64()), true, nil
}

// resolveLabels maps every label id to its instruction index.
func (vm *VM) resolveLabels(code []bytecode.Instruction) {
	vm.labels = make(map[int64]int)
	for i, in := range code {
		if in.Op != bytecode.OpLabel {
			continue
		}
		if prev, dup := vm.labels[in.Arg]; dup {
			vm.ip = i
			vm.failf(ErrDuplicateLabel, "L%d also at %04d", in.Arg, prev)
		}
		vm.labels[in.Arg] = i
	}
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) {
	if vm.MaxStack > 0 && len(vm.stack) >= vm.MaxStack {
		vm.failf(ErrStackOverflow, "limit of %d slots", vm.MaxStack)
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		vm.fail(ErrStackUnderflow)
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) pop2() (Value, Value) {
	b := vm.pop()
	a := vm.pop()
	return a, b
}

// slot validates an absolute stack address.
func (vm *VM) slot(addr int64) int {
	if addr < 0 || addr >= int64(len(vm.stack)) {
		vm.failf(ErrBadAddress, "address %d, stack height %d", addr, len(vm.stack))
	}
	return int(addr)
}

// address pops a stack address pushed by ADDR.
func (vm *VM) address() int {
	a := vm.pop()
	if !a.IsInt() {
		vm.failf(ErrTypeMismatch, "address is a %s", a.Kind())
	}
	return vm.slot(a.i)
}

func (vm *VM) jump(label int64) {
	target, ok := vm.labels[label]
	if !ok {
		vm.failf(ErrUnresolvedLabel, "L%d", label)
	}
	vm.ip = target
}

func (vm *VM) check(v Value, err error) Value {
	if err != nil {
		vm.fail(err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Main interpreter loop
// ---------------------------------------------------------------------------

func (vm *VM) execute(code []bytecode.Instruction) {
	for vm.ip < len(code) {
		in := code[vm.ip]
		if vm.Trace {
			vm.log.Debugf("%04d  %-24s fp=%d depth=%d stack=%d", vm.ip, in, vm.fp, vm.depth, len(vm.stack))
		}

		switch in.Op {
		// ================================================================
		// Immediates
		// ================================================================
		case bytecode.OpImm:
			vm.push(Int(in.Arg))
		case bytecode.OpImmF:
			vm.push(Float(in.F))

		// ================================================================
		// Arithmetic, comparison, bitwise
		// ================================================================
		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			a, b := vm.pop2()
			vm.push(vm.check(Arith(in.Op, a, b)))
		case bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe:
			a, b := vm.pop2()
			vm.push(vm.check(Compare(in.Op, a, b)))
		case bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor, bytecode.OpShl, bytecode.OpShr:
			a, b := vm.pop2()
			vm.push(vm.check(Bitwise(in.Op, a, b)))

		// ================================================================
		// Unary
		// ================================================================
		case bytecode.OpNeg:
			vm.push(Neg(vm.pop()))
		case bytecode.OpNot:
			vm.push(Not(vm.pop()))
		case bytecode.OpDeref:
			vm.push(vm.stack[vm.address()])
		case bytecode.OpAddr:
			vm.push(Int(int64(vm.fp) + in.Arg))
		case bytecode.OpCast:
			// Casts carry no runtime conversion.

		// ================================================================
		// Control flow
		// ================================================================
		case bytecode.OpJmp:
			vm.jump(in.Arg)
			continue
		case bytecode.OpJz:
			if vm.pop().IsZero() {
				vm.jump(in.Arg)
				continue
			}
		case bytecode.OpLabel:

		// ================================================================
		// Locals
		// ================================================================
		case bytecode.OpLoad:
			vm.push(vm.stack[vm.slot(int64(vm.fp)+in.Arg)])
		case bytecode.OpStore:
			v := vm.pop()
			vm.stack[vm.slot(int64(vm.fp)+in.Arg)] = v
		case bytecode.OpStoreI:
			v := vm.pop()
			vm.stack[vm.address()] = v

		// ================================================================
		// Calls
		// ================================================================
		case bytecode.OpCall:
			vm.call(int(in.Arg), len(code))
			continue
		case bytecode.OpEnter:
			locals := in.Arg - int64(vm.arity[vm.ip])
			for i := int64(0); i < locals; i++ {
				vm.push(Int(0))
			}
		case bytecode.OpLeave:
			if vm.leave() {
				vm.ip = len(code)
			}
			continue

		// ================================================================
		// Output
		// ================================================================
		case bytecode.OpPrint:
			if _, err := fmt.Fprintln(vm.out, vm.pop()); err != nil {
				vm.fail(err)
			}
		case bytecode.OpPrintS:
			if _, err := io.WriteString(vm.out, in.S); err != nil {
				vm.fail(err)
			}

		default:
			vm.failf(ErrUnknownOpcode, "0x%02X", byte(in.Op))
		}
		vm.ip++
	}
}

// call pops the arguments, pushes the caller's frame pointer and the return
// index, moves the frame pointer to the stack top and re-pushes the
// arguments so the first one sits at offset 0.
func (vm *VM) call(entry, codeLen int) {
	n, ok := vm.arity[entry]
	if !ok {
		vm.failf(ErrMissingArity, "entry %04d", entry)
	}
	if entry < 0 || entry >= codeLen {
		vm.failf(ErrBadAddress, "call target %d outside code", entry)
	}
	if len(vm.stack) < n {
		vm.failf(ErrStackUnderflow, "call needs %d arguments, stack has %d", n, len(vm.stack))
	}

	// Arguments were evaluated last to first, so the first is on top.
	args := make([]Value, n)
	for i := 0; i < n; i++ {
		args[i] = vm.pop()
	}

	vm.push(Int(int64(vm.fp)))
	vm.push(Int(int64(vm.ip + 1)))
	vm.fp = len(vm.stack)
	vm.depth++
	for _, a := range args {
		vm.push(a)
	}
	vm.ip = entry
}

// leave returns from the current frame. The return value is the top of the
// stack, or Integer 0 when nothing sits above the frame pointer. With no
// active frame the value is left as the program result and leave reports
// true.
func (vm *VM) leave() (halt bool) {
	ret := Int(0)
	if len(vm.stack) > vm.fp {
		ret = vm.pop()
	}
	if len(vm.stack) < vm.fp {
		vm.failf(ErrStackUnderflow, "frame at %d, stack height %d", vm.fp, len(vm.stack))
	}
	vm.stack = vm.stack[:vm.fp]

	if vm.depth == 0 {
		vm.push(ret)
		return true
	}

	retIP := vm.pop()
	savedFP := vm.pop()
	vm.fp = int(savedFP.Int64())
	vm.depth--
	vm.push(ret)
	vm.ip = int(retIP.Int64())
	return false
}
