package bytecode

import (
	"fmt"
	"sort"
)

// ImageVersion is the current program image format version.
// Increment when making incompatible changes to Program or Instruction.
const ImageVersion uint16 = 1

// Program is the output of one compilation: a flat instruction sequence
// plus the side tables the VM and tooling need.
type Program struct {
	Version uint16 `cbor:"1,keyasint"`

	// Code section
	Code  []Instruction `cbor:"2,keyasint"`
	Lines []int         `cbor:"3,keyasint"` // Source line per instruction

	// Function tables, keyed by name
	Functions map[string]int `cbor:"4,keyasint"` // Entry instruction index
	Arity     map[string]int `cbor:"5,keyasint"` // Parameter count
	FuncLines map[string]int `cbor:"6,keyasint"` // Line of the definition

	// MainEntry is the entry index of main, or -1 when there is none.
	MainEntry int `cbor:"7,keyasint"`

	// Locals holds the offsets of the top-level scope. A script without
	// main needs len(Locals) slots pre-allocated before running from 0.
	Locals map[string]int `cbor:"8,keyasint"`

	// Strings is the data segment of interned string literals.
	Strings []string `cbor:"9,keyasint"`

	// ExitLabel is the label every top-level return jumps to.
	ExitLabel int64 `cbor:"10,keyasint"`
}

// Fragment is a run of instructions cut out of a program, used to reorder
// emitted code.
type Fragment struct {
	Code  []Instruction
	Lines []int
}

// NewProgram creates an empty program with the current version.
func NewProgram() *Program {
	return &Program{
		Version:   ImageVersion,
		Code:      make([]Instruction, 0, 64),
		Lines:     make([]int, 0, 64),
		Functions: make(map[string]int),
		Arity:     make(map[string]int),
		FuncLines: make(map[string]int),
		MainEntry: -1,
		Locals:    make(map[string]int),
	}
}

// Emit appends an instruction and returns its index.
func (p *Program) Emit(in Instruction, line int) int {
	idx := len(p.Code)
	p.Code = append(p.Code, in)
	p.Lines = append(p.Lines, line)
	return idx
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Code)
}

// PatchArg overwrites the integer operand of an already emitted instruction.
func (p *Program) PatchArg(index int, arg int64) {
	p.Code[index].Arg = arg
}

// Last returns the most recently emitted instruction.
func (p *Program) Last() (Instruction, bool) {
	if len(p.Code) == 0 {
		return Instruction{}, false
	}
	return p.Code[len(p.Code)-1], true
}

// Truncate drops every instruction at or after index n.
func (p *Program) Truncate(n int) {
	p.Code = p.Code[:n]
	p.Lines = p.Lines[:n]
}

// Cut removes the instructions from start to the end and returns them.
func (p *Program) Cut(start int) Fragment {
	f := Fragment{
		Code:  append([]Instruction(nil), p.Code[start:]...),
		Lines: append([]int(nil), p.Lines[start:]...),
	}
	p.Truncate(start)
	return f
}

// Splice appends a previously cut fragment.
func (p *Program) Splice(f Fragment) {
	p.Code = append(p.Code, f.Code...)
	p.Lines = append(p.Lines, f.Lines...)
}

// AddString interns s in the data segment and returns its index.
// If the string already exists, returns the existing index.
func (p *Program) AddString(s string) int {
	for i, existing := range p.Strings {
		if existing == s {
			return i
		}
	}
	p.Strings = append(p.Strings, s)
	return len(p.Strings) - 1
}

// HasMain reports whether a function named main was compiled.
func (p *Program) HasMain() bool {
	return p.MainEntry >= 0
}

// Start returns the index execution begins at: main when present,
// otherwise the first instruction.
func (p *Program) Start() int {
	if p.HasMain() {
		return p.MainEntry
	}
	return 0
}

// LineAt returns the source line recorded for an instruction, or 0.
func (p *Program) LineAt(index int) int {
	if index < 0 || index >= len(p.Lines) {
		return 0
	}
	return p.Lines[index]
}

// EntryArity derives the entry-index to arity table the VM consumes.
func (p *Program) EntryArity() map[int]int {
	m := make(map[int]int, len(p.Functions))
	for name, entry := range p.Functions {
		m[entry] = p.Arity[name]
	}
	return m
}

// FunctionNames returns the defined function names sorted by entry index.
func (p *Program) FunctionNames() []string {
	names := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return p.Functions[names[i]] < p.Functions[names[j]]
	})
	return names
}

// FunctionAt returns the name of the function whose entry is index.
func (p *Program) FunctionAt(index int) (string, bool) {
	for name, entry := range p.Functions {
		if entry == index {
			return name, true
		}
	}
	return "", false
}

// MaxFrameSlots bounds the slot count of a single ENTER.
const MaxFrameSlots = 1 << 16

// Validate checks the structural invariants of a program: known opcodes,
// one LABEL per id, a LABEL for every jump target, and CALL targets that
// point at an ENTER with a recorded arity.
func (p *Program) Validate() error {
	if len(p.Lines) != len(p.Code) {
		return fmt.Errorf("line table has %d entries for %d instructions", len(p.Lines), len(p.Code))
	}

	labels := make(map[int64]int)
	for i, in := range p.Code {
		if !in.Op.IsValid() {
			return fmt.Errorf("instruction %d: unknown opcode 0x%02X", i, byte(in.Op))
		}
		if in.Op == OpLabel {
			if prev, dup := labels[in.Arg]; dup {
				return fmt.Errorf("instruction %d: label L%d already defined at %d", i, in.Arg, prev)
			}
			labels[in.Arg] = i
		}
	}

	arity := p.EntryArity()
	for i, in := range p.Code {
		switch {
		case in.Op.IsJump():
			if _, ok := labels[in.Arg]; !ok {
				return fmt.Errorf("instruction %d: %s targets undefined label L%d", i, in.Op, in.Arg)
			}
		case in.Op == OpCall:
			entry := int(in.Arg)
			if entry < 0 || entry >= len(p.Code) || p.Code[entry].Op != OpEnter {
				return fmt.Errorf("instruction %d: CALL target %d is not a function entry", i, entry)
			}
			if _, ok := arity[entry]; !ok {
				return fmt.Errorf("instruction %d: no arity recorded for entry %d", i, entry)
			}
		case in.Op == OpEnter:
			if in.Arg < 0 {
				return fmt.Errorf("instruction %d: negative ENTER slot count %d", i, in.Arg)
			}
			if in.Arg > MaxFrameSlots {
				return fmt.Errorf("instruction %d: ENTER slot count %d exceeds %d", i, in.Arg, MaxFrameSlots)
			}
		}
	}

	if p.MainEntry >= len(p.Code) {
		return fmt.Errorf("main entry %d out of range", p.MainEntry)
	}
	if p.HasMain() && p.Code[p.MainEntry].Op != OpEnter {
		return fmt.Errorf("main entry %d is not a function entry", p.MainEntry)
	}
	return nil
}
