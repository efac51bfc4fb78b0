package bytecode

import (
	"fmt"
	"strconv"
)

// Instruction is one entry in a program's flat code sequence.
// Which operand field is meaningful depends on the opcode's OperandKind:
// Arg carries integers, labels, offsets, entries and slot counts, F carries
// float immediates and S carries PRINTS literals.
type Instruction struct {
	Op  Opcode  `cbor:"1,keyasint"`
	Arg int64   `cbor:"2,keyasint,omitempty"`
	F   float64 `cbor:"3,keyasint,omitempty"`
	S   string  `cbor:"4,keyasint,omitempty"`
}

// Imm builds an integer push.
func Imm(n int64) Instruction { return Instruction{Op: OpImm, Arg: n} }

// ImmF builds a float push.
func ImmF(f float64) Instruction { return Instruction{Op: OpImmF, F: f} }

// Jmp builds an unconditional jump to label.
func Jmp(label int64) Instruction { return Instruction{Op: OpJmp, Arg: label} }

// Jz builds a jump-if-zero to label.
func Jz(label int64) Instruction { return Instruction{Op: OpJz, Arg: label} }

// Label builds a label marker.
func Label(label int64) Instruction { return Instruction{Op: OpLabel, Arg: label} }

// Load builds a frame-relative load.
func Load(offset int) Instruction { return Instruction{Op: OpLoad, Arg: int64(offset)} }

// Store builds a frame-relative store.
func Store(offset int) Instruction { return Instruction{Op: OpStore, Arg: int64(offset)} }

// Addr builds an address-of-local.
func Addr(offset int) Instruction { return Instruction{Op: OpAddr, Arg: int64(offset)} }

// Call builds a call to the function starting at entry.
func Call(entry int) Instruction { return Instruction{Op: OpCall, Arg: int64(entry)} }

// Enter builds a frame prologue reserving slots locals.
func Enter(slots int) Instruction { return Instruction{Op: OpEnter, Arg: int64(slots)} }

// PrintS builds a literal print.
func PrintS(s string) Instruction { return Instruction{Op: OpPrintS, S: s} }

// Plain builds an instruction that carries no operand.
func Plain(op Opcode) Instruction { return Instruction{Op: op} }

// String renders the instruction in listing form, e.g. "IMM 5" or "JZ L3".
func (in Instruction) String() string {
	switch in.Op.Operand() {
	case OperandNone:
		return in.Op.String()
	case OperandFloat:
		return in.Op.String() + " " + strconv.FormatFloat(in.F, 'g', -1, 64)
	case OperandLabel:
		return fmt.Sprintf("%s L%d", in.Op, in.Arg)
	case OperandString:
		return fmt.Sprintf("%s %q", in.Op, in.S)
	default:
		return fmt.Sprintf("%s %d", in.Op, in.Arg)
	}
}
