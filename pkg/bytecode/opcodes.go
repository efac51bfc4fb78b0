package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Immediates (0x00-0x0F)
	// ========================================================================

	OpImm  Opcode = 0x00 // Push integer immediate: IMM <n>
	OpImmF Opcode = 0x01 // Push float immediate: IMMF <f>

	// ========================================================================
	// Arithmetic (0x10-0x1F)
	// ========================================================================

	OpAdd Opcode = 0x10 // Pop two, push sum
	OpSub Opcode = 0x11 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x12 // Pop two, push product
	OpDiv Opcode = 0x13 // Pop two, push quotient
	OpMod Opcode = 0x14 // Pop two, push remainder (integers only)

	// ========================================================================
	// Unary (0x20-0x2F)
	// ========================================================================

	OpNeg   Opcode = 0x20 // Negate top of stack
	OpNot   Opcode = 0x21 // Logical NOT: push 1 if TOS is zero, else 0
	OpDeref Opcode = 0x22 // Replace address on TOS with the slot it names
	OpAddr  Opcode = 0x23 // Push absolute address of a local: ADDR <offset>
	OpCast  Opcode = 0x24 // Type cast; no runtime effect

	// ========================================================================
	// Comparison (0x30-0x3F)
	// ========================================================================

	OpEq Opcode = 0x30 // Pop two, push 1 if equal, 0 otherwise
	OpNe Opcode = 0x31 // Pop two, push 1 if not equal
	OpLt Opcode = 0x32 // Pop two, push 1 if a < b
	OpGt Opcode = 0x33 // Pop two, push 1 if a > b
	OpLe Opcode = 0x34 // Pop two, push 1 if a <= b
	OpGe Opcode = 0x35 // Pop two, push 1 if a >= b

	// ========================================================================
	// Bitwise (0x40-0x4F) - integer operands only
	// ========================================================================

	OpAnd Opcode = 0x40 // Bitwise AND
	OpOr  Opcode = 0x41 // Bitwise OR
	OpXor Opcode = 0x42 // Bitwise XOR
	OpShl Opcode = 0x43 // Shift left
	OpShr Opcode = 0x44 // Arithmetic shift right

	// ========================================================================
	// Control flow (0x50-0x5F)
	// ========================================================================

	OpJmp   Opcode = 0x50 // Unconditional jump: JMP <label>
	OpJz    Opcode = 0x51 // Pop, jump if zero: JZ <label>
	OpLabel Opcode = 0x52 // Jump target marker, never executed: LABEL <label>

	// ========================================================================
	// Local variables (0x60-0x6F)
	// ========================================================================

	OpLoad   Opcode = 0x60 // Push local: LOAD <offset>
	OpStore  Opcode = 0x61 // Pop and store to local: STORE <offset>
	OpStoreI Opcode = 0x62 // Pop value, pop address, store value at address

	// ========================================================================
	// Calls (0x70-0x7F)
	// ========================================================================

	OpCall  Opcode = 0x70 // Call function: CALL <entry>
	OpEnter Opcode = 0x71 // Frame prologue: ENTER <slots>
	OpLeave Opcode = 0x72 // Frame epilogue and return

	// ========================================================================
	// Output (0x80-0x8F)
	// ========================================================================

	OpPrint  Opcode = 0x80 // Pop and print according to runtime type
	OpPrintS Opcode = 0x81 // Print a literal captured at compile time: PRINTS "<s>"
)

// OperandKind describes what an instruction's operand means.
type OperandKind uint8

const (
	OperandNone   OperandKind = iota
	OperandInt                // Integer immediate
	OperandFloat              // Float immediate
	OperandLabel              // Label id
	OperandOffset             // Frame-relative slot offset
	OperandEntry              // Instruction index of a function entry
	OperandCount              // Slot count
	OperandString             // String literal
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string      // Human-readable name
	StackPop  int         // How many values popped from stack (-1 = variable)
	StackPush int         // How many values pushed to stack (-1 = variable)
	Operand   OperandKind // Kind of operand carried by the instruction
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Immediates
	OpImm:  {"IMM", 0, 1, OperandInt},
	OpImmF: {"IMMF", 0, 1, OperandFloat},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, OperandNone},
	OpSub: {"SUB", 2, 1, OperandNone},
	OpMul: {"MUL", 2, 1, OperandNone},
	OpDiv: {"DIV", 2, 1, OperandNone},
	OpMod: {"MOD", 2, 1, OperandNone},

	// Unary
	OpNeg:   {"NEG", 1, 1, OperandNone},
	OpNot:   {"NOT", 1, 1, OperandNone},
	OpDeref: {"DEREF", 1, 1, OperandNone},
	OpAddr:  {"ADDR", 0, 1, OperandOffset},
	OpCast:  {"CAST", 0, 0, OperandNone},

	// Comparison
	OpEq: {"EQ", 2, 1, OperandNone},
	OpNe: {"NE", 2, 1, OperandNone},
	OpLt: {"LT", 2, 1, OperandNone},
	OpGt: {"GT", 2, 1, OperandNone},
	OpLe: {"LE", 2, 1, OperandNone},
	OpGe: {"GE", 2, 1, OperandNone},

	// Bitwise
	OpAnd: {"AND", 2, 1, OperandNone},
	OpOr:  {"OR", 2, 1, OperandNone},
	OpXor: {"XOR", 2, 1, OperandNone},
	OpShl: {"SHL", 2, 1, OperandNone},
	OpShr: {"SHR", 2, 1, OperandNone},

	// Control flow
	OpJmp:   {"JMP", 0, 0, OperandLabel},
	OpJz:    {"JZ", 1, 0, OperandLabel},
	OpLabel: {"LABEL", 0, 0, OperandLabel},

	// Locals
	OpLoad:   {"LOAD", 0, 1, OperandOffset},
	OpStore:  {"STORE", 1, 0, OperandOffset},
	OpStoreI: {"STOREI", 2, 0, OperandNone},

	// Calls
	OpCall:  {"CALL", -1, -1, OperandEntry}, // Pops arity args, pushes frame
	OpEnter: {"ENTER", 0, -1, OperandCount},
	OpLeave: {"LEAVE", -1, 1, OperandNone},

	// Output
	OpPrint:  {"PRINT", 1, 0, OperandNone},
	OpPrintS: {"PRINTS", 0, 0, OperandString},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Operand returns the operand kind for this opcode.
func (op Opcode) Operand() OperandKind {
	return GetOpcodeInfo(op).Operand
}

// IsValid reports whether op is part of the instruction set.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump returns true if this opcode transfers control to a label.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJz
}

// IsArithmetic returns true for the binary arithmetic opcodes.
func (op Opcode) IsArithmetic() bool {
	return op >= OpAdd && op <= OpMod
}

// IsComparison returns true for the comparison opcodes.
func (op Opcode) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsBitwise returns true for the integer-only bitwise opcodes.
func (op Opcode) IsBitwise() bool {
	return op >= OpAnd && op <= OpShr
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
