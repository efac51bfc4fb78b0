// Package bytecode defines the instruction set shared by the tinyc compiler
// and virtual machine, and the Program container that carries a compiled
// unit between them.
//
// # Instructions
//
// A program is one flat []Instruction. Each Instruction is an opcode plus at
// most one operand. Opcodes are grouped into ranges by category:
//
//   - Immediates (0x00): IMM, IMMF
//   - Arithmetic (0x10): ADD SUB MUL DIV MOD
//   - Unary (0x20): NEG NOT DEREF ADDR CAST
//   - Comparison (0x30): EQ NE LT GT LE GE, always yielding Integer 0/1
//   - Bitwise (0x40): AND OR XOR SHL SHR, Integer operands only
//   - Control flow (0x50): JMP JZ LABEL
//   - Locals (0x60): LOAD STORE STOREI
//   - Calls (0x70): CALL ENTER LEAVE
//   - Output (0x80): PRINT PRINTS
//
// Jumps name symbolic labels rather than positions. LABEL is a marker that
// the VM resolves in a pre-pass and never executes, so the compiler can emit
// forward jumps without patching.
//
// # Programs
//
// Program holds the code together with the function tables
// (name to entry index and arity), the main entry, the locals of the last
// compiled scope and the interned string data segment.
//
// # Images
//
// MarshalImage writes a program in the "TCBC" format: a four byte magic,
// a big-endian version and a canonical CBOR body. Canonical encoding makes
// images byte-for-byte reproducible.
package bytecode
