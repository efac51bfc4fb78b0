package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 34 {
		t.Errorf("OpcodeCount() = %d, want 34", got)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpImm, "IMM"},
		{OpImmF, "IMMF"},
		{OpAdd, "ADD"},
		{OpDeref, "DEREF"},
		{OpAddr, "ADDR"},
		{OpShr, "SHR"},
		{OpJz, "JZ"},
		{OpLabel, "LABEL"},
		{OpStoreI, "STOREI"},
		{OpEnter, "ENTER"},
		{OpLeave, "LEAVE"},
		{OpPrintS, "PRINTS"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
	if op.IsValid() {
		t.Error("0xEE should not be valid")
	}
}

func TestOpcodeOperand(t *testing.T) {
	tests := []struct {
		op   Opcode
		want OperandKind
	}{
		{OpImm, OperandInt},
		{OpImmF, OperandFloat},
		{OpAdd, OperandNone},
		{OpJmp, OperandLabel},
		{OpLabel, OperandLabel},
		{OpLoad, OperandOffset},
		{OpAddr, OperandOffset},
		{OpCall, OperandEntry},
		{OpEnter, OperandCount},
		{OpPrintS, OperandString},
		{OpPrint, OperandNone},
	}

	for _, tt := range tests {
		if got := tt.op.Operand(); got != tt.want {
			t.Errorf("%s.Operand() = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestOpcodeCategories(t *testing.T) {
	for _, op := range []Opcode{OpJmp, OpJz} {
		if !op.IsJump() {
			t.Errorf("%s.IsJump() = false, want true", op)
		}
	}
	for _, op := range []Opcode{OpLabel, OpCall, OpLeave, OpAdd} {
		if op.IsJump() {
			t.Errorf("%s.IsJump() = true, want false", op)
		}
	}

	for _, op := range []Opcode{OpAdd, OpSub, OpMul, OpDiv, OpMod} {
		if !op.IsArithmetic() {
			t.Errorf("%s.IsArithmetic() = false", op)
		}
	}
	for _, op := range []Opcode{OpEq, OpNe, OpLt, OpGt, OpLe, OpGe} {
		if !op.IsComparison() {
			t.Errorf("%s.IsComparison() = false", op)
		}
	}
	for _, op := range []Opcode{OpAnd, OpOr, OpXor, OpShl, OpShr} {
		if !op.IsBitwise() {
			t.Errorf("%s.IsBitwise() = false", op)
		}
	}
	if OpNeg.IsArithmetic() || OpNeg.IsBitwise() || OpNeg.IsComparison() {
		t.Error("NEG should not belong to a binary category")
	}
}

func TestStackEffects(t *testing.T) {
	tests := []struct {
		op        Opcode
		pop, push int
	}{
		{OpImm, 0, 1},
		{OpAdd, 2, 1},
		{OpNot, 1, 1},
		{OpCast, 0, 0},
		{OpJz, 1, 0},
		{OpStore, 1, 0},
		{OpStoreI, 2, 0},
		{OpPrint, 1, 0},
	}

	for _, tt := range tests {
		info := GetOpcodeInfo(tt.op)
		if info.StackPop != tt.pop || info.StackPush != tt.push {
			t.Errorf("%s stack effect = (%d,%d), want (%d,%d)", tt.op, info.StackPop, info.StackPush, tt.pop, tt.push)
		}
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		in   Instruction
		want string
	}{
		{Imm(42), "IMM 42"},
		{Imm(-3), "IMM -3"},
		{ImmF(1.5), "IMMF 1.5"},
		{ImmF(2), "IMMF 2"},
		{Jmp(3), "JMP L3"},
		{Jz(7), "JZ L7"},
		{Label(0), "LABEL L0"},
		{Load(2), "LOAD 2"},
		{Store(0), "STORE 0"},
		{Addr(1), "ADDR 1"},
		{Call(12), "CALL 12"},
		{Enter(4), "ENTER 4"},
		{PrintS("hi\n"), `PRINTS "hi\n"`},
		{Plain(OpAdd), "ADD"},
		{Plain(OpLeave), "LEAVE"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
