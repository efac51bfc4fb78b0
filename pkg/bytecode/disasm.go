package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; tinyc bytecode v%d\n", p.Version))
	if p.HasMain() {
		sb.WriteString(fmt.Sprintf("; Main: %04d\n", p.MainEntry))
	}

	// Functions
	if len(p.Functions) > 0 {
		sb.WriteString("; Functions:\n")
		for _, fn := range p.FunctionNames() {
			sb.WriteString(fmt.Sprintf(";   %-16s entry=%04d arity=%d\n", fn, p.Functions[fn], p.Arity[fn]))
		}
	}

	// Data segment
	if len(p.Strings) > 0 {
		sb.WriteString("; Strings:\n")
		for i, s := range p.Strings {
			display := s
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, display))
		}
	}
	sb.WriteString("\n")

	// Code section
	entries := make(map[int]string, len(p.Functions))
	for fn, entry := range p.Functions {
		entries[entry] = fn
	}
	for i, in := range p.Code {
		if fn, ok := entries[i]; ok {
			sb.WriteString(fmt.Sprintf("%s:\n", fn))
		}
		sb.WriteString(p.disassembleInstruction(i, in))
		sb.WriteString("\n")
	}

	return sb.String()
}

// disassembleInstruction formats one listing line, annotating operands
// that refer to other tables.
func (p *Program) disassembleInstruction(index int, in Instruction) string {
	text := in.String()
	var note string

	switch in.Op {
	case OpCall:
		if fn, ok := p.FunctionAt(int(in.Arg)); ok {
			note = fn
		}
	case OpLabel:
		if in.Arg == p.ExitLabel {
			note = "exit"
		}
	}

	if line := p.LineAt(index); line > 0 {
		if note != "" {
			return fmt.Sprintf("%04d  %-24s ; %s (line %d)", index, text, note, line)
		}
		return fmt.Sprintf("%04d  %-24s ; line %d", index, text, line)
	}
	if note != "" {
		return fmt.Sprintf("%04d  %-24s ; %s", index, text, note)
	}
	return fmt.Sprintf("%04d  %s", index, text)
}
