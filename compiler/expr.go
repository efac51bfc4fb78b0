package compiler

import (
	"strconv"

	"github.com/chazu/tinyc/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Expressions: precedence climbing fused with emission
// ---------------------------------------------------------------------------

// Binding powers, lowest to highest.
const (
	precAssign = 1
	precCond   = 2
	precLor    = 3
	precLan    = 4
	precOr     = 5
	precXor    = 6
	precAnd    = 7
	precEq     = 8
	precRel    = 9
	precShift  = 10
	precAdd    = 11
	precMul    = 12
	precUnary  = 13
)

var infixPrec = map[TokenType]int{
	TokenAssign: precAssign,
	TokenCond:   precCond,
	TokenLor:    precLor,
	TokenLan:    precLan,
	TokenOr:     precOr,
	TokenXor:    precXor,
	TokenAnd:    precAnd,
	TokenEq:     precEq,
	TokenNe:     precEq,
	TokenLt:     precRel,
	TokenGt:     precRel,
	TokenLe:     precRel,
	TokenGe:     precRel,
	TokenShl:    precShift,
	TokenShr:    precShift,
	TokenAdd:    precAdd,
	TokenSub:    precAdd,
	TokenMul:    precMul,
	TokenDiv:    precMul,
	TokenMod:    precMul,
}

var binaryOps = map[TokenType]bytecode.Opcode{
	TokenOr:  bytecode.OpOr,
	TokenXor: bytecode.OpXor,
	TokenAnd: bytecode.OpAnd,
	TokenEq:  bytecode.OpEq,
	TokenNe:  bytecode.OpNe,
	TokenLt:  bytecode.OpLt,
	TokenGt:  bytecode.OpGt,
	TokenLe:  bytecode.OpLe,
	TokenGe:  bytecode.OpGe,
	TokenShl: bytecode.OpShl,
	TokenShr: bytecode.OpShr,
	TokenAdd: bytecode.OpAdd,
	TokenSub: bytecode.OpSub,
	TokenMul: bytecode.OpMul,
	TokenDiv: bytecode.OpDiv,
	TokenMod: bytecode.OpMod,
}

// value compiles an expression whose result must be left on the stack.
func (c *Compiler) value(minPrec int) {
	if !c.expr(minPrec) {
		c.reload()
	}
}

// reload pushes the result of an expression that left nothing on the
// stack. A store to a local is reloaded with LOAD. A store through a
// pointer is reloaded by evaluating its address again when storeIndirect
// found that safe.
func (c *Compiler) reload() {
	last, _ := c.prog.Last()
	switch {
	case last.Op == bytecode.OpStore:
		c.emit(bytecode.Load(int(last.Arg)))
	case last.Op == bytecode.OpStoreI && c.stored.Code != nil:
		c.prog.Splice(c.stored)
		c.emit(bytecode.Plain(bytecode.OpDeref))
	default:
		c.errorAt(c.prev, "expression has no value")
	}
}

// hasEffects reports whether running code can change a slot, call a
// function or print.
func hasEffects(code []bytecode.Instruction) bool {
	for _, in := range code {
		switch in.Op {
		case bytecode.OpStore, bytecode.OpStoreI, bytecode.OpCall,
			bytecode.OpEnter, bytecode.OpLeave, bytecode.OpPrint, bytecode.OpPrintS:
			return true
		}
	}
	return false
}

// repeatable reports whether code can be emitted a second time with the
// same result. Labels cannot be defined twice.
func repeatable(code []bytecode.Instruction) bool {
	for _, in := range code {
		switch in.Op {
		case bytecode.OpLabel, bytecode.OpJmp, bytecode.OpJz:
			return false
		}
	}
	return !hasEffects(code)
}

// expr compiles operators binding at least as tightly as minPrec and
// reports whether a value was pushed. Assignments and print push nothing.
func (c *Compiler) expr(minPrec int) bool {
	start := c.prog.Len()
	pushed := c.prefix(minPrec)

	for {
		op := c.cur
		prec, ok := infixPrec[op.Type]
		if !ok || prec < minPrec {
			return pushed
		}

		switch op.Type {
		case TokenAssign:
			c.storeIndirect(op, pushed, start)
			pushed = false
			continue
		case TokenCond:
			c.ternary(pushed)
		case TokenLan, TokenLor:
			c.logical(op, pushed)
		default:
			if !pushed {
				c.reload()
			}
			c.next()
			c.value(prec + 1)
			c.emit(bytecode.Plain(binaryOps[op.Type]))
		}
		pushed = true
	}
}

// storeIndirect compiles `*addr = value`, where the address code begins at
// start. The DEREF just emitted for the left side is dropped so the address
// stays on the stack for STOREI. The address code is kept for reload when
// it is repeatable and the value code cannot change what it reads.
func (c *Compiler) storeIndirect(op Token, pushed bool, start int) {
	last, ok := c.prog.Last()
	if !pushed || !ok || last.Op != bytecode.OpDeref {
		c.errorAt(op, "invalid assignment target")
	}
	end := c.prog.Len() - 1
	addr := bytecode.Fragment{
		Code:  append([]bytecode.Instruction(nil), c.prog.Code[start:end]...),
		Lines: append([]int(nil), c.prog.Lines[start:end]...),
	}
	c.prog.Truncate(end)
	c.next()
	c.value(precAssign)
	c.emit(bytecode.Plain(bytecode.OpStoreI))

	c.stored = bytecode.Fragment{}
	if repeatable(addr.Code) && !hasEffects(c.prog.Code[end:c.prog.Len()-1]) {
		c.stored = addr
	}
}

// ternary: cond; JZ else; a; JMP end; LABEL else; b; LABEL end.
func (c *Compiler) ternary(pushed bool) {
	if !pushed {
		c.reload()
	}
	c.next()

	elseLabel := c.newLabel()
	c.emit(bytecode.Jz(elseLabel))
	c.value(precAssign)

	end := c.newLabel()
	c.emit(bytecode.Jmp(end))
	c.emit(bytecode.Label(elseLabel))
	c.expect(TokenColon)
	c.value(precCond)
	c.emit(bytecode.Label(end))
}

// logical compiles && and || with short-circuit jumps. NOT NOT turns the
// right operand into 0/1.
//
//	a && b: a; JZ false; b; NOT; NOT; JMP end; LABEL false; IMM 0; LABEL end
//	a || b: a; JZ rhs; IMM 1; JMP end; LABEL rhs; b; NOT; NOT; LABEL end
func (c *Compiler) logical(op Token, pushed bool) {
	if !pushed {
		c.reload()
	}
	c.next()

	skip := c.newLabel()
	end := c.newLabel()
	c.emit(bytecode.Jz(skip))

	if op.Type == TokenLan {
		c.value(precLan + 1)
		c.emit(bytecode.Plain(bytecode.OpNot))
		c.emit(bytecode.Plain(bytecode.OpNot))
		c.emit(bytecode.Jmp(end))
		c.emit(bytecode.Label(skip))
		c.emit(bytecode.Imm(0))
	} else {
		c.emit(bytecode.Imm(1))
		c.emit(bytecode.Jmp(end))
		c.emit(bytecode.Label(skip))
		c.value(precLor + 1)
		c.emit(bytecode.Plain(bytecode.OpNot))
		c.emit(bytecode.Plain(bytecode.OpNot))
	}
	c.emit(bytecode.Label(end))
}

// prefix compiles one operand with its prefix operators.
func (c *Compiler) prefix(minPrec int) bool {
	tok := c.cur

	switch tok.Type {
	case TokenNumber:
		c.next()
		c.emit(bytecode.Imm(parseInt(tok.Literal)))

	case TokenFloat:
		c.next()
		f, _ := strconv.ParseFloat(tok.Literal, 64)
		c.emit(bytecode.ImmF(f))

	case TokenCharacter:
		c.next()
		c.emit(bytecode.Imm(int64([]rune(tok.Literal)[0])))

	case TokenString:
		c.next()
		c.emit(bytecode.Imm(int64(c.prog.AddString(tok.Literal))))

	case TokenSub:
		c.unary(bytecode.OpNeg)

	case TokenNot:
		c.unary(bytecode.OpNot)

	case TokenMul:
		c.unary(bytecode.OpDeref)

	case TokenAdd:
		c.next()
		c.value(precUnary)

	case TokenTilde:
		c.next()
		c.value(precUnary)
		c.emit(bytecode.Imm(-1))
		c.emit(bytecode.Plain(bytecode.OpXor))

	case TokenAnd:
		c.next()
		if c.cur.Type != TokenIdentifier {
			c.errorf("expected variable after \"&\", found %s", c.cur.describe())
		}
		name := c.cur
		c.next()
		c.emit(bytecode.Addr(c.local(name)))

	case TokenInc, TokenDec:
		c.increment(tok)

	case TokenSizeof:
		c.sizeof()

	case TokenIdentifier:
		return c.identifier(minPrec)

	case TokenLParen:
		return c.paren()

	case TokenEOF:
		c.errorf("unexpected end of input in expression")

	default:
		c.errorf("unexpected %s in expression", tok.describe())
	}
	return true
}

func (c *Compiler) unary(op bytecode.Opcode) {
	c.next()
	c.value(precUnary)
	c.emit(bytecode.Plain(op))
}

// increment compiles prefix ++x and --x on a local.
func (c *Compiler) increment(op Token) {
	c.next()
	if c.cur.Type != TokenIdentifier {
		c.errorf("expected variable after %q, found %s", op.Literal, c.cur.describe())
	}
	name := c.cur
	c.next()
	off := c.local(name)

	c.emit(bytecode.Load(off))
	c.emit(bytecode.Imm(1))
	if op.Type == TokenInc {
		c.emit(bytecode.Plain(bytecode.OpAdd))
	} else {
		c.emit(bytecode.Plain(bytecode.OpSub))
	}
	c.emit(bytecode.Store(off))
	c.emit(bytecode.Load(off))
}

// sizeof folds sizeof(type [*...]) to an immediate.
func (c *Compiler) sizeof() {
	c.next()
	c.expect(TokenLParen)

	var size int64
	switch c.cur.Type {
	case TokenInt:
		size = c.sizes.Int
	case TokenChar:
		size = c.sizes.Char
	default:
		c.errorf("invalid sizeof argument %s", c.cur.describe())
	}
	c.next()
	if c.skipStars() > 0 {
		size = c.sizes.Pointer
	}
	c.expect(TokenRParen)
	c.emit(bytecode.Imm(size))
}

// identifier compiles a call, print, assignment, enum constant or load.
func (c *Compiler) identifier(minPrec int) bool {
	name := c.cur
	c.next()

	if c.cur.Type == TokenLParen {
		if _, defined := c.prog.Functions[name.Literal]; !defined && name.Literal == "print" {
			c.print()
			return false
		}
		c.call(name)
		return true
	}

	if c.cur.Type == TokenAssign && minPrec <= precAssign {
		c.next()
		off := c.local(name)
		c.value(precAssign)
		c.emit(bytecode.Store(off))
		return false
	}

	if _, isLocal := c.locals[name.Literal]; !isLocal {
		if v, ok := c.enums[name.Literal]; ok {
			c.emit(bytecode.Imm(v))
			return true
		}
	}
	c.emit(bytecode.Load(c.local(name)))
	return true
}

// print compiles the print built-in: PRINTS for a string literal argument,
// otherwise the expression followed by PRINT.
func (c *Compiler) print() {
	c.next() // consume (
	if c.cur.Type == TokenString {
		lit := c.cur
		c.next()
		c.expect(TokenRParen)
		c.emit(bytecode.PrintS(lit.Literal))
		return
	}
	c.value(0)
	c.expect(TokenRParen)
	c.emit(bytecode.Plain(bytecode.OpPrint))
}

// call compiles a function call. Each argument is compiled into its own
// fragment; fragments are emitted last to first so the first argument ends
// up on top of the stack.
func (c *Compiler) call(name Token) {
	entry, ok := c.prog.Functions[name.Literal]
	if !ok {
		c.errorAt(name, "unknown function %s", name.Literal)
	}
	arity := c.prog.Arity[name.Literal]
	c.next() // consume (

	var args []bytecode.Fragment
	for c.cur.Type != TokenRParen {
		start := c.prog.Len()
		c.value(precAssign)
		args = append(args, c.prog.Cut(start))
		if c.cur.Type != TokenComma {
			break
		}
		c.next()
	}
	c.expect(TokenRParen)

	if len(args) != arity {
		c.errorAt(name, "function %s expects %d arguments, got %d", name.Literal, arity, len(args))
	}
	for i := len(args) - 1; i >= 0; i-- {
		c.prog.Splice(args[i])
	}
	c.emit(bytecode.Call(entry))
}

// paren compiles a cast `(type) e` or a grouping `(e)`.
func (c *Compiler) paren() bool {
	c.next()
	if IsTypeKeyword(c.cur.Type) {
		c.next()
		c.skipStars()
		c.expect(TokenRParen)
		c.value(precUnary)
		c.emit(bytecode.Plain(bytecode.OpCast))
		return true
	}
	pushed := c.expr(0)
	c.expect(TokenRParen)
	return pushed
}
