package compiler

import (
	"strconv"

	"github.com/chazu/tinyc/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) statement() {
	switch c.cur.Type {
	case TokenInt, TokenChar:
		c.next()
		c.declarators(nil)
	case TokenEnum:
		c.enum()
	case TokenIf:
		c.ifStatement()
	case TokenWhile:
		c.whileStatement()
	case TokenReturn:
		c.returnStatement()
	case TokenLBrace:
		c.block()
	case TokenSemicolon:
		c.next()
	case TokenElse:
		c.errorf("else without if")
	default:
		c.expressionStatement()
	}
}

// declarators parses `name [= init], ...;` after the type keyword. When the
// top-level loop has already consumed the first name it is passed in.
func (c *Compiler) declarators(first *Token) {
	for {
		var name Token
		if first != nil {
			name, first = *first, nil
		} else {
			c.skipStars()
			if c.cur.Type != TokenIdentifier {
				c.errorf("expected variable name, found %s", c.cur.describe())
			}
			name = c.cur
			c.next()
		}

		off := c.declare(name)
		if c.cur.Type == TokenAssign {
			c.next()
			c.value(precAssign)
			c.emit(bytecode.Store(off))
		}

		if c.cur.Type != TokenComma {
			break
		}
		c.next()
	}
	c.expect(TokenSemicolon)
}

// enum parses `enum [tag] { A, B = 5, C };`. Members become compile-time
// constants.
func (c *Compiler) enum() {
	c.next()
	if c.cur.Type == TokenIdentifier {
		c.next()
	}
	c.expect(TokenLBrace)

	var val int64
	for c.cur.Type != TokenRBrace {
		if c.cur.Type != TokenIdentifier {
			c.errorf("expected enum member, found %s", c.cur.describe())
		}
		name := c.cur
		c.next()
		if c.cur.Type == TokenAssign {
			c.next()
			val = c.constant()
		}
		if _, dup := c.enums[name.Literal]; dup {
			c.errorAt(name, "enum member %s redeclared", name.Literal)
		}
		c.enums[name.Literal] = val
		val++

		if c.cur.Type != TokenComma {
			break
		}
		c.next()
	}
	c.expect(TokenRBrace)
	c.expect(TokenSemicolon)
}

// constant parses an optionally negated integer literal.
func (c *Compiler) constant() int64 {
	neg := false
	if c.cur.Type == TokenSub {
		neg = true
		c.next()
	}
	var n int64
	switch c.cur.Type {
	case TokenNumber:
		n = parseInt(c.cur.Literal)
	case TokenCharacter:
		n = int64([]rune(c.cur.Literal)[0])
	default:
		c.errorf("expected integer constant, found %s", c.cur.describe())
	}
	c.next()
	if neg {
		return -n
	}
	return n
}

// ifStatement: cond; JZ else; then; [JMP end; LABEL else; else-branch;
// LABEL end] or LABEL else when there is no else branch.
func (c *Compiler) ifStatement() {
	c.next()
	c.condition()

	elseLabel := c.newLabel()
	c.emit(bytecode.Jz(elseLabel))
	c.statement()

	if c.cur.Type != TokenElse {
		c.emit(bytecode.Label(elseLabel))
		return
	}
	c.next()
	end := c.newLabel()
	c.emit(bytecode.Jmp(end))
	c.emit(bytecode.Label(elseLabel))
	c.statement()
	c.emit(bytecode.Label(end))
}

// whileStatement: LABEL start; cond; JZ end; body; JMP start; LABEL end.
func (c *Compiler) whileStatement() {
	c.next()
	start := c.newLabel()
	end := c.newLabel()

	c.emit(bytecode.Label(start))
	c.condition()
	c.emit(bytecode.Jz(end))
	c.loops++
	c.statement()
	c.loops--
	c.emit(bytecode.Jmp(start))
	c.emit(bytecode.Label(end))
}

// condition parses a parenthesized controlling expression.
func (c *Compiler) condition() {
	c.expect(TokenLParen)
	c.value(0)
	c.expect(TokenRParen)
}

// returnStatement leaves the current function, or jumps to the program exit
// from main and from top-level code.
func (c *Compiler) returnStatement() {
	c.next()
	if c.cur.Type == TokenSemicolon {
		c.emit(bytecode.Imm(0))
	} else {
		c.value(0)
	}

	if c.fn != "" && c.fn != "main" {
		c.emit(bytecode.Plain(bytecode.OpLeave))
	} else {
		c.emit(bytecode.Jmp(c.prog.ExitLabel))
	}
	c.expect(TokenSemicolon)
}

func (c *Compiler) block() {
	c.next()
	for c.cur.Type != TokenRBrace {
		if c.cur.Type == TokenEOF {
			c.errorf("expected \"}\", found end of input")
		}
		c.statement()
	}
	c.next()
}

// expressionStatement compiles an expression for its effects. Straight-line
// top-level code keeps the value on the stack, so the last one becomes the
// program result. Elsewhere the value is dropped with a jump-if-zero to the
// very next instruction.
func (c *Compiler) expressionStatement() {
	if c.expr(0) && (c.fn != "" || c.loops > 0) {
		l := c.newLabel()
		c.emit(bytecode.Jz(l))
		c.emit(bytecode.Label(l))
	}
	c.expect(TokenSemicolon)
}

// parseInt decodes a literal the lexer has already validated. Hex literals
// above MaxInt64 wrap.
func parseInt(lit string) int64 {
	if len(lit) > 2 && lit[0] == '0' && (lit[1] == 'x' || lit[1] == 'X') {
		u, _ := strconv.ParseUint(lit[2:], 16, 64)
		return int64(u)
	}
	n, _ := strconv.ParseInt(lit, 10, 64)
	return n
}
