package compiler

import (
	"errors"

	"github.com/chazu/tinyc/pkg/bytecode"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Compiler: single-pass parser and code generator
// ---------------------------------------------------------------------------

// Sizes are the target type widths reported by sizeof.
type Sizes struct {
	Int     int64
	Char    int64
	Pointer int64
}

// DefaultSizes matches a 64-bit target.
var DefaultSizes = Sizes{Int: 8, Char: 1, Pointer: 8}

// Option configures a Compiler.
type Option func(*Compiler)

// WithSizes sets the widths sizeof reports.
func WithSizes(s Sizes) Option {
	return func(c *Compiler) { c.sizes = s }
}

// WithLogger sets the logger used for compilation tracing.
func WithLogger(log commonlog.Logger) Option {
	return func(c *Compiler) { c.log = log }
}

// Compiler turns source text into a bytecode.Program in one pass. Code is
// emitted while parsing; there is no syntax tree. A Compiler compiles
// exactly one source.
type Compiler struct {
	lex  *Lexer
	cur  Token // one token of lookahead
	prev Token // most recently consumed token

	prog   *bytecode.Program
	labels int64

	locals map[string]int    // scope being compiled
	fn     string            // enclosing function, "" at top level
	loops  int               // while bodies enclosing the current statement
	stored bytecode.Fragment // address of the latest store through a pointer
	enums  map[string]int64  // enum constants, visible everywhere after definition

	sizes Sizes
	log   commonlog.Logger
	done  bool
}

// NewCompiler creates a compiler for src.
func NewCompiler(src string, opts ...Option) *Compiler {
	c := &Compiler{
		lex:    NewLexer(src),
		prog:   bytecode.NewProgram(),
		locals: make(map[string]int),
		enums:  make(map[string]int64),
		sizes:  DefaultSizes,
		log:    commonlog.GetLogger("tinyc.compiler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles src with the given options.
func Compile(src string, opts ...Option) (*bytecode.Program, error) {
	return NewCompiler(src, opts...).Compile()
}

// Compile runs the compiler over the whole source. Errors are returned as
// *Error.
func (c *Compiler) Compile() (prog *bytecode.Program, err error) {
	if c.done {
		return nil, errors.New("compiler: source already compiled")
	}
	c.done = true

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	c.prog.ExitLabel = c.newLabel()
	c.next()
	for c.cur.Type != TokenEOF {
		c.topLevel()
	}
	c.emit(bytecode.Label(c.prog.ExitLabel))

	for name, off := range c.locals {
		c.prog.Locals[name] = off
	}
	c.log.Debugf("compiled %d instructions, %d functions, %d top-level slots",
		c.prog.Len(), len(c.prog.Functions), len(c.prog.Locals))
	return c.prog, nil
}

// ---------------------------------------------------------------------------
// Token stream
// ---------------------------------------------------------------------------

// next advances the lookahead. Lexer errors abort compilation.
func (c *Compiler) next() {
	c.prev = c.cur
	c.cur = c.lex.NextToken()
	if c.cur.Type == TokenError {
		c.errorf("%s", c.cur.Literal)
	}
}

// expect consumes a token of type t or fails.
func (c *Compiler) expect(t TokenType) Token {
	if c.cur.Type != t {
		c.errorf("expected %q, found %s", t.String(), c.cur.describe())
	}
	tok := c.cur
	c.next()
	return tok
}

// skipStars consumes pointer markers. Pointers are untyped stack addresses,
// so the markers carry no information.
func (c *Compiler) skipStars() int {
	n := 0
	for c.cur.Type == TokenMul {
		c.next()
		n++
	}
	return n
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (c *Compiler) emit(in bytecode.Instruction) int {
	return c.prog.Emit(in, c.prev.Pos.Line)
}

func (c *Compiler) newLabel() int64 {
	id := c.labels
	c.labels++
	return id
}

// local resolves a variable in the current scope.
func (c *Compiler) local(name Token) int {
	off, ok := c.locals[name.Literal]
	if !ok {
		c.errorAt(name, "undeclared variable %s", name.Literal)
	}
	return off
}

// declare allocates the next free slot for name.
func (c *Compiler) declare(name Token) int {
	if _, dup := c.locals[name.Literal]; dup {
		c.errorAt(name, "%s redeclared", name.Literal)
	}
	off := len(c.locals)
	c.locals[name.Literal] = off
	return off
}

// ---------------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------------

// topLevel compiles one function definition, block or statement.
func (c *Compiler) topLevel() {
	if !IsTypeKeyword(c.cur.Type) {
		c.statement()
		return
	}

	c.next()
	c.skipStars()
	if c.cur.Type != TokenIdentifier {
		c.errorf("expected name after type, found %s", c.cur.describe())
	}
	name := c.cur
	c.next()
	if c.cur.Type == TokenLParen {
		c.function(name)
		return
	}
	c.declarators(&name)
}

// function compiles a definition whose name has been consumed. The code is
// fenced by a jump so that straight-line top-level code skips it.
func (c *Compiler) function(name Token) {
	if _, dup := c.prog.Functions[name.Literal]; dup {
		c.errorAt(name, "function %s redefined", name.Literal)
	}
	c.next() // consume (
	params := c.params()
	c.expect(TokenLBrace)

	skip := c.newLabel()
	c.emit(bytecode.Jmp(skip))
	entry := c.emit(bytecode.Enter(0))
	c.prog.Functions[name.Literal] = entry
	c.prog.Arity[name.Literal] = len(params)
	c.prog.FuncLines[name.Literal] = name.Pos.Line
	if name.Literal == "main" {
		c.prog.MainEntry = entry
	}

	top := c.locals
	c.locals = make(map[string]int)
	c.fn = name.Literal
	for _, p := range params {
		c.declare(p)
	}

	for c.cur.Type != TokenRBrace {
		if c.cur.Type == TokenEOF {
			c.errorf("expected \"}\" to close %s, found end of input", name.Literal)
		}
		c.statement()
	}
	c.next()

	slots := len(c.locals)
	if slots > bytecode.MaxFrameSlots {
		c.errorAt(name, "function %s has too many locals", name.Literal)
	}
	c.prog.PatchArg(entry, int64(slots))
	c.emit(bytecode.Imm(0))
	c.emit(bytecode.Plain(bytecode.OpLeave))
	c.emit(bytecode.Label(skip))

	c.locals = top
	c.fn = ""
	c.log.Debugf("function %s: entry=%d arity=%d slots=%d", name.Literal, entry, len(params), slots)
}

// params parses a parameter list after the opening parenthesis.
func (c *Compiler) params() []Token {
	var params []Token
	if c.cur.Type == TokenRParen {
		c.next()
		return params
	}
	for {
		if c.cur.Type == TokenEOF {
			c.errorf("unexpected end of parameter list")
		}
		if !IsTypeKeyword(c.cur.Type) {
			c.errorf("expected parameter type, found %s", c.cur.describe())
		}
		c.next()
		c.skipStars()
		if c.cur.Type != TokenIdentifier {
			c.errorf("expected parameter name, found %s", c.cur.describe())
		}
		params = append(params, c.cur)
		c.next()

		if c.cur.Type == TokenRParen {
			c.next()
			return params
		}
		if c.cur.Type == TokenEOF {
			c.errorf("unexpected end of parameter list")
		}
		c.expect(TokenComma)
	}
}
