package compiler

import (
	"errors"
	"fmt"
)

// Error is a compile error at a source position. Compilation stops at the
// first error.
type Error struct {
	Line   int
	Column int
	Msg    string

	// incomplete marks errors caused by running out of input.
	incomplete bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Msg)
}

// IsIncomplete reports whether err is a compile error caused by premature
// end of input, i.e. more source text could make the program valid.
func IsIncomplete(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.incomplete
}

// bailout carries an *Error through a panic to the Compile boundary.
type bailout struct {
	err *Error
}

// errorf aborts compilation with an error at the current token.
func (c *Compiler) errorf(format string, args ...interface{}) {
	c.errorAt(c.cur, format, args...)
}

// errorAt aborts compilation with an error at tok.
func (c *Compiler) errorAt(tok Token, format string, args ...interface{}) {
	panic(bailout{&Error{
		Line:       tok.Pos.Line,
		Column:     tok.Pos.Column,
		Msg:        fmt.Sprintf(format, args...),
		incomplete: tok.Type == TokenEOF || (tok.Type == TokenError && tok.Literal == errUnterminatedComment),
	}})
}
