package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for C-like source
// ---------------------------------------------------------------------------

// errUnterminatedComment is the error literal for a block comment that runs
// to the end of input.
const errUnterminatedComment = "unterminated comment"

// Lexer tokenizes source code one token per NextToken call.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

// atEOF reports whether the whole input has been consumed.
func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token. After the end of input it keeps
// returning TokenEOF.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	pos := l.position()

	switch {
	case l.atEOF():
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case isDigit(l.ch):
		return l.readNumber(pos)

	case l.ch == '.' && isDigit(l.peekChar()):
		return l.readNumber(pos)

	case isLetter(l.ch):
		return l.readIdentifierOrKeyword(pos)

	case l.ch == '"':
		return l.readString(pos)

	case l.ch == '\'':
		return l.readCharacter(pos)
	}

	return l.readOperator(pos)
}

// operator tables: single characters and the two-character forms that
// extend them.
var singleOps = map[rune]TokenType{
	'=': TokenAssign, '?': TokenCond, '|': TokenOr, '^': TokenXor,
	'&': TokenAnd, '<': TokenLt, '>': TokenGt, '+': TokenAdd,
	'-': TokenSub, '*': TokenMul, '/': TokenDiv, '%': TokenMod,
	'!': TokenNot, '~': TokenTilde, '(': TokenLParen, ')': TokenRParen,
	'{': TokenLBrace, '}': TokenRBrace, '[': TokenLBracket, ']': TokenRBracket,
	';': TokenSemicolon, ',': TokenComma, ':': TokenColon,
}

var doubleOps = map[string]TokenType{
	"==": TokenEq, "!=": TokenNe, "<=": TokenLe, ">=": TokenGe,
	"<<": TokenShl, ">>": TokenShr, "&&": TokenLan, "||": TokenLor,
	"++": TokenInc, "--": TokenDec,
}

// readOperator reads an operator or delimiter.
func (l *Lexer) readOperator(pos Position) Token {
	if next := l.peekChar(); next != 0 {
		pair := string([]rune{l.ch, next})
		if typ, ok := doubleOps[pair]; ok {
			l.readChar()
			l.readChar()
			return Token{Type: typ, Literal: pair, Pos: pos}
		}
	}

	ch := l.ch
	l.readChar()
	if typ, ok := singleOps[ch]; ok {
		return Token{Type: typ, Literal: string(ch), Pos: pos}
	}
	return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character %q", ch), Pos: pos}
}

// skipWhitespaceAndComments skips whitespace, // and /* */ comments and
// preprocessor lines starting with #. It reports false with an error token
// for an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v' {
			l.readChar()
		}

		switch {
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue

		case l.ch == '/' && l.peekChar() == '*':
			pos := l.position()
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.atEOF() {
					return Token{Type: TokenError, Literal: errUnterminatedComment, Pos: pos}, false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			continue

		case l.ch == '#':
			// #include and friends are ignored.
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		return Token{}, true
	}
}

// readNumber reads a decimal, hexadecimal or float literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		digits := l.pos
		for isHexDigit(l.ch) {
			l.readChar()
		}
		if l.pos == digits {
			return Token{Type: TokenError, Literal: "malformed hex literal", Pos: pos}
		}
		lit := l.input[start:l.pos]
		if _, err := strconv.ParseUint(lit[2:], 16, 64); err != nil {
			return Token{Type: TokenError, Literal: fmt.Sprintf("invalid integer literal %s", lit), Pos: pos}
		}
		return Token{Type: TokenNumber, Literal: lit, Pos: pos}
	}

	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save := *l
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if isDigit(l.ch) {
			isFloat = true
			for isDigit(l.ch) {
				l.readChar()
			}
		} else {
			*l = save
		}
	}
	if isLetter(l.ch) {
		for isLetter(l.ch) || isDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenError, Literal: fmt.Sprintf("malformed number %s", l.input[start:l.pos]), Pos: pos}
	}

	lit := l.input[start:l.pos]
	if isFloat {
		if _, err := strconv.ParseFloat(lit, 64); err != nil {
			return Token{Type: TokenError, Literal: fmt.Sprintf("invalid float literal %s", lit), Pos: pos}
		}
		return Token{Type: TokenFloat, Literal: lit, Pos: pos}
	}
	if _, err := strconv.ParseInt(lit, 10, 64); err != nil {
		return Token{Type: TokenError, Literal: fmt.Sprintf("invalid integer literal %s", lit), Pos: pos}
	}
	return Token{Type: TokenNumber, Literal: lit, Pos: pos}
}

// readIdentifierOrKeyword reads an identifier or a reserved word.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}

	literal := l.input[start:l.pos]
	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: literal, Pos: pos}
}

// readString reads a double-quoted string literal. The token literal holds
// the decoded text.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		if l.atEOF() || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		if l.ch == '\\' {
			r, err := l.readEscape()
			if err != "" {
				return Token{Type: TokenError, Literal: err, Pos: pos}
			}
			sb.WriteRune(r)
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readCharacter reads a single-quoted character literal.
func (l *Lexer) readCharacter(pos Position) Token {
	l.readChar() // consume opening '

	var ch rune
	switch {
	case l.atEOF() || l.ch == '\n':
		return Token{Type: TokenError, Literal: "unterminated character literal", Pos: pos}
	case l.ch == '\'':
		return Token{Type: TokenError, Literal: "empty character literal", Pos: pos}
	case l.ch == '\\':
		r, err := l.readEscape()
		if err != "" {
			return Token{Type: TokenError, Literal: err, Pos: pos}
		}
		ch = r
	default:
		ch = l.ch
		l.readChar()
	}

	if l.ch != '\'' {
		return Token{Type: TokenError, Literal: "unterminated character literal", Pos: pos}
	}
	l.readChar() // consume closing '

	return Token{Type: TokenCharacter, Literal: string(ch), Pos: pos}
}

// readEscape decodes a backslash escape starting at the backslash.
func (l *Lexer) readEscape() (rune, string) {
	l.readChar() // consume \
	ch := l.ch
	if l.atEOF() {
		return 0, "unterminated escape sequence"
	}
	l.readChar()

	switch ch {
	case 'n':
		return '\n', ""
	case 't':
		return '\t', ""
	case 'r':
		return '\r', ""
	case '0':
		return 0, ""
	case '\\', '\'', '"':
		return ch, ""
	}
	return 0, fmt.Sprintf("unknown escape sequence \\%c", ch)
}

// Helper functions

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
