package compiler

import (
	"testing"
)

func TestLexerOperators(t *testing.T) {
	input := `= == ! != < <= << > >= >> & && | || + ++ - -- * / % ^ ~ ? : , ; ( ) [ ] { }`
	expected := []TokenType{
		TokenAssign, TokenEq, TokenNot, TokenNe,
		TokenLt, TokenLe, TokenShl, TokenGt, TokenGe, TokenShr,
		TokenAnd, TokenLan, TokenOr, TokenLor,
		TokenAdd, TokenInc, TokenSub, TokenDec,
		TokenMul, TokenDiv, TokenMod, TokenXor, TokenTilde,
		TokenCond, TokenColon, TokenComma, TokenSemicolon,
		TokenLParen, TokenRParen, TokenLBracket, TokenRBracket, TokenLBrace, TokenRBrace,
		TokenEOF,
	}

	l := NewLexer(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Fatalf("token[%d] = %v, want %v", i, tok, want)
		}
	}
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	input := `int char if else while return sizeof enum main _tmp x1 integer`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenInt, "int"},
		{TokenChar, "char"},
		{TokenIf, "if"},
		{TokenElse, "else"},
		{TokenWhile, "while"},
		{TokenReturn, "return"},
		{TokenSizeof, "sizeof"},
		{TokenEnum, "enum"},
		{TokenIdentifier, "main"},
		{TokenIdentifier, "_tmp"},
		{TokenIdentifier, "x1"},
		{TokenIdentifier, "integer"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ || tok.Literal != exp.lit {
			t.Errorf("token[%d] = %v, want %v(%q)", i, tok, exp.typ, exp.lit)
		}
	}
	if len(Keywords()) != len(reservedWords) {
		t.Errorf("Keywords() has %d entries, reservedWords %d", len(Keywords()), len(reservedWords))
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		lit   string
	}{
		{"42", TokenNumber, "42"},
		{"0", TokenNumber, "0"},
		{"0x2A", TokenNumber, "0x2A"},
		{"0XfF", TokenNumber, "0XfF"},
		{"9223372036854775807", TokenNumber, "9223372036854775807"},
		{"3.14", TokenFloat, "3.14"},
		{"1.", TokenFloat, "1."},
		{".5", TokenFloat, ".5"},
		{"1e10", TokenFloat, "1e10"},
		{"2.5e-3", TokenFloat, "2.5e-3"},
		{"6E+2", TokenFloat, "6E+2"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			if tok.Type != tt.typ || tok.Literal != tt.lit {
				t.Errorf("NextToken() = %v, want %v(%q)", tok, tt.typ, tt.lit)
			}
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"abc`, "unterminated string"},
		{"\"ab\ncd\"", "unterminated string"},
		{`''`, "empty character literal"},
		{`'ab'`, "unterminated character literal"},
		{`'a`, "unterminated character literal"},
		{`"\q"`, `unknown escape sequence \q`},
		{`@`, `unexpected character '@'`},
		{`0x`, "malformed hex literal"},
		{`0x1ffffffffffffffff`, "invalid integer literal 0x1ffffffffffffffff"},
		{`99999999999999999999`, "invalid integer literal 99999999999999999999"},
		{`12abc`, "malformed number 12abc"},
		{`1e`, "malformed number 1e"},
		{`/* never closed`, errUnterminatedComment},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			if tok.Type != TokenError {
				t.Fatalf("NextToken() = %v, want error", tok)
			}
			if tok.Literal != tt.want {
				t.Errorf("error = %q, want %q", tok.Literal, tt.want)
			}
		})
	}
}

func TestLexerStringsAndCharacters(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		lit   string
	}{
		{`"hello"`, TokenString, "hello"},
		{`""`, TokenString, ""},
		{`"a\tb\n"`, TokenString, "a\tb\n"},
		{`"say \"hi\"\\"`, TokenString, `say "hi"\`},
		{`'a'`, TokenCharacter, "a"},
		{`'\n'`, TokenCharacter, "\n"},
		{`'\''`, TokenCharacter, "'"},
		{`'\0'`, TokenCharacter, "\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			if tok.Type != tt.typ || tok.Literal != tt.lit {
				t.Errorf("NextToken() = %v, want %v(%q)", tok, tt.typ, tt.lit)
			}
		})
	}
}

func TestLexerSkipsCommentsAndDirectives(t *testing.T) {
	input := "#include <stdio.h>\n// line comment\n/* block\ncomment */ int"
	l := NewLexer(input)

	tok := l.NextToken()
	if tok.Type != TokenInt {
		t.Fatalf("NextToken() = %v, want int", tok)
	}
	if tok.Pos.Line != 4 || tok.Pos.Column != 12 {
		t.Errorf("position = %d:%d, want 4:12", tok.Pos.Line, tok.Pos.Column)
	}
	for i := 0; i < 2; i++ {
		if tok := l.NextToken(); tok.Type != TokenEOF {
			t.Errorf("NextToken() after end = %v, want EOF", tok)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	input := "int x;\n  x = 0x1F;"
	expected := []struct {
		typ          TokenType
		offset, line int
		column       int
	}{
		{TokenInt, 0, 1, 1},
		{TokenIdentifier, 4, 1, 5},
		{TokenSemicolon, 5, 1, 6},
		{TokenIdentifier, 9, 2, 3},
		{TokenAssign, 11, 2, 5},
		{TokenNumber, 13, 2, 7},
		{TokenSemicolon, 17, 2, 11},
		{TokenEOF, 18, 2, 12},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Fatalf("token[%d] = %v, want %v", i, tok, exp.typ)
		}
		if tok.Pos.Offset != exp.offset || tok.Pos.Line != exp.line || tok.Pos.Column != exp.column {
			t.Errorf("token[%d] %v at %+v, want offset %d line %d column %d",
				i, tok, tok.Pos, exp.offset, exp.line, exp.column)
		}
	}
}

func TestTokenString(t *testing.T) {
	tests := []struct {
		tok  Token
		want string
	}{
		{Token{Type: TokenEOF}, "EOF"},
		{Token{Type: TokenError, Literal: "bad"}, "ERROR(bad)"},
		{Token{Type: TokenIdentifier, Literal: "x"}, `IDENTIFIER("x")`},
		{Token{Type: TokenAdd, Literal: "+"}, `+("+")`},
	}
	for _, tt := range tests {
		if got := tt.tok.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if got := TokenType(999).String(); got != "Token(999)" {
		t.Errorf("unknown TokenType String() = %q", got)
	}
}
