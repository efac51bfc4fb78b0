package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the C-like source language
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 0x2A
	TokenFloat      // 3.14, 1e10
	TokenString     // "hello"
	TokenCharacter  // 'a', '\n'
	TokenIdentifier // foo, _bar

	// Keywords
	TokenInt
	TokenChar
	TokenIf
	TokenElse
	TokenWhile
	TokenReturn
	TokenSizeof
	TokenEnum

	// Operators
	TokenAssign // =
	TokenCond   // ?
	TokenLor    // ||
	TokenLan    // &&
	TokenOr     // |
	TokenXor    // ^
	TokenAnd    // &
	TokenEq     // ==
	TokenNe     // !=
	TokenLt     // <
	TokenGt     // >
	TokenLe     // <=
	TokenGe     // >=
	TokenShl    // <<
	TokenShr    // >>
	TokenAdd    // +
	TokenSub    // -
	TokenMul    // *
	TokenDiv    // /
	TokenMod    // %
	TokenInc    // ++
	TokenDec    // --
	TokenNot    // !
	TokenTilde  // ~

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenColon     // :
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNumber:     "NUMBER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenCharacter:  "CHARACTER",
	TokenIdentifier: "IDENTIFIER",
	TokenInt:        "int",
	TokenChar:       "char",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenReturn:     "return",
	TokenSizeof:     "sizeof",
	TokenEnum:       "enum",
	TokenAssign:     "=",
	TokenCond:       "?",
	TokenLor:        "||",
	TokenLan:        "&&",
	TokenOr:         "|",
	TokenXor:        "^",
	TokenAnd:        "&",
	TokenEq:         "==",
	TokenNe:         "!=",
	TokenLt:         "<",
	TokenGt:         ">",
	TokenLe:         "<=",
	TokenGe:         ">=",
	TokenShl:        "<<",
	TokenShr:        ">>",
	TokenAdd:        "+",
	TokenSub:        "-",
	TokenMul:        "*",
	TokenDiv:        "/",
	TokenMod:        "%",
	TokenInc:        "++",
	TokenDec:        "--",
	TokenNot:        "!",
	TokenTilde:      "~",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenSemicolon:  ";",
	TokenComma:      ",",
	TokenColon:      ":",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in source text.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // raw text, or the decoded value for strings and characters
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// describe renders a token for diagnostics.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenNumber, TokenFloat, TokenIdentifier:
		return fmt.Sprintf("%q", t.Literal)
	case TokenString:
		return "string literal"
	case TokenCharacter:
		return "character literal"
	}
	return fmt.Sprintf("%q", t.Type.String())
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"int":    TokenInt,
	"char":   TokenChar,
	"if":     TokenIf,
	"else":   TokenElse,
	"while":  TokenWhile,
	"return": TokenReturn,
	"sizeof": TokenSizeof,
	"enum":   TokenEnum,
}

// Keywords returns the reserved words of the language.
func Keywords() []string {
	return []string{"int", "char", "if", "else", "while", "return", "sizeof", "enum"}
}

// IsTypeKeyword reports whether t starts a type name.
func IsTypeKeyword(t TokenType) bool {
	return t == TokenInt || t == TokenChar
}
