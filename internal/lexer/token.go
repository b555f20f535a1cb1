// Package lexer provides tokenization for infix formula text.
package lexer

import (
	"strconv"

	"github.com/sheetcalc/sheetcalc/internal/types"
)

// Token is a token with kind and source span.
type Token struct {
	Kind TokenKind
	Span types.Span
}

// NewToken creates a new token.
func NewToken(kind TokenKind, span types.Span) Token {
	return Token{Kind: kind, Span: span}
}

// TokenKind identifies a token type.
type TokenKind int

const (
	// TokInvalid is a run of characters that starts no other token.
	TokInvalid TokenKind = iota
	// TokEOF is end of input.
	TokEOF

	// TokNumber is an unsigned decimal literal with optional fraction and exponent.
	TokNumber
	// TokVariable is an identifier matching [A-Za-z_][A-Za-z0-9_]*.
	TokVariable

	// TokLParen is '('.
	TokLParen
	// TokRParen is ')'.
	TokRParen
	// TokPlus is '+'.
	TokPlus
	// TokMinus is '-'.
	TokMinus
	// TokStar is '*'.
	TokStar
	// TokSlash is '/'.
	TokSlash
)

var tokenNames = [...]string{
	TokInvalid:  "invalid",
	TokEOF:      "end of formula",
	TokNumber:   "number",
	TokVariable: "variable",
	TokLParen:   "'('",
	TokRParen:   "')'",
	TokPlus:     "'+'",
	TokMinus:    "'-'",
	TokStar:     "'*'",
	TokSlash:    "'/'",
}

// String returns a human-readable name for the kind.
func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

// IsOperator reports whether the kind is one of the four binary operators.
func (k TokenKind) IsOperator() bool {
	return k == TokPlus || k == TokMinus || k == TokStar || k == TokSlash
}

// IsOperand reports whether the kind is a number or a variable.
func (k TokenKind) IsOperand() bool {
	return k == TokNumber || k == TokVariable
}

// OperatorSymbol returns the source character of an operator or parenthesis
// kind, or 0 for any other kind.
func (k TokenKind) OperatorSymbol() byte {
	switch k {
	case TokLParen:
		return '('
	case TokRParen:
		return ')'
	case TokPlus:
		return '+'
	case TokMinus:
		return '-'
	case TokStar:
		return '*'
	case TokSlash:
		return '/'
	default:
		return 0
	}
}
