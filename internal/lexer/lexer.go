package lexer

import (
	"github.com/sheetcalc/sheetcalc/internal/types"
)

// Lexer tokenizes formula text.
type Lexer struct {
	source string
	pos    int
}

// New returns a Lexer that tokenizes the given formula text.
func New(source string) *Lexer {
	return &Lexer{source: source}
}

// Tokenize consumes all source text and returns the token stream,
// terminated by a TokEOF token.
func (l *Lexer) Tokenize() []Token {
	tokens := make([]Token, 0, max(len(l.source)/2, 8))
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens
		}
	}
}

// NextToken advances the lexer and returns the next token.
// Returns TokEOF when all input is consumed.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	start := l.pos
	b, ok := l.peek()
	if !ok {
		return l.token(TokEOF, start)
	}

	switch b {
	case '(':
		l.advance()
		return l.token(TokLParen, start)
	case ')':
		l.advance()
		return l.token(TokRParen, start)
	case '+':
		l.advance()
		return l.token(TokPlus, start)
	case '-':
		l.advance()
		return l.token(TokMinus, start)
	case '*':
		l.advance()
		return l.token(TokStar, start)
	case '/':
		l.advance()
		return l.token(TokSlash, start)
	}

	if isDigit(b) || (b == '.' && l.digitAt(1)) {
		return l.scanNumber()
	}

	if isIdentStart(b) {
		return l.scanVariable()
	}

	return l.scanInvalid()
}

// Text returns the source text of a token produced by this lexer.
func (l *Lexer) Text(tok Token) string {
	return tok.Span.Text(l.source)
}

func (l *Lexer) peek() (byte, bool) {
	if l.pos >= len(l.source) {
		return 0, false
	}
	return l.source[l.pos], true
}

func (l *Lexer) peekAt(offset int) (byte, bool) {
	idx := l.pos + offset
	if idx >= len(l.source) {
		return 0, false
	}
	return l.source[idx], true
}

func (l *Lexer) digitAt(offset int) bool {
	b, ok := l.peekAt(offset)
	return ok && isDigit(b)
}

func (l *Lexer) advance() {
	if l.pos < len(l.source) {
		l.pos++
	}
}

func (l *Lexer) skipWhitespace() {
	for {
		b, ok := l.peek()
		if !ok || !isSpace(b) {
			return
		}
		l.advance()
	}
}

func (l *Lexer) skipDigits() {
	for l.digitAt(0) {
		l.advance()
	}
}

func (l *Lexer) token(kind TokenKind, start int) Token {
	return Token{
		Kind: kind,
		Span: types.NewSpan(types.ByteOffset(start), types.ByteOffset(l.pos)),
	}
}

// scanNumber scans (\d+\.\d*|\d*\.\d+|\d+)([eE][+-]?\d+)?. The exponent is
// only consumed when digits follow it, so "2e" lexes as "2" then "e".
func (l *Lexer) scanNumber() Token {
	start := l.pos
	l.skipDigits()
	if b, ok := l.peek(); ok && b == '.' {
		l.advance()
		l.skipDigits()
	}

	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		offset := 1
		if sign, ok := l.peekAt(1); ok && (sign == '+' || sign == '-') {
			offset = 2
		}
		if l.digitAt(offset) {
			for range offset {
				l.advance()
			}
			l.skipDigits()
		}
	}
	return l.token(TokNumber, start)
}

func (l *Lexer) scanVariable() Token {
	start := l.pos
	l.advance()
	for {
		b, ok := l.peek()
		if !ok || !isIdentPart(b) {
			break
		}
		l.advance()
	}
	return l.token(TokVariable, start)
}

// scanInvalid consumes characters up to the next whitespace or the start of
// a recognizable token.
func (l *Lexer) scanInvalid() Token {
	start := l.pos
	l.advance()
	for {
		b, ok := l.peek()
		if !ok || isSpace(b) || startsToken(b) {
			break
		}
		l.advance()
	}
	return l.token(TokInvalid, start)
}

func startsToken(b byte) bool {
	switch b {
	case '(', ')', '+', '-', '*', '/':
		return true
	}
	return isDigit(b) || isIdentStart(b)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\v' || b == '\f'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

// IsVariable reports whether s is exactly one variable token.
func IsVariable(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

// IsNumber reports whether s is exactly one number token.
func IsNumber(s string) bool {
	if s == "" {
		return false
	}
	l := New(s)
	tok := l.NextToken()
	return tok.Kind == TokNumber && tok.Span.Start == 0 && int(tok.Span.End) == len(s)
}
