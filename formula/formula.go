// Package formula parses, validates, and evaluates infix arithmetic formulas
// over non-negative numeric literals and named variables.
//
// A Formula is immutable once constructed. Construction validates the token
// sequence in a single left-to-right scan and stores a canonical string in
// which variables are normalized and numbers are written in their shortest
// round-tripping form. Two formulas are equal when their canonical strings
// are identical.
//
// # Usage
//
//	f, err := formula.New("a1 * (B2 + 3)", strings.ToUpper, nil)
//	if err != nil {
//	    var fe *formula.FormatError
//	    errors.As(err, &fe)
//	}
//	res := f.Evaluate(func(name string) (float64, error) { return 2, nil })
//	if v, ok := res.Number(); ok {
//	    fmt.Println(v) // 10
//	}
package formula

import (
	"errors"
	"hash/fnv"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/sheetcalc/sheetcalc/internal/lexer"
)

// Normalizer canonicalizes a variable name before it is validated and stored.
type Normalizer func(string) string

// Validator reports whether a normalized variable name is acceptable.
type Validator func(string) bool

// Formula is a validated, normalized infix expression.
type Formula struct {
	canonical string
	tokens    []token
	variables []string
}

// token is a normalized formula token. text is the canonical spelling.
type token struct {
	kind lexer.TokenKind
	text string
	num  float64
}

// Parse constructs a Formula with no normalization and no variable
// restrictions beyond the variable syntax.
func Parse(expr string) (*Formula, error) {
	return New(expr, nil, nil)
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) *Formula {
	f, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// New constructs a Formula from expr. Each variable is passed through
// normalize (identity if nil), must still be a syntactically valid variable
// afterwards, and must satisfy isValid (everything passes if nil).
// Any violation returns a *FormatError.
func New(expr string, normalize Normalizer, isValid Validator) (*Formula, error) {
	if normalize == nil {
		normalize = func(s string) string { return s }
	}
	if isValid == nil {
		isValid = func(string) bool { return true }
	}

	var (
		l             = lexer.New(expr)
		tokens        []token
		depth         int
		expectOperand = true
		last          lexer.Token
	)

scan:
	for {
		tok := l.NextToken()
		text := l.Text(tok)
		pos := int(tok.Span.Start)

		switch {
		case tok.Kind == lexer.TokEOF:
			break scan

		case tok.Kind == lexer.TokInvalid:
			return nil, formatErrorf(expr, pos, "invalid token %q", text)

		case tok.Kind.IsOperand() || tok.Kind == lexer.TokLParen:
			if !expectOperand {
				return nil, formatErrorf(expr, pos, "expected an operator or ')' but found %q", text)
			}

		default: // operator or ')'
			if expectOperand {
				return nil, formatErrorf(expr, pos, "expected a number, variable or '(' but found %q", text)
			}
		}

		switch tok.Kind {
		case lexer.TokNumber:
			v, err := strconv.ParseFloat(text, 64)
			if err != nil || math.IsInf(v, 0) {
				return nil, formatErrorf(expr, pos, "number %q is out of range", text)
			}
			tokens = append(tokens, token{kind: tok.Kind, text: FormatNumber(v), num: v})
			expectOperand = false

		case lexer.TokVariable:
			name := normalize(text)
			if !lexer.IsVariable(name) {
				return nil, formatErrorf(expr, pos, "variable %q normalizes to %q, which is not a variable", text, name)
			}
			if !isValid(name) {
				return nil, formatErrorf(expr, pos, "%q is not a valid variable", name)
			}
			tokens = append(tokens, token{kind: tok.Kind, text: name})
			expectOperand = false

		case lexer.TokLParen:
			depth++
			tokens = append(tokens, token{kind: tok.Kind, text: "("})
			expectOperand = true

		case lexer.TokRParen:
			if depth == 0 {
				return nil, formatErrorf(expr, pos, "')' has no matching '('")
			}
			depth--
			tokens = append(tokens, token{kind: tok.Kind, text: ")"})
			expectOperand = false

		default:
			tokens = append(tokens, token{kind: tok.Kind, text: string(tok.Kind.OperatorSymbol())})
			expectOperand = true
		}
		last = tok
	}

	if len(tokens) == 0 {
		return nil, formatErrorf(expr, len(expr), "formula has no tokens")
	}
	if depth != 0 {
		return nil, formatErrorf(expr, len(expr), "%d unclosed '('", depth)
	}
	if expectOperand {
		return nil, formatErrorf(expr, int(last.Span.Start), "formula cannot end with %q", l.Text(last))
	}

	return newFromTokens(tokens), nil
}

func newFromTokens(tokens []token) *Formula {
	var b strings.Builder
	var vars []string
	for _, t := range tokens {
		b.WriteString(t.text)
		if t.kind == lexer.TokVariable {
			vars = append(vars, t.text)
		}
	}
	slices.Sort(vars)
	return &Formula{
		canonical: b.String(),
		tokens:    tokens,
		variables: slices.Compact(vars),
	}
}

// Variables returns the distinct normalized variable names in the formula,
// sorted.
func (f *Formula) Variables() []string {
	return slices.Clone(f.variables)
}

// String returns the canonical form: normalized tokens with no spaces.
// Parsing it again yields an equal Formula.
func (f *Formula) String() string {
	return f.canonical
}

// Equal reports whether both formulas have the same canonical form.
func (f *Formula) Equal(other *Formula) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.canonical == other.canonical
}

// Hash returns a hash of the canonical form, consistent with Equal.
func (f *Formula) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(f.canonical))
	return h.Sum64()
}

// ErrNoLookup is the lookup failure reported when a formula with variables is
// evaluated without a lookup function.
var ErrNoLookup = errors.New("no lookup function")
