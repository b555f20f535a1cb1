package formula

import (
	"fmt"

	"github.com/sheetcalc/sheetcalc/internal/lexer"
)

// Lookup returns the numeric value of a variable. A non-nil error makes the
// formula evaluate to an ErrorValue carrying the error's message.
type Lookup func(name string) (float64, error)

// evaluator holds the two stacks for a single Evaluate call.
type evaluator struct {
	values    []float64
	operators []lexer.TokenKind
	lookup    Lookup
}

// Evaluate computes the formula's value. It never panics and never returns a
// Go error: division by zero and lookup failures become error results, and an
// error anywhere in the expression is the result of the whole expression.
//
// '*' and '/' are applied as soon as their right operand is known; '+' and
// '-' are applied when the next '+' or '-' arrives, at ')' and at the end, so
// operators of equal precedence associate to the left.
func (f *Formula) Evaluate(lookup Lookup) Result {
	e := evaluator{
		values:    make([]float64, 0, len(f.tokens)/2+1),
		operators: make([]lexer.TokenKind, 0, len(f.tokens)/2),
		lookup:    lookup,
	}

	for _, tok := range f.tokens {
		switch tok.kind {
		case lexer.TokNumber:
			if res, ok := e.pushOperand(tok.num); !ok {
				return res
			}

		case lexer.TokVariable:
			v, err := e.lookupVariable(tok.text)
			if err != nil {
				return ErrorResult(fmt.Sprintf("variable %s: %v", tok.text, err))
			}
			if res, ok := e.pushOperand(v); !ok {
				return res
			}

		case lexer.TokPlus, lexer.TokMinus:
			if e.topIs(lexer.TokPlus, lexer.TokMinus) {
				e.collapse()
			}
			e.operators = append(e.operators, tok.kind)

		case lexer.TokStar, lexer.TokSlash, lexer.TokLParen:
			e.operators = append(e.operators, tok.kind)

		case lexer.TokRParen:
			if e.topIs(lexer.TokPlus, lexer.TokMinus) {
				e.collapse()
			}
			e.pop() // '('
			if e.topIs(lexer.TokStar, lexer.TokSlash) {
				if res, ok := e.collapse(); !ok {
					return res
				}
			}
		}
	}

	if len(e.operators) > 0 {
		e.collapse()
	}
	return NumberResult(e.values[len(e.values)-1])
}

// pushOperand pushes v, first applying a pending '*' or '/'.
func (e *evaluator) pushOperand(v float64) (Result, bool) {
	e.values = append(e.values, v)
	if e.topIs(lexer.TokStar, lexer.TokSlash) {
		return e.collapse()
	}
	return Result{}, true
}

// collapse pops one operator and two values and pushes the result. It
// returns an error result and false on division by zero.
func (e *evaluator) collapse() (Result, bool) {
	op := e.pop()
	n := len(e.values)
	x, y := e.values[n-2], e.values[n-1]
	e.values = e.values[:n-2]

	var v float64
	switch op {
	case lexer.TokPlus:
		v = x + y
	case lexer.TokMinus:
		v = x - y
	case lexer.TokStar:
		v = x * y
	case lexer.TokSlash:
		if y == 0 {
			return ErrorResult(ReasonDivisionByZero), false
		}
		v = x / y
	}
	e.values = append(e.values, v)
	return Result{}, true
}

func (e *evaluator) topIs(a, b lexer.TokenKind) bool {
	if len(e.operators) == 0 {
		return false
	}
	top := e.operators[len(e.operators)-1]
	return top == a || top == b
}

func (e *evaluator) pop() lexer.TokenKind {
	top := e.operators[len(e.operators)-1]
	e.operators = e.operators[:len(e.operators)-1]
	return top
}

// lookupVariable calls the lookup function, converting a panic into an error.
func (e *evaluator) lookupVariable(name string) (v float64, err error) {
	if e.lookup == nil {
		return 0, ErrNoLookup
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lookup panicked: %v", r)
		}
	}()
	return e.lookup(name)
}
