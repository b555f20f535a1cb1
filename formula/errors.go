package formula

import "fmt"

// FormatError reports a formula that cannot be constructed: a malformed
// token sequence, unbalanced parentheses, or a rejected variable.
type FormatError struct {
	Expr string // the expression as given
	Pos  int    // byte offset of the offending token, len(Expr) at end of input
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid formula %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
}

func formatErrorf(expr string, pos int, format string, args ...any) *FormatError {
	return &FormatError{Expr: expr, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// ErrorValue is the result of a formula that could not be evaluated, such as
// a division by zero or a variable whose value is unavailable. It is a value
// stored in a cell, not a Go error.
type ErrorValue struct {
	Reason string
}

// String returns the reason.
func (e ErrorValue) String() string {
	return e.Reason
}

// ReasonDivisionByZero is the reason carried by division-by-zero results.
const ReasonDivisionByZero = "division by zero"
