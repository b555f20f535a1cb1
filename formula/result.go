package formula

import (
	"math"
	"strconv"
)

// ResultKind identifies the type of an evaluation result.
type ResultKind int

const (
	ResultNumber ResultKind = iota // float64
	ResultError                    // ErrorValue
)

// String returns a human-readable name for the kind.
func (k ResultKind) String() string {
	switch k {
	case ResultNumber:
		return "number"
	case ResultError:
		return "error"
	default:
		return "ResultKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Result is the outcome of Evaluate: either a number or an ErrorValue.
type Result struct {
	kind ResultKind
	num  float64
	err  ErrorValue
}

// NumberResult returns a numeric result.
func NumberResult(v float64) Result {
	return Result{kind: ResultNumber, num: v}
}

// ErrorResult returns an error result with the given reason.
func ErrorResult(reason string) Result {
	return Result{kind: ResultError, err: ErrorValue{Reason: reason}}
}

// Kind returns the type of the result.
func (r Result) Kind() ResultKind { return r.kind }

// IsError reports whether the result is an ErrorValue.
func (r Result) IsError() bool { return r.kind == ResultError }

// Number returns the numeric value and true, or 0 and false for an error result.
func (r Result) Number() (float64, bool) {
	return r.num, r.kind == ResultNumber
}

// Err returns the error value and true, or a zero ErrorValue and false for a
// numeric result.
func (r Result) Err() (ErrorValue, bool) {
	return r.err, r.kind == ResultError
}

// String formats numbers in their shortest round-tripping form and errors
// by reason.
func (r Result) String() string {
	switch r.kind {
	case ResultNumber:
		return FormatNumber(r.num)
	case ResultError:
		return "#ERROR: " + r.err.Reason
	default:
		return r.kind.String()
	}
}

// FormatNumber returns the canonical text of a number, as used in formula
// strings and persisted documents: plain decimal notation for magnitudes in
// [1e-6, 1e21), exponent notation otherwise.
func FormatNumber(v float64) string {
	if abs := math.Abs(v); v == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
