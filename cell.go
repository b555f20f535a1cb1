package sheetcalc

import (
	"strconv"
	"strings"

	"github.com/sheetcalc/sheetcalc/formula"
	"github.com/sheetcalc/sheetcalc/internal/lexer"
)

// ContentKind identifies what a cell holds.
type ContentKind int

const (
	ContentEmpty   ContentKind = iota // no contents; unknown, cleared, or placeholder cells
	ContentNumber                     // float64
	ContentText                       // string
	ContentFormula                    // *formula.Formula
)

// String returns a human-readable name for the kind.
func (k ContentKind) String() string {
	switch k {
	case ContentEmpty:
		return "empty"
	case ContentNumber:
		return "number"
	case ContentText:
		return "text"
	case ContentFormula:
		return "formula"
	default:
		return "ContentKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Contents is what the user stored in a cell.
type Contents struct {
	kind    ContentKind
	num     float64
	text    string
	formula *formula.Formula
}

// EmptyContents returns empty contents.
func EmptyContents() Contents { return Contents{} }

// NumberContents returns numeric contents.
func NumberContents(v float64) Contents {
	return Contents{kind: ContentNumber, num: v}
}

// TextContents returns text contents. Empty text is empty contents.
func TextContents(s string) Contents {
	if s == "" {
		return Contents{}
	}
	return Contents{kind: ContentText, text: s}
}

// FormulaContents returns formula contents.
func FormulaContents(f *formula.Formula) Contents {
	return Contents{kind: ContentFormula, formula: f}
}

// Kind returns the type of the contents.
func (c Contents) Kind() ContentKind { return c.kind }

// IsEmpty reports whether the contents are empty.
func (c Contents) IsEmpty() bool { return c.kind == ContentEmpty }

// Number returns the number and true, or 0 and false for other kinds.
func (c Contents) Number() (float64, bool) {
	return c.num, c.kind == ContentNumber
}

// Text returns the text and true, or "" and false for other kinds.
func (c Contents) Text() (string, bool) {
	return c.text, c.kind == ContentText
}

// Formula returns the formula and true, or nil and false for other kinds.
func (c Contents) Formula() (*formula.Formula, bool) {
	return c.formula, c.kind == ContentFormula
}

// String returns the raw text that recreates the contents when passed to
// SetContentsOfCell: "" for empty, the number, the text, or '=' followed by
// the canonical formula.
func (c Contents) String() string {
	switch c.kind {
	case ContentEmpty:
		return ""
	case ContentNumber:
		return formula.FormatNumber(c.num)
	case ContentText:
		return c.text
	case ContentFormula:
		return "=" + c.formula.String()
	default:
		return c.kind.String()
	}
}

// Equal reports whether both contents have the same kind and value.
// Formulas compare by canonical form.
func (c Contents) Equal(other Contents) bool {
	if c.kind != other.kind {
		return false
	}
	switch c.kind {
	case ContentNumber:
		return c.num == other.num
	case ContentText:
		return c.text == other.text
	case ContentFormula:
		return c.formula.Equal(other.formula)
	default:
		return true
	}
}

// ValueKind identifies the type of a cell's computed value.
type ValueKind int

const (
	ValueEmpty  ValueKind = iota // empty contents
	ValueNumber                  // float64
	ValueText                    // string
	ValueError                   // formula.ErrorValue
)

// String returns a human-readable name for the kind.
func (k ValueKind) String() string {
	switch k {
	case ValueEmpty:
		return "empty"
	case ValueNumber:
		return "number"
	case ValueText:
		return "text"
	case ValueError:
		return "error"
	default:
		return "ValueKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is the computed value of a cell.
type Value struct {
	kind ValueKind
	num  float64
	text string
	err  formula.ErrorValue
}

// NumberValue returns a numeric value.
func NumberValue(v float64) Value {
	return Value{kind: ValueNumber, num: v}
}

// TextValue returns a text value.
func TextValue(s string) Value {
	return Value{kind: ValueText, text: s}
}

// ErrorValue returns an error value.
func ErrorValue(ev formula.ErrorValue) Value {
	return Value{kind: ValueError, err: ev}
}

// Kind returns the type of the value.
func (v Value) Kind() ValueKind { return v.kind }

// Number returns the number and true, or 0 and false for other kinds.
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == ValueNumber
}

// Text returns the text and true, or "" and false for other kinds.
func (v Value) Text() (string, bool) {
	return v.text, v.kind == ValueText
}

// Err returns the formula error and true, or a zero ErrorValue and false for
// other kinds.
func (v Value) Err() (formula.ErrorValue, bool) {
	return v.err, v.kind == ValueError
}

// String returns the display form of the value.
func (v Value) String() string {
	switch v.kind {
	case ValueEmpty:
		return ""
	case ValueNumber:
		return formula.FormatNumber(v.num)
	case ValueText:
		return v.text
	case ValueError:
		return "#ERROR: " + v.err.Reason
	default:
		return v.kind.String()
	}
}

func valueFromResult(r formula.Result) Value {
	if ev, ok := r.Err(); ok {
		return ErrorValue(ev)
	}
	n, _ := r.Number()
	return NumberValue(n)
}

// valueOf returns the value of non-formula contents.
func valueOf(c Contents) Value {
	switch c.kind {
	case ContentNumber:
		return NumberValue(c.num)
	case ContentText:
		return TextValue(c.text)
	default:
		return Value{}
	}
}

// parseNumber reports whether raw is a number: an optional sign followed by
// a numeric literal, with surrounding whitespace allowed.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if !lexer.IsNumber(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}
