package sheetcalc

import (
	"fmt"
	"strings"

	"github.com/sheetcalc/sheetcalc/formula"
)

// FormatError reports cell contents that start with '=' but are not a valid
// formula. It is returned unchanged from the formula package.
type FormatError = formula.FormatError

// InvalidNameError reports a cell name rejected by the name validator.
// No state is changed by the failing operation.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid cell name %q", e.Name)
}

// CircularError reports an edit that would make a cell depend on itself.
// The spreadsheet is left exactly as it was before the edit.
type CircularError struct {
	Cell string   // the edited cell
	Path []string // dependents walked from Cell back to a cell already on the path
}

func (e *CircularError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("circular reference at %s", e.Cell)
	}
	return fmt.Sprintf("circular reference at %s: %s", e.Cell, strings.Join(e.Path, " -> "))
}

// VersionError reports a document whose declared version differs from the
// expected one.
type VersionError struct {
	Want string
	Got  string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("document version %q does not match expected %q", e.Got, e.Want)
}

// DocumentError reports a document that could not be read, decoded, or
// written.
type DocumentError struct {
	Op  string // "read", "decode", "encode", "write", "load"
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.Op, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}
