// Package sheetcalc is the computational core of a spreadsheet.
//
// A Spreadsheet owns a set of named cells, each holding contents (a number,
// text, or a formula) and a cached value. Formulas reference other cells by
// name; the engine tracks those references in a dependency graph, rejects
// edits that would create a circular reference, and recomputes every affected
// cell in dependency order after each successful edit.
//
// Example:
//
//	sheet := sheetcalc.New(sheetcalc.WithLogger(slog.Default()))
//	if _, err := sheet.SetContentsOfCell("A1", "2"); err != nil {
//	    return err
//	}
//	affected, err := sheet.SetContentsOfCell("B1", "=A1*3")
//	// affected == []string{"B1"}
//	v, _ := sheet.GetCellValue("B1")
//	fmt.Println(v) // 6
//
// A Spreadsheet is not safe for concurrent use; callers serialize access.
// Separate instances share no state.
package sheetcalc

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/sheetcalc/sheetcalc/internal/types"
)

// LevelTrace is a custom log level more verbose than Debug.
// Use for per-item iteration logging (recomputed cells, replayed document cells).
// Enable with: &slog.HandlerOptions{Level: slog.Level(-8)}
const LevelTrace = types.LevelTrace

// DefaultVersion is the document version used when WithVersion is not given.
const DefaultVersion = "default"

var defaultNamePattern = regexp.MustCompile(`^[A-Za-z]+[0-9]+$`)

// IsDefaultCellName reports whether name is a letters-then-digits cell name
// such as "A1" or "ab12", the rule used when WithValidator is not given.
func IsDefaultCellName(name string) bool {
	return defaultNamePattern.MatchString(name)
}

// Option configures New, Load and the document readers.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	isValid   func(string) bool
	normalize func(string) string
	version   string
}

func newConfig(opts []Option) config {
	cfg := config{
		isValid:   IsDefaultCellName,
		normalize: func(s string) string { return s },
		version:   DefaultVersion,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets the logger for debug/trace output.
// If not set, no logging occurs (zero overhead).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithValidator sets the predicate every normalized cell name must satisfy,
// both for edited cells and for variables inside formulas. A nil validator
// restores the default letters-then-digits rule.
func WithValidator(isValid func(string) bool) Option {
	return func(c *config) {
		if isValid == nil {
			isValid = IsDefaultCellName
		}
		c.isValid = isValid
	}
}

// WithNormalizer sets the function applied to every cell name before it is
// validated and stored, for example strings.ToUpper. A nil normalizer
// restores the identity.
func WithNormalizer(normalize func(string) string) Option {
	return func(c *config) {
		if normalize == nil {
			normalize = func(s string) string { return s }
		}
		c.normalize = normalize
	}
}

// WithVersion sets the document version. Load rejects documents declaring a
// different version.
func WithVersion(version string) Option {
	return func(c *config) { c.version = version }
}

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("component", component))
}

// logEnabled returns true if logging is enabled at the given level.
func logEnabled(logger *slog.Logger, level slog.Level) bool {
	return logger != nil && logger.Enabled(context.Background(), level)
}
