package sheetcalc

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/sheetcalc/sheetcalc/formula"
	"github.com/sheetcalc/sheetcalc/internal/graph"
)

// Spreadsheet is a set of named cells with dependency tracking and
// incremental recomputation.
type Spreadsheet struct {
	cells   map[string]*cell
	deps    *graph.Graph
	cfg     config
	logger  *slog.Logger
	changed bool
}

type cell struct {
	contents Contents
	value    Value
}

// New returns an empty spreadsheet.
func New(opts ...Option) *Spreadsheet {
	cfg := newConfig(opts)
	return &Spreadsheet{
		cells:  make(map[string]*cell),
		deps:   graph.New(),
		cfg:    cfg,
		logger: componentLogger(cfg.logger, "engine"),
	}
}

// Version returns the document version this spreadsheet was created with.
func (s *Spreadsheet) Version() string {
	return s.cfg.version
}

// Changed reports whether the spreadsheet has been modified since it was
// created, loaded, or last saved.
func (s *Spreadsheet) Changed() bool {
	return s.changed
}

// SetChanged sets the modification flag.
func (s *Spreadsheet) SetChanged(changed bool) {
	s.changed = changed
}

// SetContentsOfCell sets the contents of the named cell from raw text and
// recomputes every cell whose value may have changed.
//
// raw is classified as a number (optionally signed, surrounding whitespace
// allowed), a formula ('=' followed by a valid formula), or text. Empty text
// clears the cell.
//
// It returns the edited cell followed by every cell that directly or
// indirectly depends on it, each after all of its own dependees. It fails
// with *InvalidNameError for a bad name, *FormatError for a malformed
// formula, and *CircularError if the edit would make a cell depend on
// itself. On failure the spreadsheet is unchanged.
func (s *Spreadsheet) SetContentsOfCell(name, raw string) ([]string, error) {
	key, err := s.cellName(name)
	if err != nil {
		return nil, err
	}
	contents, err := s.classify(raw)
	if err != nil {
		return nil, err
	}
	return s.setContents(key, contents)
}

// GetCellContents returns the contents of the named cell. Cells that were
// never set have empty contents.
func (s *Spreadsheet) GetCellContents(name string) (Contents, error) {
	key, err := s.cellName(name)
	if err != nil {
		return Contents{}, err
	}
	if c, ok := s.cells[key]; ok {
		return c.contents, nil
	}
	return Contents{}, nil
}

// GetCellValue returns the computed value of the named cell. Cells that were
// never set have an empty value.
func (s *Spreadsheet) GetCellValue(name string) (Value, error) {
	key, err := s.cellName(name)
	if err != nil {
		return Value{}, err
	}
	if c, ok := s.cells[key]; ok {
		return c.value, nil
	}
	return Value{}, nil
}

// NonemptyCellNames returns the names of all cells with non-empty contents,
// sorted. Placeholders and cleared cells are not included.
func (s *Spreadsheet) NonemptyCellNames() []string {
	names := lo.Keys(lo.PickBy(s.cells, func(_ string, c *cell) bool {
		return !c.contents.IsEmpty()
	}))
	slices.Sort(names)
	return names
}

// DirectDependents returns the cells whose formulas reference the named
// cell, sorted.
func (s *Spreadsheet) DirectDependents(name string) []string {
	return s.deps.Dependents(s.cfg.normalize(name))
}

// cellName normalizes and validates a cell name.
func (s *Spreadsheet) cellName(name string) (string, error) {
	key := s.cfg.normalize(name)
	if !s.cfg.isValid(key) {
		return "", &InvalidNameError{Name: name}
	}
	return key, nil
}

// classify turns raw cell text into contents.
func (s *Spreadsheet) classify(raw string) (Contents, error) {
	if v, ok := parseNumber(raw); ok {
		return NumberContents(v), nil
	}
	if expr, ok := strings.CutPrefix(raw, "="); ok && expr != "" {
		f, err := formula.New(expr, s.cfg.normalize, s.cfg.isValid)
		if err != nil {
			return Contents{}, err
		}
		return FormulaContents(f), nil
	}
	return TextContents(raw), nil
}

// setContents stores contents under a normalized name, rolling back if the
// edit closes a cycle.
func (s *Spreadsheet) setContents(name string, contents Contents) ([]string, error) {
	prev, existed := s.cells[name]
	prevDependees := s.deps.Dependees(name)

	var (
		vars    []string
		created []string
	)
	if f, ok := contents.Formula(); ok {
		vars = f.Variables()
		for _, v := range vars {
			if _, ok := s.cells[v]; !ok {
				s.cells[v] = &cell{}
				created = append(created, v)
			}
		}
	}
	s.deps.ReplaceDependees(name, vars)

	next := &cell{contents: contents}
	if existed {
		next.value = prev.value
	}
	s.cells[name] = next

	v := s.closure(name)
	if v.cycle != nil {
		s.deps.ReplaceDependees(name, prevDependees)
		for _, p := range created {
			delete(s.cells, p)
		}
		if existed {
			s.cells[name] = prev
		} else {
			delete(s.cells, name)
		}
		if logEnabled(s.logger, slog.LevelDebug) {
			s.logger.LogAttrs(context.Background(), slog.LevelDebug, "circular reference, edit rolled back",
				slog.String("cell", name),
				slog.Any("path", v.cycle))
		}
		return nil, &CircularError{Cell: name, Path: v.cycle}
	}

	for _, d := range prevDependees {
		s.dropPlaceholder(d)
	}
	s.dropPlaceholder(name)

	s.recompute(v.order)
	s.changed = true

	if logEnabled(s.logger, slog.LevelDebug) {
		s.logger.LogAttrs(context.Background(), slog.LevelDebug, "cell set",
			slog.String("cell", name),
			slog.String("kind", contents.Kind().String()),
			slog.Int("placeholders", len(created)),
			slog.Int("affected", len(v.order)))
	}
	return v.order, nil
}

// dropPlaceholder deletes the entry for name if it has empty contents and
// nothing references it.
func (s *Spreadsheet) dropPlaceholder(name string) {
	c, ok := s.cells[name]
	if !ok || !c.contents.IsEmpty() || s.deps.HasDependents(name) {
		return
	}
	delete(s.cells, name)
	if logEnabled(s.logger, LevelTrace) {
		s.logger.LogAttrs(context.Background(), LevelTrace, "placeholder removed",
			slog.String("cell", name))
	}
}
