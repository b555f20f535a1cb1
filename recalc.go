package sheetcalc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// visit is the outcome of walking dependents from an edited cell. Exactly
// one of order and cycle is set.
type visit struct {
	order []string // closure, edited cell first, dependees before dependents
	cycle []string // path from the edited cell to the repeated cell
}

// closure walks direct dependents depth first from start. Dependents are
// visited in sorted order so the result is deterministic. A dependent that
// is already on the current path ends the walk with a cycle.
func (s *Spreadsheet) closure(start string) visit {
	var (
		done   = make(map[string]bool)
		onPath = make(map[string]bool)
		path   []string
		post   []string
		cycle  []string
	)

	var walk func(name string) bool
	walk = func(name string) bool {
		onPath[name] = true
		path = append(path, name)
		for _, dep := range s.deps.Dependents(name) {
			if onPath[dep] {
				cycle = append(slices.Clone(path), dep)
				return false
			}
			if done[dep] {
				continue
			}
			if !walk(dep) {
				return false
			}
		}
		onPath[name] = false
		path = path[:len(path)-1]
		done[name] = true
		post = append(post, name)
		return true
	}

	if !walk(start) {
		return visit{cycle: cycle}
	}
	slices.Reverse(post)
	return visit{order: post}
}

// recompute refreshes the cached value of each named cell, in order.
func (s *Spreadsheet) recompute(order []string) {
	for _, name := range order {
		c, ok := s.cells[name]
		if !ok {
			continue
		}
		switch c.contents.Kind() {
		case ContentFormula:
			c.value = valueFromResult(c.contents.formula.Evaluate(s.lookup))
		case ContentEmpty, ContentNumber, ContentText:
			c.value = valueOf(c.contents)
		}
		if logEnabled(s.logger, LevelTrace) {
			s.logger.LogAttrs(context.Background(), LevelTrace, "recomputed",
				slog.String("cell", name),
				slog.String("value", c.value.String()))
		}
	}
}

// lookup returns the numeric value of a referenced cell for formula
// evaluation.
func (s *Spreadsheet) lookup(name string) (float64, error) {
	c, ok := s.cells[name]
	if !ok {
		return 0, fmt.Errorf("cell %s is empty", name)
	}
	switch c.value.Kind() {
	case ValueNumber:
		return c.value.num, nil
	case ValueText:
		return 0, fmt.Errorf("cell %s contains text", name)
	case ValueError:
		return 0, errors.New(c.value.err.Reason)
	default:
		return 0, fmt.Errorf("cell %s is empty", name)
	}
}

// RecalculateAll recomputes the value of every cell, dependees first, and
// returns the names of the formula cells in the order they were evaluated.
func (s *Spreadsheet) RecalculateAll() []string {
	order, cyclic := s.deps.Order()
	if len(cyclic) > 0 && logEnabled(s.logger, slog.LevelWarn) {
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "cells on a cycle skipped",
			slog.Any("cells", cyclic))
	}

	inGraph := make(map[string]bool, len(order)+len(cyclic))
	for _, name := range order {
		inGraph[name] = true
	}
	for _, name := range cyclic {
		inGraph[name] = true
	}
	var rest []string
	for name := range s.cells {
		if !inGraph[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	order = append(rest, order...)

	s.recompute(order)

	var evaluated []string
	for _, name := range order {
		if c, ok := s.cells[name]; ok && c.contents.Kind() == ContentFormula {
			evaluated = append(evaluated, name)
		}
	}
	if logEnabled(s.logger, slog.LevelDebug) {
		s.logger.LogAttrs(context.Background(), slog.LevelDebug, "recalculated",
			slog.Int("cells", len(order)),
			slog.Int("formulas", len(evaluated)))
	}
	return evaluated
}

// Verify checks the internal consistency of the spreadsheet: the dependency
// graph is well formed and acyclic, every formula cell's dependees are
// exactly its variables, every referenced cell has an entry, and no
// placeholder is left without dependents.
func (s *Spreadsheet) Verify() error {
	if err := s.deps.Validate(); err != nil {
		return fmt.Errorf("dependency graph: %w", err)
	}
	if cycles := s.deps.Cycles(); len(cycles) > 0 {
		return fmt.Errorf("dependency graph has %d cycle(s), first %v", len(cycles), cycles[0])
	}
	for _, key := range s.deps.Keys() {
		if _, ok := s.cells[key]; !ok {
			return fmt.Errorf("cell %s is in the dependency graph but has no entry", key)
		}
	}
	for name, c := range s.cells {
		var want []string
		if f, ok := c.contents.Formula(); ok {
			want = f.Variables()
		}
		if got := s.deps.Dependees(name); !slices.Equal(want, got) && (len(want) > 0 || len(got) > 0) {
			return fmt.Errorf("cell %s references %v but depends on %v", name, want, got)
		}
		if c.contents.IsEmpty() && !s.deps.HasDependents(name) {
			return fmt.Errorf("placeholder %s has no dependents", name)
		}
	}
	return nil
}
