// Package graph provides the dependency relation between spreadsheet cells.
//
// A Graph is a set of ordered pairs (s, t) meaning "t depends on s": s is the
// dependee and must be evaluated before t, the dependent. The relation is held
// as two independent adjacency maps, one per direction, that are kept
// consistent by every mutation. Keys are plain strings; the graph never holds
// references to cell data.
//
// All operations are total: unknown keys yield empty results, never errors.
package graph

import (
	"fmt"
	"maps"
	"slices"
)

type set map[string]struct{}

// Graph is a many-to-many dependency relation over string keys.
type Graph struct {
	dependents map[string]set // dependee -> dependents
	dependees  map[string]set // dependent -> dependees
	size       int
}

// New returns a graph with no pairs.
func New() *Graph {
	return &Graph{
		dependents: make(map[string]set),
		dependees:  make(map[string]set),
	}
}

// Size returns the number of ordered pairs in the graph.
func (g *Graph) Size() int {
	return g.size
}

// DependeeCount returns the number of dependees of s.
func (g *Graph) DependeeCount(s string) int {
	return len(g.dependees[s])
}

// HasDependents reports whether s has at least one dependent.
func (g *Graph) HasDependents(s string) bool {
	return len(g.dependents[s]) > 0
}

// HasDependees reports whether s has at least one dependee.
func (g *Graph) HasDependees(s string) bool {
	return len(g.dependees[s]) > 0
}

// Dependents returns the dependents of s, sorted. The slice is a copy.
func (g *Graph) Dependents(s string) []string {
	return sortedKeys(g.dependents[s])
}

// Dependees returns the dependees of s, sorted. The slice is a copy.
func (g *Graph) Dependees(s string) []string {
	return sortedKeys(g.dependees[s])
}

// AddDependency adds the pair (s, t). Adding an existing pair is a no-op.
func (g *Graph) AddDependency(s, t string) {
	if _, ok := g.dependents[s][t]; ok {
		return
	}
	link(g.dependents, s, t)
	link(g.dependees, t, s)
	g.size++
}

// RemoveDependency removes the pair (s, t). Removing an absent pair is a no-op.
func (g *Graph) RemoveDependency(s, t string) {
	if _, ok := g.dependents[s][t]; !ok {
		return
	}
	unlink(g.dependents, s, t)
	unlink(g.dependees, t, s)
	g.size--
}

// ReplaceDependents removes every pair (s, r) and then adds (s, t) for each t
// in newDependents.
func (g *Graph) ReplaceDependents(s string, newDependents []string) {
	for _, r := range g.Dependents(s) {
		g.RemoveDependency(s, r)
	}
	for _, t := range newDependents {
		g.AddDependency(s, t)
	}
}

// ReplaceDependees removes every pair (r, t) and then adds (s, t) for each s
// in newDependees.
func (g *Graph) ReplaceDependees(t string, newDependees []string) {
	for _, r := range g.Dependees(t) {
		g.RemoveDependency(r, t)
	}
	for _, s := range newDependees {
		g.AddDependency(s, t)
	}
}

// Keys returns every key that appears in at least one pair, sorted.
func (g *Graph) Keys() []string {
	keys := make(set, len(g.dependents)+len(g.dependees))
	for k := range g.dependents {
		keys[k] = struct{}{}
	}
	for k := range g.dependees {
		keys[k] = struct{}{}
	}
	return sortedKeys(keys)
}

// Validate checks that both adjacency maps describe the same pairs, that no
// empty adjacency entries are retained, and that the size counter matches.
func (g *Graph) Validate() error {
	forward := 0
	for s, ts := range g.dependents {
		if len(ts) == 0 {
			return fmt.Errorf("empty dependents entry for %q", s)
		}
		for t := range ts {
			if _, ok := g.dependees[t][s]; !ok {
				return fmt.Errorf("pair (%q, %q) missing from dependees", s, t)
			}
			forward++
		}
	}
	reverse := 0
	for t, ss := range g.dependees {
		if len(ss) == 0 {
			return fmt.Errorf("empty dependees entry for %q", t)
		}
		for s := range ss {
			if _, ok := g.dependents[s][t]; !ok {
				return fmt.Errorf("pair (%q, %q) missing from dependents", s, t)
			}
			reverse++
		}
	}
	if forward != reverse || forward != g.size {
		return fmt.Errorf("size %d does not match %d forward and %d reverse pairs", g.size, forward, reverse)
	}
	return nil
}

func link(m map[string]set, from, to string) {
	s, ok := m[from]
	if !ok {
		s = make(set)
		m[from] = s
	}
	s[to] = struct{}{}
}

func unlink(m map[string]set, from, to string) {
	s := m[from]
	delete(s, to)
	if len(s) == 0 {
		delete(m, from)
	}
}

func sortedKeys(s set) []string {
	if len(s) == 0 {
		return []string{}
	}
	return slices.Sorted(maps.Keys(s))
}
