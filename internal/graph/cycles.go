package graph

import "slices"

// Cycles returns every strongly connected component, following dependee to
// dependent edges, that has more than one node or a single node with a
// self-loop. Found via Tarjan's algorithm. Nodes are visited in sorted order
// and each cycle is sorted, so the result is deterministic.
func (g *Graph) Cycles() [][]string {
	var (
		index    int
		stack    []string
		onStack  = make(map[string]bool)
		indices  = make(map[string]int)
		lowlinks = make(map[string]int)
		sccs     [][]string
	)

	var strongConnect func(key string)
	strongConnect = func(key string) {
		indices[key] = index
		lowlinks[key] = index
		index++
		stack = append(stack, key)
		onStack[key] = true

		for _, dep := range g.Dependents(key) {
			if _, visited := indices[dep]; !visited {
				strongConnect(dep)
				lowlinks[key] = min(lowlinks[key], lowlinks[dep])
			} else if onStack[dep] {
				lowlinks[key] = min(lowlinks[key], indices[dep])
			}
		}

		if lowlinks[key] == indices[key] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == key {
					break
				}
			}
			if len(scc) > 1 {
				slices.Sort(scc)
				sccs = append(sccs, scc)
			} else if _, self := g.dependents[key][key]; self {
				sccs = append(sccs, scc)
			}
		}
	}

	for _, key := range g.Keys() {
		if _, visited := indices[key]; !visited {
			strongConnect(key)
		}
	}

	return sccs
}

// HasCycles reports whether the graph contains any cycles.
func (g *Graph) HasCycles() bool {
	return len(g.Cycles()) > 0
}
