package graph

import "slices"

// Order returns every key with dependees before their dependents (Kahn's
// algorithm). Ties are broken by name so the order is deterministic. Keys on
// or downstream of a cycle cannot be ordered and are returned sorted in the
// second slice.
func (g *Graph) Order() (order []string, cyclic []string) {
	keys := g.Keys()
	inDegree := make(map[string]int, len(keys))
	var ready []string
	for _, k := range keys {
		inDegree[k] = len(g.dependees[k])
		if inDegree[k] == 0 {
			ready = append(ready, k)
		}
	}

	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		order = append(order, k)

		var next []string
		for _, dep := range g.Dependents(k) {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				next = append(next, dep)
			}
		}
		ready = append(ready, next...)
		slices.Sort(ready)
	}

	for _, k := range keys {
		if inDegree[k] > 0 {
			cyclic = append(cyclic, k)
		}
	}
	return order, cyclic
}
