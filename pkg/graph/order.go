package graph

// CanonicalOrder returns every node in a deterministic topological order:
// sources by ascending index, then sinks, preferring intermediate sinks
// (those with children) over terminal sinks and lower indices first.
//
// For generated DAGs this is the order in which a synthesized program
// assigns its outputs. It panics if g is cyclic.
func (g *Graph) CanonicalOrder() []Node {
	less := func(a, b Node) bool {
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.Role == RoleSink {
			at, bt := g.OutDegree(a) == 0, g.OutDegree(b) == 0
			if at != bt {
				return !at
			}
		}
		return a.Index < b.Index
	}
	order := g.topoOrder(less)
	if len(order) != len(g.vertices) {
		Violate(g, "acyclicity", "canonical order requested for cyclic graph: %v", cycleError(g.findCycle()))
	}
	// A source with parents only exists in an invalid graph; keep sources
	// first anyway so pair orientation never points into a source.
	out := make([]Node, 0, len(order))
	for _, n := range order {
		if n.Role == RoleSource {
			out = append(out, n)
		}
	}
	for _, n := range order {
		if n.Role == RoleSink {
			out = append(out, n)
		}
	}
	return out
}

// Position maps each node to its index in CanonicalOrder.
func (g *Graph) Position() map[Node]int {
	pos := make(map[Node]int, len(g.vertices))
	for i, n := range g.CanonicalOrder() {
		pos[n] = i
	}
	return pos
}

// NonCausalPairs lists the ordered pairs (earlier, later) in canonical
// order that share no edge in either direction, excluding source-source
// pairs. Adding any subset of them as edges keeps CanonicalOrder a
// topological order, so the result stays acyclic.
func (g *Graph) NonCausalPairs() []Edge {
	order := g.CanonicalOrder()
	var out []Edge
	for i, a := range order {
		for _, b := range order[i+1:] {
			if a.Role == RoleSource && b.Role == RoleSource {
				continue
			}
			if g.HasEdge(a, b) || g.HasEdge(b, a) {
				continue
			}
			out = append(out, Edge{Cause: a, Effect: b})
		}
	}
	return out
}
