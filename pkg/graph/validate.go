package graph

import (
	"container/heap"
)

// Validate checks the structural invariants of a causal DAG: no edge into
// a source and no cycle.
func (g *Graph) Validate() error {
	for _, e := range g.Edges() {
		if e.Effect.Role == RoleSource {
			if e.Cause.Role == RoleSource {
				return invalidf("source %s cannot cause source %s", e.Cause, e.Effect)
			}
			return invalidf("sink %s cannot cause source %s", e.Cause, e.Effect)
		}
		if e.Cause == e.Effect {
			return cycleError([]Node{e.Cause, e.Effect})
		}
	}
	if order := g.topoOrder(nil); len(order) != len(g.vertices) {
		return cycleError(g.findCycle())
	}
	return nil
}

// IsAcyclic reports whether g has no directed cycle.
func (g *Graph) IsAcyclic() bool {
	return len(g.topoOrder(nil)) == len(g.vertices)
}

// MustValidate panics with an InvariantViolation if Validate fails.
func (g *Graph) MustValidate(context string) {
	if err := g.Validate(); err != nil {
		Violate(g, "causal DAG structure", "%s: %v", context, err)
	}
}

type nodeHeap struct {
	nodes []Node
	less  func(a, b Node) bool
}

func (h *nodeHeap) Len() int           { return len(h.nodes) }
func (h *nodeHeap) Less(i, j int) bool { return h.less(h.nodes[i], h.nodes[j]) }
func (h *nodeHeap) Swap(i, j int)      { h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i] }
func (h *nodeHeap) Push(x any)         { h.nodes = append(h.nodes, x.(Node)) }
func (h *nodeHeap) Pop() any {
	old := h.nodes
	n := len(old)
	x := old[n-1]
	h.nodes = old[:n-1]
	return x
}

// topoOrder runs Kahn's algorithm with a priority queue so the order is
// deterministic. less defaults to Node.Less. A result shorter than the node
// count means g has a cycle.
func (g *Graph) topoOrder(less func(a, b Node) bool) []Node {
	if less == nil {
		less = func(a, b Node) bool { return a.Less(b) }
	}
	indeg := make(map[Node]int, len(g.vertices))
	ready := &nodeHeap{less: less}
	for n, v := range g.vertices {
		indeg[n] = len(v.preds)
		if indeg[n] == 0 {
			ready.nodes = append(ready.nodes, n)
		}
	}
	heap.Init(ready)

	out := make([]Node, 0, len(g.vertices))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(Node)
		out = append(out, n)
		for s := range g.vertices[n].succs {
			indeg[s]--
			if indeg[s] == 0 {
				heap.Push(ready, s)
			}
		}
	}
	return out
}

// findCycle returns one cycle as a closed path, or nil.
func (g *Graph) findCycle() []Node {
	const (
		white = iota
		gray
		black
	)
	color := make(map[Node]int, len(g.vertices))
	parent := make(map[Node]Node, len(g.vertices))
	var cycle []Node

	var dfs func(u Node) bool
	dfs = func(u Node) bool {
		color[u] = gray
		for _, v := range g.Successors(u) {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				path := []Node{u}
				for cur := u; cur != v; {
					cur = parent[cur]
					path = append(path, cur)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				cycle = append(path, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for _, n := range g.Nodes() {
		if color[n] == white && dfs(n) {
			break
		}
	}
	return cycle
}
