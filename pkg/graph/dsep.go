package graph

// DSeparated reports whether x and y are d-separated given z.
//
// It uses the moralised ancestral graph criterion: restrict g to the
// ancestors of {x, y} ∪ z, marry co-parents, drop directions, delete z and
// test whether x can still reach y.
func (g *Graph) DSeparated(x, y Node, z []Node) bool {
	if x == y {
		return false
	}
	given := make(map[Node]bool, len(z))
	for _, n := range z {
		given[n] = true
	}
	if given[x] || given[y] {
		return true
	}

	seeds := append([]Node{x, y}, z...)
	anc := g.ancestors(seeds)

	moral := make(map[Node]map[Node]struct{}, len(anc))
	link := func(a, b Node) {
		if moral[a] == nil {
			moral[a] = make(map[Node]struct{})
		}
		if moral[b] == nil {
			moral[b] = make(map[Node]struct{})
		}
		moral[a][b] = struct{}{}
		moral[b][a] = struct{}{}
	}
	for n := range anc {
		parents := g.Predecessors(n)
		for i, p := range parents {
			link(p, n)
			for _, q := range parents[i+1:] {
				link(p, q)
			}
		}
	}

	seen := map[Node]bool{x: true}
	queue := []Node{x}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range moral[cur] {
			if seen[next] || given[next] {
				continue
			}
			if next == y {
				return false
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return true
}

// ancestors returns seeds and every node with a directed path into them.
func (g *Graph) ancestors(seeds []Node) map[Node]struct{} {
	out := make(map[Node]struct{}, len(seeds))
	stack := make([]Node, 0, len(seeds))
	for _, s := range seeds {
		if !g.HasNode(s) {
			continue
		}
		if _, ok := out[s]; !ok {
			out[s] = struct{}{}
			stack = append(stack, s)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for p := range g.vertices[n].preds {
			if _, ok := out[p]; !ok {
				out[p] = struct{}{}
				stack = append(stack, p)
			}
		}
	}
	return out
}

// Ancestors returns the proper ancestors of n in node order.
func (g *Graph) Ancestors(n Node) []Node {
	anc := g.ancestors([]Node{n})
	delete(anc, n)
	return sortedKeys(anc)
}
