package relation

import (
	"github.com/rmax-ai/causalmr/pkg/graph"
)

// ExpectedCount is the number of relations Derive produces for g: every
// unordered pair of nodes except source-source pairs.
func ExpectedCount(g *graph.Graph) int {
	n := g.NumNodes()
	k := len(g.NodesByRole(graph.RoleSource))
	return n*(n-1)/2 - k*(k-1)/2
}

// Derive emits exactly one relation per unordered pair of nodes, skipping
// source-source pairs. Pairs are visited along g's canonical order, so the
// earlier node is the cause of a ShouldNotCause relation.
//
// The adjustment set of {a, b} is pa(a) ∪ pa(b) minus a and b. For
// ShouldNotCause relations it is checked to d-separate the pair. A failed
// check, a duplicate pair or a wrong relation count panics with a
// *graph.InvariantViolation naming the pair and the DAG.
func Derive(g *graph.Graph) []Relation {
	g.MustValidate("before relation derivation")

	order := g.CanonicalOrder()
	seen := make(map[[2]graph.Node]bool)
	var out []Relation

	for i, a := range order {
		for _, b := range order[i+1:] {
			if a.Role == graph.RoleSource && b.Role == graph.RoleSource {
				continue
			}
			key := pairKey(a, b)
			if seen[key] {
				graph.Violate(g, "unique relation per pair", "pair {%s, %s} visited twice", a, b)
			}
			seen[key] = true

			adj := adjustmentSet(g, a, b)
			switch {
			case g.HasEdge(a, b):
				out = append(out, Relation{Cause: a, Effect: b, Kind: ShouldCause, Adjustment: adj})
			case g.HasEdge(b, a):
				out = append(out, Relation{Cause: b, Effect: a, Kind: ShouldCause, Adjustment: adj})
			default:
				if !g.DSeparated(a, b, adj) {
					graph.Violate(g, "d-separation",
						"adjustment set %v does not d-separate %s and %s", adj, a, b)
				}
				out = append(out, Relation{Cause: a, Effect: b, Kind: ShouldNotCause, Adjustment: adj})
			}
		}
	}

	if want := ExpectedCount(g); len(out) != want {
		graph.Violate(g, "relation completeness", "derived %d relations, expected %d", len(out), want)
	}
	return out
}

func adjustmentSet(g *graph.Graph, a, b graph.Node) []graph.Node {
	set := make(map[graph.Node]struct{})
	for _, p := range g.Predecessors(a) {
		set[p] = struct{}{}
	}
	for _, p := range g.Predecessors(b) {
		set[p] = struct{}{}
	}
	delete(set, a)
	delete(set, b)

	out := make([]graph.Node, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	graph.SortNodes(out)
	return out
}

func pairKey(a, b graph.Node) [2]graph.Node {
	if b.Less(a) {
		a, b = b, a
	}
	return [2]graph.Node{a, b}
}

// Index maps each relation ID to its relation.
func Index(rels []Relation) map[string]Relation {
	out := make(map[string]Relation, len(rels))
	for _, r := range rels {
		out[r.ID()] = r
	}
	return out
}
