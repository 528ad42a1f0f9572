package generator

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rmax-ai/causalmr/pkg/graph"
)

// DefaultLevels are the p_invert values used to build misspecified DAGs.
var DefaultLevels = []float64{0.25, 0.5, 0.75, 1}

// Togglable lists the edges of g followed by its non-causal pairs. These
// are the only structural changes Mutate ever makes.
func Togglable(g *graph.Graph) []graph.Edge {
	return append(g.Edges(), g.NonCausalPairs()...)
}

// Mutate returns a copy of g in which each existing edge and each
// non-causal pair is toggled with probability pInvert. The input graph is
// left untouched.
//
// The togglable set is computed once from g, so an edge removed early is
// never re-added by the same call. Non-causal pairs are oriented along
// g's canonical order, which keeps the result acyclic; the invariant is
// asserted anyway.
func Mutate(g *graph.Graph, pInvert float64, rng *rand.Rand) *graph.Graph {
	out := g.Clone()
	for _, e := range Togglable(g) {
		if rng.Float64() >= pInvert {
			continue
		}
		if out.HasEdge(e.Cause, e.Effect) {
			out.RemoveEdge(e.Cause, e.Effect)
		} else {
			out.AddEdge(e.Cause, e.Effect)
		}
	}
	out.MustValidate(fmt.Sprintf("after mutation with p_invert=%v", pInvert))
	return out
}

// Misspecified is one perturbed DAG and its distance from the original.
type Misspecified struct {
	PInvert float64
	Graph   *graph.Graph
	SHD     int
}

// Metadata is the graph-file comment payload for a misspecified DAG.
func (m Misspecified) Metadata(seed int64) graph.Metadata {
	return graph.Metadata{
		"p_invert": m.PInvert,
		"seed":     seed,
		"shd":      m.SHD,
	}
}

// Dir is the directory name used for the level, e.g. misspecified_dag_25.
func (m Misspecified) Dir() string {
	return fmt.Sprintf("misspecified_dag_%d", int(math.Round(m.PInvert*100)))
}

// Misspecify builds one mutated copy of g per level. Every level starts
// from a generator seeded with seed, so levels differ only in pInvert.
func Misspecify(g *graph.Graph, levels []float64, seed int64) []Misspecified {
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	out := make([]Misspecified, 0, len(levels))
	for _, p := range levels {
		m := Mutate(g, p, rand.New(rand.NewSource(seed)))
		out = append(out, Misspecified{
			PInvert: p,
			Graph:   m,
			SHD:     graph.StructuralHammingDistance(g, m),
		})
	}
	return out
}
