package generator

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rmax-ai/causalmr/pkg/graph"
)

// ErrInvalidOptions is returned when generation parameters are out of range.
var ErrInvalidOptions = errors.New("invalid generator options")

// Options controls random DAG generation.
type Options struct {
	Nodes        int     `yaml:"nodes" json:"nodes" validate:"min=1"`
	PEdge        float64 `yaml:"p_edge" json:"p_edge" validate:"min=0,max=1"`
	PConditional float64 `yaml:"p_conditional" json:"p_conditional" validate:"min=0,max=1"`
}

func (o Options) validate() error {
	if o.Nodes < 1 {
		return fmt.Errorf("%w: nodes must be positive, got %d", ErrInvalidOptions, o.Nodes)
	}
	if o.PEdge < 0 || o.PEdge > 1 {
		return fmt.Errorf("%w: p_edge %v not in [0,1]", ErrInvalidOptions, o.PEdge)
	}
	if o.PConditional < 0 || o.PConditional > 1 {
		return fmt.Errorf("%w: p_conditional %v not in [0,1]", ErrInvalidOptions, o.PConditional)
	}
	return nil
}

// Generate samples a causal DAG over opts.Nodes variables.
//
// Every ordered pair of anonymous nodes gets an edge with probability
// opts.PEdge; edges pointing to a lower anonymous index are discarded, which
// makes the result acyclic by construction. Nodes left with no parents are
// sources, the rest are sinks, each relabelled in ascending anonymous order.
// Non-terminal sinks are then marked conditional with probability
// opts.PConditional. The result depends only on opts and the rng state.
func Generate(rng *rand.Rand, opts Options) (*graph.Graph, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n := opts.Nodes

	// Draws happen for all ordered pairs, descending ones included, so the
	// random stream matches a full directed Erdős–Rényi sample.
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	indeg := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if rng.Float64() < opts.PEdge && i < j {
				adj[i][j] = true
				indeg[j]++
			}
		}
	}

	label := make([]graph.Node, n)
	sources, sinks := 0, 0
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			sources++
			label[i] = graph.Source(sources)
		} else {
			sinks++
			label[i] = graph.Sink(sinks)
		}
	}

	g := graph.New()
	for i := 0; i < n; i++ {
		g.AddNode(label[i], graph.KindNumerical)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if adj[i][j] {
				g.AddEdge(label[i], label[j])
			}
		}
	}

	for _, s := range g.NodesByRole(graph.RoleSink) {
		if g.OutDegree(s) == 0 {
			continue
		}
		if rng.Float64() < opts.PConditional {
			g.SetKind(s, graph.KindConditional)
		}
	}

	g.MustValidate("after generation")
	return g, nil
}
