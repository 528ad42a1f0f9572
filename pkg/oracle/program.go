package oracle

import (
	"context"

	"github.com/rmax-ai/causalmr/pkg/graph"
)

// Outputs maps each sink to its computed value.
type Outputs map[graph.Node]float64

// Program is a candidate program under test. Inputs hold one value per
// source; a sink present in inputs is an intervention and must be returned
// unchanged in the outputs.
type Program interface {
	Run(ctx context.Context, inputs map[graph.Node]int) (Outputs, error)
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx context.Context, inputs map[graph.Node]int) (Outputs, error)

func (f ProgramFunc) Run(ctx context.Context, inputs map[graph.Node]int) (Outputs, error) {
	return f(ctx, inputs)
}
