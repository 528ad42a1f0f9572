package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid causal graph")
	ErrCycle        = errors.New("cycle detected")
)

// GraphError wraps a structural validation failure.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []Node) error {
	names := make([]string, len(path))
	for i, n := range path {
		names[i] = n.String()
	}
	return &GraphError{Kind: ErrCycle, Msg: strings.Join(names, " -> ")}
}

// InvariantViolation is the panic value for broken structural invariants:
// a cycle after mutation, a failed d-separation check, a duplicate or
// missing relation. These indicate a defect in the generator or deriver and
// are never recovered from inside the pipeline.
type InvariantViolation struct {
	Invariant string
	Detail    string
	Graph     string
}

func (v *InvariantViolation) Error() string {
	msg := fmt.Sprintf("invariant violated: %s: %s", v.Invariant, v.Detail)
	if v.Graph != "" {
		msg += "\ngraph: " + v.Graph
	}
	return msg
}

// Violate panics with an InvariantViolation describing g.
func Violate(g *Graph, invariant, format string, args ...any) {
	v := &InvariantViolation{
		Invariant: invariant,
		Detail:    fmt.Sprintf(format, args...),
	}
	if g != nil {
		v.Graph = g.Summary()
	}
	panic(v)
}

// Summary is a one-line rendering of the edge list used in error context.
func (g *Graph) Summary() string {
	var b strings.Builder
	b.WriteString("{")
	for i, n := range g.Nodes() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(n.String())
	}
	b.WriteString("} [")
	for i, e := range g.Edges() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteString("]")
	return b.String()
}
