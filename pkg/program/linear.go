// Package program provides concrete candidate programs: a linear structural
// program that can be synthesized from a DAG and mutated edge by edge, and
// a subprocess adapter for black-box programs.
package program

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/mutation"
	"github.com/rmax-ai/causalmr/pkg/oracle"
)

var (
	// ErrMissingInput is returned when a source has no value.
	ErrMissingInput = errors.New("missing source input")
	// ErrCyclicProgram is returned when equations depend on each other.
	ErrCyclicProgram = errors.New("cyclic program")
	// ErrNoSuchTerm is returned when deleting an edge the program lacks.
	ErrNoSuchTerm = errors.New("no such term")
	// ErrTermExists is returned when inserting an edge the program
	// already has.
	ErrTermExists = errors.New("term already exists")
)

// Term is coef * parent.
type Term struct {
	Parent string `yaml:"parent"`
	Coef   int    `yaml:"coef"`
}

// Equation defines one sink as constant + Σ terms. A conditional sink
// takes the absolute value of the sum.
type Equation struct {
	Sink        string `yaml:"sink"`
	Constant    int    `yaml:"constant"`
	Terms       []Term `yaml:"terms,omitempty"`
	Conditional bool   `yaml:"conditional,omitempty"`
}

// Linear is a structural program over integer sources.
type Linear struct {
	Name      string     `yaml:"name"`
	Sources   []string   `yaml:"sources"`
	Equations []Equation `yaml:"equations"`
}

var _ oracle.Program = (*Linear)(nil)

// Synthesize builds a linear program for g: every sink gets a random
// constant and a non-zero coefficient per parent, in canonical order.
func Synthesize(g *graph.Graph, rng *rand.Rand) *Linear {
	p := &Linear{Name: "program"}
	for _, s := range g.NodesByRole(graph.RoleSource) {
		p.Sources = append(p.Sources, s.String())
	}
	for _, n := range g.CanonicalOrder() {
		if n.Role != graph.RoleSink {
			continue
		}
		eq := Equation{
			Sink:        n.String(),
			Constant:    rng.Intn(21) - 10,
			Conditional: g.Kind(n) == graph.KindConditional,
		}
		for _, parent := range g.Predecessors(n) {
			eq.Terms = append(eq.Terms, Term{Parent: parent.String(), Coef: nonZero(rng)})
		}
		p.Equations = append(p.Equations, eq)
	}
	return p
}

func nonZero(rng *rand.Rand) int {
	c := rng.Intn(10) + 1 // 1..10
	if rng.Intn(2) == 0 {
		return -c
	}
	return c
}

// Run evaluates the program. Every source must be supplied; a sink
// present in inputs is an intervention and its equation is skipped.
func (p *Linear) Run(ctx context.Context, inputs map[graph.Node]int) (oracle.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := make(map[string]float64, len(p.Sources)+len(p.Equations))
	for _, name := range p.Sources {
		n, err := graph.ParseNode(name)
		if err != nil {
			return nil, err
		}
		v, ok := inputs[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, name)
		}
		values[name] = float64(v)
	}

	eqs := make(map[string]*Equation, len(p.Equations))
	for i := range p.Equations {
		eq := &p.Equations[i]
		n, err := graph.ParseNode(eq.Sink)
		if err != nil {
			return nil, err
		}
		if v, ok := inputs[n]; ok {
			values[eq.Sink] = float64(v)
			continue
		}
		eqs[eq.Sink] = eq
	}

	visiting := make(map[string]bool)
	var eval func(name string) (float64, error)
	eval = func(name string) (float64, error) {
		if v, ok := values[name]; ok {
			return v, nil
		}
		eq, ok := eqs[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingInput, name)
		}
		if visiting[name] {
			return 0, fmt.Errorf("%w: through %s", ErrCyclicProgram, name)
		}
		visiting[name] = true
		sum := float64(eq.Constant)
		for _, t := range eq.Terms {
			v, err := eval(t.Parent)
			if err != nil {
				return 0, err
			}
			sum += float64(t.Coef) * v
		}
		if eq.Conditional {
			sum = math.Abs(sum)
		}
		values[name] = sum
		return sum, nil
	}

	out := make(oracle.Outputs, len(p.Equations))
	for _, eq := range p.Equations {
		v, err := eval(eq.Sink)
		if err != nil {
			return nil, err
		}
		n, _ := graph.ParseNode(eq.Sink)
		out[n] = v
	}
	return out, nil
}

// Clone returns an independent copy.
func (p *Linear) Clone() *Linear {
	c := &Linear{Name: p.Name, Sources: append([]string(nil), p.Sources...)}
	c.Equations = make([]Equation, len(p.Equations))
	for i, eq := range p.Equations {
		eq.Terms = append([]Term(nil), eq.Terms...)
		c.Equations[i] = eq
	}
	return c
}

func (p *Linear) equation(sink graph.Node) (int, error) {
	for i, eq := range p.Equations {
		if eq.Sink == sink.String() {
			return i, nil
		}
	}
	return -1, fmt.Errorf("no equation for %s", sink)
}

// DeleteEdge returns a copy in which effect no longer depends on cause.
func (p *Linear) DeleteEdge(cause, effect graph.Node) (*Linear, error) {
	c := p.Clone()
	i, err := c.equation(effect)
	if err != nil {
		return nil, err
	}
	eq := &c.Equations[i]
	for j, t := range eq.Terms {
		if t.Parent == cause.String() {
			eq.Terms = append(eq.Terms[:j], eq.Terms[j+1:]...)
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrNoSuchTerm, cause, effect)
}

// InsertEdge returns a copy in which effect also depends on cause with the
// given coefficient. Inserting an existing term fails with ErrTermExists.
func (p *Linear) InsertEdge(cause, effect graph.Node, coef int) (*Linear, error) {
	if coef == 0 {
		return nil, fmt.Errorf("insert %s -> %s: coefficient must be non-zero", cause, effect)
	}
	c := p.Clone()
	i, err := c.equation(effect)
	if err != nil {
		return nil, err
	}
	eq := &c.Equations[i]
	for _, t := range eq.Terms {
		if t.Parent == cause.String() {
			return nil, fmt.Errorf("%w: %s -> %s (coef %d)", ErrTermExists, cause, effect, t.Coef)
		}
	}
	eq.Terms = append(eq.Terms, Term{Parent: cause.String(), Coef: coef})
	return c, nil
}

// Apply returns the mutant of p described by job.
func (p *Linear) Apply(job mutation.Job) (*Linear, error) {
	switch job.Operator {
	case mutation.OpDeleteEdge:
		return p.DeleteEdge(job.Cause, job.Effect)
	case mutation.OpInsertEdge:
		return p.InsertEdge(job.Cause, job.Effect, 1)
	default:
		return nil, fmt.Errorf("unsupported mutation operator %q", job.Operator)
	}
}

// Mutant is Apply behind the oracle.Program interface.
func (p *Linear) Mutant(job mutation.Job) (oracle.Program, error) {
	m, err := p.Apply(job)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Marshal encodes the program as YAML.
func (p *Linear) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Parse decodes a YAML program.
func Parse(data []byte) (*Linear, error) {
	var p Linear
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	for _, s := range p.Sources {
		if _, err := graph.ParseNode(s); err != nil {
			return nil, err
		}
	}
	for _, eq := range p.Equations {
		if _, err := graph.ParseNode(eq.Sink); err != nil {
			return nil, err
		}
		for _, t := range eq.Terms {
			if _, err := graph.ParseNode(t.Parent); err != nil {
				return nil, err
			}
		}
	}
	return &p, nil
}

// Load reads a YAML program from path.
func Load(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	return Parse(data)
}
