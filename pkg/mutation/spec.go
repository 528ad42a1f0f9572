// Package mutation builds the mutation specification handed to an external
// mutation-testing executor: one edge-deletion argument per causal edge and
// one edge-insertion argument per non-causal pair.
package mutation

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/store"
)

// Operator names understood by the executor.
const (
	OpDeleteEdge = "core/VariableReplacer"
	OpInsertEdge = "core/VariableInserter"
)

// Defaults for the executor section.
const (
	DefaultModulePath  = "program.py"
	DefaultTestCommand = "pytest test_program.py"
	DefaultTimeout     = 20.0
	DefaultDistributor = "local"
)

// Arg is a single operator argument naming one cause/effect pair.
type Arg struct {
	Cause  string `toml:"cause_variable" json:"cause_variable"`
	Effect string `toml:"effect_variable" json:"effect_variable"`
}

// Operator groups the arguments of one mutation operator.
type Operator struct {
	Name string `toml:"name" json:"name"`
	Args []Arg  `toml:"args" json:"args"`
}

// Distributor selects how the executor runs jobs.
type Distributor struct {
	Name string `toml:"name" json:"name"`
}

// Executor is the cosmic-ray table.
type Executor struct {
	ModulePath      string      `toml:"module-path" json:"module_path"`
	Timeout         float64     `toml:"timeout" json:"timeout"`
	ExcludedModules []string    `toml:"excluded-modules" json:"excluded_modules"`
	TestCommand     string      `toml:"test-command" json:"test_command"`
	Distributor     Distributor `toml:"distributor" json:"distributor"`
	Operators       []Operator  `toml:"operators" json:"operators"`
}

// Spec is the whole mutation configuration document.
type Spec struct {
	CosmicRay Executor `toml:"cosmic-ray" json:"cosmic_ray"`
}

// Options overrides the executor defaults.
type Options struct {
	ModulePath  string
	TestCommand string
	Timeout     float64
}

// FromGraph builds the specification for g. Deletion arguments follow
// g.Edges and insertion arguments follow g.NonCausalPairs, so both are
// deterministic.
func FromGraph(g *graph.Graph, opts Options) *Spec {
	if opts.ModulePath == "" {
		opts.ModulePath = DefaultModulePath
	}
	if opts.TestCommand == "" {
		opts.TestCommand = DefaultTestCommand
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	del := Operator{Name: OpDeleteEdge, Args: []Arg{}}
	for _, e := range g.Edges() {
		del.Args = append(del.Args, Arg{Cause: e.Cause.String(), Effect: e.Effect.String()})
	}
	ins := Operator{Name: OpInsertEdge, Args: []Arg{}}
	for _, e := range g.NonCausalPairs() {
		ins.Args = append(ins.Args, Arg{Cause: e.Cause.String(), Effect: e.Effect.String()})
	}

	return &Spec{CosmicRay: Executor{
		ModulePath:      opts.ModulePath,
		Timeout:         opts.Timeout,
		ExcludedModules: []string{},
		TestCommand:     opts.TestCommand,
		Distributor:     Distributor{Name: DefaultDistributor},
		Operators:       []Operator{del, ins},
	}}
}

// Count returns the number of arguments of the named operator.
func (s *Spec) Count(op string) int {
	n := 0
	for _, o := range s.CosmicRay.Operators {
		if o.Name == op {
			n += len(o.Args)
		}
	}
	return n
}

// MarshalTOML encodes the specification.
func (s *Spec) MarshalTOML() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode mutation spec: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalTOML decodes a specification document.
func UnmarshalTOML(data []byte) (*Spec, error) {
	var s Spec
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode mutation spec: %w", err)
	}
	return &s, nil
}

// Record wraps the encoded specification for storage.
func (s *Spec) Record(campaign string) (*store.MutationSpecRecord, error) {
	doc, err := s.MarshalTOML()
	if err != nil {
		return nil, err
	}
	return &store.MutationSpecRecord{
		Campaign:   campaign,
		Format:     "toml",
		Document:   doc,
		Deletions:  s.Count(OpDeleteEdge),
		Insertions: s.Count(OpInsertEdge),
	}, nil
}

// Job is one mutant: a single operator applied to a single pair.
type Job struct {
	ID       store.JobID
	Operator string
	Cause    graph.Node
	Effect   graph.Node
}

// Mutation is the stored description of the job.
func (j Job) Mutation() *store.Mutation {
	return &store.Mutation{Operator: j.Operator, Cause: j.Cause.String(), Effect: j.Effect.String()}
}

func (j Job) String() string {
	return fmt.Sprintf("%s(%s, %s)", j.Operator, j.Cause, j.Effect)
}

// Jobs enumerates the mutant jobs of the specification. Job ids are name
// based uuids of the campaign and the mutation, so re-running a campaign
// yields the same ids.
func (s *Spec) Jobs(campaign string) ([]Job, error) {
	ns := uuid.NewSHA1(uuid.NameSpaceURL, []byte("causalmr:"+campaign))
	var jobs []Job
	for _, op := range s.CosmicRay.Operators {
		for _, a := range op.Args {
			cause, err := graph.ParseNode(a.Cause)
			if err != nil {
				return nil, fmt.Errorf("operator %s: %w", op.Name, err)
			}
			effect, err := graph.ParseNode(a.Effect)
			if err != nil {
				return nil, fmt.Errorf("operator %s: %w", op.Name, err)
			}
			name := fmt.Sprintf("%s:%s:%s", op.Name, a.Cause, a.Effect)
			jobs = append(jobs, Job{
				ID:       store.JobID(uuid.NewSHA1(ns, []byte(name)).String()),
				Operator: op.Name,
				Cause:    cause,
				Effect:   effect,
			})
		}
	}
	return jobs, nil
}
