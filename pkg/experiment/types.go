package experiment

import (
	"github.com/rmax-ai/causalmr/pkg/campaign"
	"github.com/rmax-ai/causalmr/pkg/generator"
	"github.com/rmax-ai/causalmr/pkg/mutation"
	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/sampler"
	"github.com/rmax-ai/causalmr/pkg/score"
)

const defaultMaxAttempts = 10

// Options configures an experiment.
type Options struct {
	// Seed is the master seed every DAG seed is drawn from.
	Seed      int64
	DAGs      int
	Generator generator.Options
	// Tests and Range configure relation sampling; the sampling seed of
	// each DAG is its own seed.
	Tests    int
	Range    sampler.Range
	Levels   []float64
	Mutation mutation.Options
	Mode     oracle.Mode
	// Workers bounds concurrency both across DAGs and across the mutants
	// of one campaign.
	Workers int
	// MaxAttempts bounds program synthesis per DAG. Zero means 10.
	MaxAttempts int
	// RunCampaigns runs a mutation campaign for the original and every
	// misspecified DAG of each seed.
	RunCampaigns bool
}

// Params is written to params.json at the experiment root.
type Params struct {
	MasterSeed   int64             `json:"master_seed"`
	DAGs         int               `json:"dags"`
	Generator    generator.Options `json:"generator"`
	Tests        int               `json:"tests"`
	Range        sampler.Range     `json:"range"`
	Levels       []float64         `json:"misspecification_levels"`
	Seeds        []int64           `json:"seeds"`
	AverageNodes float64           `json:"average_nodes"`
	AverageEdges float64           `json:"average_edges"`
}

// Result is the outcome of an experiment.
type Result struct {
	Params Params      `json:"params"`
	DAGs   []DAGResult `json:"dags"`
}

// DAGResult describes one generated DAG and its variants.
type DAGResult struct {
	Seed      int64 `json:"seed"`
	Nodes     int   `json:"nodes"`
	Edges     int   `json:"edges"`
	Relations int   `json:"relations"`
	// Attempts is the number of programs synthesized before one passed
	// every relation of the DAG.
	Attempts int       `json:"attempts"`
	Variants []Variant `json:"variants"`
}

// Variant is the original DAG or one misspecified copy of it.
type Variant struct {
	Name    string               `json:"name"`
	PInvert float64              `json:"p_invert"`
	SHD     int                  `json:"shd"`
	Edges   int                  `json:"edges"`
	Digest  string               `json:"results_digest,omitempty"`
	Score   *score.MutationScore `json:"score,omitempty"`
	Result  *campaign.Result     `json:"-"`
}
