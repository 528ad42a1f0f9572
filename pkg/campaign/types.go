package campaign

import (
	"time"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/mutation"
	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/score"
	"github.com/rmax-ai/causalmr/pkg/store"
)

// Mutator is a program under test that can produce isolated mutants of
// itself. Every call to Mutant must return a fresh copy that shares no
// state with the receiver or other mutants.
type Mutator interface {
	oracle.Program
	Mutant(job mutation.Job) (oracle.Program, error)
}

// Campaign describes one mutation campaign over a single DAG.
type Campaign struct {
	Name     string
	Graph    *graph.Graph
	Program  Mutator
	Oracle   oracle.Options
	Mutation mutation.Options
	Mode     oracle.Mode
	// Workers bounds the number of mutant jobs run at once. Zero means one.
	Workers int
}

// Result captures a finished campaign for reporting.
type Result struct {
	Campaign   string        `json:"campaign"`
	Seed       int64         `json:"seed"`
	Mode       string        `json:"mode"`
	Duration   time.Duration `json:"duration"`
	Relations  int           `json:"relations"`
	Tests      int           `json:"tests_per_relation"`
	Deletions  int           `json:"deletions"`
	Insertions int           `json:"insertions"`
	Summary    score.Summary `json:"summary"`
	Errors     []JobError    `json:"errors,omitempty"`
}

// JobError is a mutant job that aborted before producing a record. Such
// jobs are not scored.
type JobError struct {
	Job      store.JobID `json:"job_id"`
	Mutation string      `json:"mutation"`
	Error    string      `json:"error"`
}
