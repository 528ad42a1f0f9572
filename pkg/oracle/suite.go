package oracle

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/relation"
	"github.com/rmax-ai/causalmr/pkg/sampler"
	"github.com/rmax-ai/causalmr/pkg/store"
)

// DefaultTests is the number of tests sampled per relation.
const DefaultTests = 10

// Options configures test sampling for a suite.
type Options struct {
	Tests int
	Range sampler.Range
	Seed  int64
}

// Suite is the full set of relations of a DAG with their sampled tests.
// The same suite is run against the baseline program and every mutant so
// that outcomes are comparable.
type Suite struct {
	Graph     *graph.Graph
	Relations []relation.Relation
	Tests     [][]sampler.TestCase
}

// Prepare derives the relations of g and samples their tests from a
// generator seeded with opts.Seed. Sampling errors surface here, before
// any program is run.
func Prepare(g *graph.Graph, opts Options) (*Suite, error) {
	if opts.Tests == 0 {
		opts.Tests = DefaultTests
	}
	if opts.Range == (sampler.Range{}) {
		opts.Range = sampler.DefaultRange
	}
	rels := relation.Derive(g)
	rng := rand.New(rand.NewSource(opts.Seed))

	s := &Suite{Graph: g, Relations: rels, Tests: make([][]sampler.TestCase, len(rels))}
	for i, rel := range rels {
		tests, err := sampler.Sample(rng, rel, g, opts.Tests, opts.Range)
		if err != nil {
			return nil, err
		}
		s.Tests[i] = tests
	}
	return s, nil
}

// Outcome is the judged result of one relation.
type Outcome struct {
	Relation relation.Relation
	Total    int
	Failures []Failure
	Passed   bool
}

// Run executes every relation of the suite against prog and judges it.
// In FailFast mode the first evaluation error stops the run.
func (s *Suite) Run(ctx context.Context, prog Program, mode Mode) ([]Outcome, error) {
	out := make([]Outcome, 0, len(s.Relations))
	for i, rel := range s.Relations {
		failures, err := Execute(ctx, rel, s.Tests[i], prog, mode)
		if err != nil {
			return out, err
		}
		verdict := Verdict(rel, failures, len(s.Tests[i]))
		var rf *RelationFailure
		if verdict != nil && !errors.As(verdict, &rf) {
			return out, verdict
		}
		out = append(out, Outcome{
			Relation: rel,
			Total:    len(s.Tests[i]),
			Failures: failures,
			Passed:   verdict == nil,
		})
	}
	return out, nil
}

// Failed returns the outcomes whose relation failed.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

// Record converts outcomes into a result record. The caller fills in the
// job identity.
func Record(outcomes []Outcome) *store.JobResult {
	job := &store.JobResult{Relations: make([]store.RelationResult, 0, len(outcomes))}
	for _, o := range outcomes {
		job.Relations = append(job.Relations, store.RelationResult{
			Relation: o.Relation.ID(),
			Kind:     o.Relation.Kind.String(),
			Total:    o.Total,
			Failures: len(o.Failures),
			Failed:   !o.Passed,
		})
		for _, f := range o.Failures {
			job.Failures = append(job.Failures, failureRecord(o.Relation, f))
		}
	}
	job.SortRelations()
	return job
}

func failureRecord(rel relation.Relation, f Failure) store.FailureRecord {
	others := make(map[string]int, len(f.Test.Others))
	for n, v := range f.Test.Others {
		others[n.String()] = v
	}
	rec := store.FailureRecord{
		Relation:      rel.ID(),
		Cause:         f.Test.Cause.String(),
		Output:        f.Test.Output.String(),
		SourceValue:   f.Test.SourceValue,
		FollowUpValue: f.Test.FollowUpValue,
		Others:        others,
		Control:       finite(f.Control),
		Treatment:     finite(f.Treatment),
	}
	if f.Err != nil {
		rec.Error = f.Err.Error()
	}
	return rec
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
