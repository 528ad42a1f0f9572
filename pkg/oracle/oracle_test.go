package oracle

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/relation"
	"github.com/rmax-ai/causalmr/pkg/sampler"
)

var (
	x1 = graph.Source(1)
	x2 = graph.Source(2)
	y1 = graph.Sink(1)
	y2 = graph.Sink(2)
)

func scenario() *graph.Graph {
	g := graph.New()
	for _, n := range []graph.Node{x1, x2, y1, y2} {
		g.AddNode(n, graph.KindNumerical)
	}
	g.AddEdge(x1, y1)
	g.AddEdge(x2, y1)
	return g
}

// scenarioProgram computes Y1 = X1 + X2 and Y2 = 0, honouring
// interventions on either sink.
func scenarioProgram() Program {
	return ProgramFunc(func(_ context.Context, in map[graph.Node]int) (Outputs, error) {
		out := Outputs{y1: float64(in[x1] + in[x2]), y2: 0}
		for _, s := range []graph.Node{y1, y2} {
			if v, ok := in[s]; ok {
				out[s] = float64(v)
			}
		}
		return out, nil
	})
}

func sample(t *testing.T, rel relation.Relation, g *graph.Graph, n int) []sampler.TestCase {
	t.Helper()
	tests, err := sampler.Sample(rand.New(rand.NewSource(1)), rel, g, n, sampler.DefaultRange)
	require.NoError(t, err)
	return tests
}

func TestConcreteScenario(t *testing.T) {
	suite, err := Prepare(scenario(), Options{Tests: 20, Seed: 3})
	require.NoError(t, err)

	outcomes, err := suite.Run(context.Background(), scenarioProgram(), FailFast)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	for _, o := range outcomes {
		assert.True(t, o.Passed, "%s should pass, failures: %v", o.Relation.ID(), o.Failures)
		assert.Equal(t, 20, o.Total)
		assert.Empty(t, o.Failures)
	}
	assert.Empty(t, Failed(outcomes))
}

func TestOracleAsymmetry(t *testing.T) {
	g := scenario()
	rel := relation.Relation{Cause: x1, Effect: y1, Kind: relation.ShouldCause, Adjustment: []graph.Node{x2}}
	tests := sample(t, rel, g, 15)

	t.Run("ignoring the cause fails every test", func(t *testing.T) {
		ignore := ProgramFunc(func(_ context.Context, in map[graph.Node]int) (Outputs, error) {
			return Outputs{y1: float64(in[x2]), y2: 0}, nil
		})
		failures, err := Execute(context.Background(), rel, tests, ignore, FailFast)
		require.NoError(t, err)
		assert.Len(t, failures, len(tests))

		verdict := Verdict(rel, failures, len(tests))
		var rf *RelationFailure
		require.ErrorAs(t, verdict, &rf)
		assert.ErrorIs(t, verdict, ErrRelationFailed)
		assert.Equal(t, len(tests), rf.Failed)
	})

	t.Run("monotonic in the cause passes", func(t *testing.T) {
		mono := ProgramFunc(func(_ context.Context, in map[graph.Node]int) (Outputs, error) {
			return Outputs{y1: 3*float64(in[x1]) + 1, y2: 0}, nil
		})
		failures, err := Execute(context.Background(), rel, tests, mono, FailFast)
		require.NoError(t, err)
		assert.Empty(t, failures)
		assert.NoError(t, Verdict(rel, failures, len(tests)))
	})
}

func TestVerdict(t *testing.T) {
	cause := relation.Relation{Cause: x1, Effect: y1, Kind: relation.ShouldCause}
	indep := relation.Relation{Cause: x1, Effect: y2, Kind: relation.ShouldNotCause}
	some := func(n int) []Failure { return make([]Failure, n) }

	tests := []struct {
		name     string
		rel      relation.Relation
		failures []Failure
		total    int
		wantFail bool
	}{
		{name: "cause all pass", rel: cause, failures: nil, total: 5},
		{name: "cause one discriminates", rel: cause, failures: some(4), total: 5},
		{name: "cause none discriminates", rel: cause, failures: some(5), total: 5, wantFail: true},
		{name: "cause without tests", rel: cause, total: 0, wantFail: true},
		{name: "independence all pass", rel: indep, total: 5},
		{name: "independence one refutes", rel: indep, failures: some(1), total: 5, wantFail: true},
		{name: "independence without tests", rel: indep, total: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verdict(tt.rel, tt.failures, tt.total)
			if tt.wantFail {
				assert.ErrorIs(t, err, ErrRelationFailed)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestExecute_Modes(t *testing.T) {
	g := scenario()
	rel := relation.Relation{Cause: x1, Effect: y2, Kind: relation.ShouldNotCause}
	tests := sample(t, rel, g, 10)
	boom := errors.New("division by zero")

	calls := 0
	flaky := ProgramFunc(func(_ context.Context, in map[graph.Node]int) (Outputs, error) {
		calls++
		if calls == 5 {
			return nil, boom
		}
		return Outputs{y1: 0, y2: 0}, nil
	})

	t.Run("fail fast", func(t *testing.T) {
		calls = 0
		failures, err := Execute(context.Background(), rel, tests, flaky, FailFast)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEvaluation)
		assert.ErrorIs(t, err, boom)
		var ee *EvaluationError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, tests[2], ee.Test)
		assert.Empty(t, failures)
	})

	t.Run("tolerant", func(t *testing.T) {
		calls = 0
		failures, err := Execute(context.Background(), rel, tests, flaky, Tolerant)
		require.NoError(t, err)
		require.Len(t, failures, 1)
		assert.ErrorIs(t, failures[0].Err, boom)
		assert.True(t, math.IsNaN(failures[0].Control))
		assert.Error(t, Verdict(rel, failures, len(tests)))
	})
}

func TestExecute_NonFiniteIsEvaluationError(t *testing.T) {
	g := scenario()
	rel := relation.Relation{Cause: x1, Effect: y1, Kind: relation.ShouldCause, Adjustment: []graph.Node{x2}}
	tests := sample(t, rel, g, 3)

	inf := ProgramFunc(func(_ context.Context, in map[graph.Node]int) (Outputs, error) {
		return Outputs{y1: math.Inf(1), y2: 0}, nil
	})
	_, err := Execute(context.Background(), rel, tests, inf, FailFast)
	assert.ErrorIs(t, err, ErrEvaluation)

	missing := ProgramFunc(func(_ context.Context, in map[graph.Node]int) (Outputs, error) {
		return Outputs{y2: 0}, nil
	})
	failures, err := Execute(context.Background(), rel, tests, missing, Tolerant)
	require.NoError(t, err)
	assert.Len(t, failures, 3)
}

func TestPrepare_Exhausted(t *testing.T) {
	_, err := Prepare(scenario(), Options{Tests: 500})
	assert.ErrorIs(t, err, sampler.ErrSamplingExhausted)
}

func TestRecord(t *testing.T) {
	suite, err := Prepare(scenario(), Options{Tests: 4, Seed: 1})
	require.NoError(t, err)

	// Y2 copies X1, breaking X1 _||_ Y2.
	leaky := ProgramFunc(func(ctx context.Context, in map[graph.Node]int) (Outputs, error) {
		out, _ := scenarioProgram().Run(ctx, in)
		if _, ok := in[y2]; !ok {
			out[y2] = float64(in[x1])
		}
		return out, nil
	})
	outcomes, err := suite.Run(context.Background(), leaky, FailFast)
	require.NoError(t, err)

	job := Record(outcomes)
	byID := job.Outcomes()
	require.Len(t, byID, 5)
	assert.True(t, byID["X1 _||_ Y2"].Failed)
	assert.Equal(t, 4, byID["X1 _||_ Y2"].Failures)
	assert.False(t, byID["X1 --> Y1 | [X2]"].Failed)
	assert.Equal(t, "should_not_cause", byID["X1 _||_ Y2"].Kind)

	require.NotEmpty(t, job.Failures)
	f := job.Failures[0]
	assert.Equal(t, "X1 _||_ Y2", f.Relation)
	require.NotNil(t, f.Control)
	assert.Equal(t, float64(f.SourceValue), *f.Control)
	assert.Contains(t, f.Others, "X2")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("tolerant")
	require.NoError(t, err)
	assert.Equal(t, Tolerant, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, FailFast, m)
	_, err = ParseMode("lenient")
	assert.Error(t, err)
}
