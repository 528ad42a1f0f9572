package mutation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/causalmr/pkg/graph"
)

func scenario() *graph.Graph {
	g := graph.New()
	g.AddNode(graph.Source(1), graph.KindNumerical)
	g.AddNode(graph.Source(2), graph.KindNumerical)
	g.AddNode(graph.Sink(2), graph.KindNumerical)
	g.AddEdge(graph.Source(1), graph.Sink(1))
	g.AddEdge(graph.Source(2), graph.Sink(1))
	return g
}

func TestFromGraph(t *testing.T) {
	s := FromGraph(scenario(), Options{})

	assert.Equal(t, DefaultModulePath, s.CosmicRay.ModulePath)
	assert.Equal(t, DefaultTimeout, s.CosmicRay.Timeout)
	assert.Equal(t, "local", s.CosmicRay.Distributor.Name)
	require.Len(t, s.CosmicRay.Operators, 2)

	assert.Equal(t, []Arg{{"X1", "Y1"}, {"X2", "Y1"}}, s.CosmicRay.Operators[0].Args)
	assert.Equal(t, []Arg{{"X1", "Y2"}, {"X2", "Y2"}, {"Y1", "Y2"}}, s.CosmicRay.Operators[1].Args)
	assert.Equal(t, 2, s.Count(OpDeleteEdge))
	assert.Equal(t, 3, s.Count(OpInsertEdge))
}

func TestTOMLRoundTrip(t *testing.T) {
	s := FromGraph(scenario(), Options{TestCommand: "causalmr test --dag DAG.dot"})
	doc, err := s.MarshalTOML()
	require.NoError(t, err)

	text := string(doc)
	assert.Contains(t, text, "[cosmic-ray]")
	assert.Contains(t, text, "module-path = 'program.py'")
	assert.Contains(t, text, "core/VariableReplacer")
	assert.Contains(t, text, "cause_variable")

	back, err := UnmarshalTOML(doc)
	require.NoError(t, err)
	assert.Equal(t, s.CosmicRay.Operators, back.CosmicRay.Operators)
	assert.Equal(t, s.CosmicRay.ModulePath, back.CosmicRay.ModulePath)
	assert.Equal(t, s.CosmicRay.TestCommand, back.CosmicRay.TestCommand)
	assert.Equal(t, s.CosmicRay.Distributor, back.CosmicRay.Distributor)
	assert.Equal(t, 20.0, back.CosmicRay.Timeout)
	assert.Empty(t, back.CosmicRay.ExcludedModules)
}

func TestUnmarshalTOML_Invalid(t *testing.T) {
	_, err := UnmarshalTOML([]byte("[cosmic-ray\n"))
	assert.Error(t, err)
}

func TestJobs(t *testing.T) {
	s := FromGraph(scenario(), Options{})
	jobs, err := s.Jobs("c1")
	require.NoError(t, err)
	require.Len(t, jobs, 5)

	seen := map[string]bool{}
	for _, j := range jobs {
		_, err := uuid.Parse(string(j.ID))
		assert.NoError(t, err)
		assert.False(t, seen[string(j.ID)])
		seen[string(j.ID)] = true
	}
	assert.Equal(t, OpDeleteEdge, jobs[0].Operator)
	assert.Equal(t, graph.Source(1), jobs[0].Cause)
	assert.Equal(t, OpInsertEdge, jobs[4].Operator)
	assert.Equal(t, "core/VariableInserter(Y1, Y2)", jobs[4].String())
	assert.Equal(t, "Y2", jobs[4].Mutation().Effect)

	again, err := s.Jobs("c1")
	require.NoError(t, err)
	assert.Equal(t, jobs, again, "ids are stable per campaign")

	other, err := s.Jobs("c2")
	require.NoError(t, err)
	assert.NotEqual(t, jobs[0].ID, other[0].ID)
}

func TestRecord(t *testing.T) {
	rec, err := FromGraph(scenario(), Options{}).Record("c1")
	require.NoError(t, err)
	assert.Equal(t, "toml", rec.Format)
	assert.Equal(t, 2, rec.Deletions)
	assert.Equal(t, 3, rec.Insertions)
	assert.NotEmpty(t, rec.Document)
}
