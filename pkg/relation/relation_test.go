package relation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/causalmr/pkg/generator"
	"github.com/rmax-ai/causalmr/pkg/graph"
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

func TestDerive_Scenario(t *testing.T) {
	got := Derive(scenario())

	want := []Relation{
		{Cause: x1, Effect: y1, Kind: ShouldCause, Adjustment: []graph.Node{x2}},
		{Cause: x1, Effect: y2, Kind: ShouldNotCause, Adjustment: []graph.Node{}},
		{Cause: x2, Effect: y1, Kind: ShouldCause, Adjustment: []graph.Node{x1}},
		{Cause: x2, Effect: y2, Kind: ShouldNotCause, Adjustment: []graph.Node{}},
		{Cause: y1, Effect: y2, Kind: ShouldNotCause, Adjustment: []graph.Node{x1, x2}},
	}
	assert.Equal(t, want, got)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID()
	}
	assert.Equal(t, []string{
		"X1 --> Y1 | [X2]",
		"X1 _||_ Y2",
		"X2 --> Y1 | [X1]",
		"X2 _||_ Y2",
		"Y1 _||_ Y2 | [X1, X2]",
	}, ids)
}

func TestDerive_IntermediateSinkVisitedFirst(t *testing.T) {
	g := graph.New()
	g.AddEdge(x1, y2)
	g.AddEdge(y2, y1)

	rels := Index(Derive(g))
	r, ok := rels["Y2 --> Y1 | [X1]"]
	require.True(t, ok, "got %v", rels)
	assert.Equal(t, ShouldCause, r.Kind)
	assert.Contains(t, rels, "X1 _||_ Y1 | [Y2]")
}

func TestDerive_Properties(t *testing.T) {
	for seed := int64(0); seed < 40; seed++ {
		g, err := generator.Generate(rand.New(rand.NewSource(seed)), generator.Options{Nodes: 9, PEdge: 0.35})
		require.NoError(t, err)

		first := Derive(g)
		second := Derive(g)
		assert.Equal(t, first, second, "seed %d: derivation must be idempotent", seed)
		assert.Len(t, first, ExpectedCount(g), "seed %d", seed)

		ids := make(map[string]bool)
		for _, r := range first {
			assert.False(t, ids[r.ID()], "seed %d: duplicate %s", seed, r.ID())
			ids[r.ID()] = true

			assert.False(t, r.Cause.Role == graph.RoleSource && r.Effect.Role == graph.RoleSource)
			assert.False(t, r.Adjusts(r.Cause))
			assert.False(t, r.Adjusts(r.Effect))

			switch r.Kind {
			case ShouldCause:
				assert.True(t, g.HasEdge(r.Cause, r.Effect), "seed %d: %s", seed, r.ID())
			case ShouldNotCause:
				assert.True(t, g.DSeparated(r.Cause, r.Effect, r.Adjustment), "seed %d: %s", seed, r.ID())
			}
		}
	}
}

func TestDerive_MisspecifiedGraphs(t *testing.T) {
	g, err := generator.Generate(rand.New(rand.NewSource(5)), generator.Options{Nodes: 10, PEdge: 0.3})
	require.NoError(t, err)
	for _, m := range generator.Misspecify(g, nil, 5) {
		assert.NotPanics(t, func() { Derive(m.Graph) }, "p_invert=%v", m.PInvert)
	}
}

func TestDerive_PanicsOnCycle(t *testing.T) {
	g := scenario()
	g.AddEdge(y1, y2)
	g.AddEdge(y2, y1)

	defer func() {
		v, ok := recover().(*graph.InvariantViolation)
		require.True(t, ok)
		assert.Contains(t, v.Detail, "before relation derivation")
		assert.Contains(t, v.Graph, "Y2 -> Y1")
	}()
	Derive(g)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    Relation
		wantErr bool
	}{
		{in: "X1 --> Y1 | [X2]", want: Relation{Cause: x1, Effect: y1, Kind: ShouldCause, Adjustment: []graph.Node{x2}}},
		{in: "X1 _||_ Y2", want: Relation{Cause: x1, Effect: y2, Kind: ShouldNotCause}},
		{in: "Y1 ⫫ Y2 | ['X2', 'X1']", want: Relation{Cause: y1, Effect: y2, Kind: ShouldNotCause, Adjustment: []graph.Node{x1, x2}}},
		{in: "X1 -> Y1", wantErr: true},
		{in: "X1 --> Q1", wantErr: true},
		{in: "X1 --> Y1 | X2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, r := range Derive(scenario()) {
		back, err := ParseID(r.ID())
		require.NoError(t, err)
		assert.Equal(t, r.ID(), back.ID())
	}
}
