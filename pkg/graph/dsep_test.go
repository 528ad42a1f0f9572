package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSeparated(t *testing.T) {
	// X1 -> Y1 -> Y3, X2 -> Y2 -> Y3, X1 -> Y2
	g := New()
	g.AddEdge(Source(1), Sink(1))
	g.AddEdge(Sink(1), Sink(3))
	g.AddEdge(Source(2), Sink(2))
	g.AddEdge(Sink(2), Sink(3))
	g.AddEdge(Source(1), Sink(2))

	tests := []struct {
		name string
		x, y Node
		z    []Node
		want bool
	}{
		{name: "independent roots", x: Source(1), y: Source(2), want: true},
		{name: "collider opened by conditioning", x: Source(1), y: Source(2), z: []Node{Sink(2)}, want: false},
		{name: "collider opened by descendant", x: Source(1), y: Source(2), z: []Node{Sink(3)}, want: false},
		{name: "chain", x: Source(1), y: Sink(3), want: false},
		{name: "chain blocked", x: Source(1), y: Sink(3), z: []Node{Sink(1), Sink(2)}, want: true},
		{name: "fork", x: Sink(1), y: Sink(2), want: false},
		{name: "fork blocked", x: Sink(1), y: Sink(2), z: []Node{Source(1)}, want: true},
		{name: "parents of both", x: Sink(1), y: Sink(2), z: []Node{Source(1), Source(2)}, want: true},
		{name: "same node", x: Sink(1), y: Sink(1), want: false},
		{name: "endpoint in set", x: Sink(1), y: Sink(2), z: []Node{Sink(1)}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.DSeparated(tt.x, tt.y, tt.z))
		})
	}
}

func TestAncestors(t *testing.T) {
	g := New()
	g.AddEdge(Source(1), Sink(1))
	g.AddEdge(Sink(1), Sink(2))
	g.AddNode(Source(2), KindNumerical)

	assert.Equal(t, []Node{Source(1), Sink(1)}, g.Ancestors(Sink(2)))
	assert.Empty(t, g.Ancestors(Source(2)))
}
