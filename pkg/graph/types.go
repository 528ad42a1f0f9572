package graph

import (
	"fmt"
	"sort"
)

// Role distinguishes exogenous inputs from endogenous outputs.
type Role int

const (
	RoleSource Role = iota // input, no causal parents
	RoleSink               // output, may have parents
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleSink:
		return "sink"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Kind is the per-node hint consumed by program synthesis.
type Kind int

const (
	KindNumerical Kind = iota
	KindConditional
)

func (k Kind) String() string {
	switch k {
	case KindNumerical:
		return "numerical"
	case KindConditional:
		return "conditional"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "numerical":
		return KindNumerical, nil
	case "conditional":
		return KindConditional, nil
	default:
		return KindNumerical, fmt.Errorf("unknown node kind %q", s)
	}
}

// Node identifies a variable in a causal DAG. It is a comparable value and
// may be used as a map key.
type Node struct {
	Role  Role
	Index int
}

// Source returns source #i.
func Source(i int) Node { return Node{Role: RoleSource, Index: i} }

// Sink returns sink #i.
func Sink(i int) Node { return Node{Role: RoleSink, Index: i} }

// String renders the wire name used in graph files and relation ids.
func (n Node) String() string {
	if n.Role == RoleSource {
		return fmt.Sprintf("X%d", n.Index)
	}
	return fmt.Sprintf("Y%d", n.Index)
}

// Less orders sources before sinks, then by index.
func (n Node) Less(o Node) bool {
	if n.Role != o.Role {
		return n.Role < o.Role
	}
	return n.Index < o.Index
}

// MarshalText lets nodes be used as JSON object keys.
func (n Node) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText parses a wire name.
func (n *Node) UnmarshalText(b []byte) error {
	parsed, err := ParseNode(string(b))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ParseNode parses a wire name such as "X3" or "Y12".
func ParseNode(name string) (Node, error) {
	if len(name) < 2 {
		return Node{}, fmt.Errorf("invalid node name %q", name)
	}
	var role Role
	switch name[0] {
	case 'X':
		role = RoleSource
	case 'Y':
		role = RoleSink
	default:
		return Node{}, fmt.Errorf("invalid node name %q: unknown role prefix", name)
	}
	idx := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return Node{}, fmt.Errorf("invalid node name %q: non-numeric index", name)
		}
		idx = idx*10 + int(c-'0')
	}
	if idx < 1 {
		return Node{}, fmt.Errorf("invalid node name %q: index must be positive", name)
	}
	return Node{Role: role, Index: idx}, nil
}

// SortNodes sorts in place by Node.Less.
func SortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Less(nodes[j]) })
}

// Edge is a directed cause -> effect link.
type Edge struct {
	Cause  Node `json:"cause"`
	Effect Node `json:"effect"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.Cause, e.Effect)
}

type vertex struct {
	kind  Kind
	preds map[Node]struct{}
	succs map[Node]struct{}
}

// Graph is a causal DAG. It exclusively owns its vertex and edge sets; use
// Clone to obtain an independent copy before mutating a shared graph.
type Graph struct {
	vertices map[Node]*vertex
	edges    int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{vertices: make(map[Node]*vertex)}
}

// AddNode adds n with the given kind. Re-adding an existing node updates
// its kind and keeps its edges.
func (g *Graph) AddNode(n Node, kind Kind) {
	if v, ok := g.vertices[n]; ok {
		v.kind = kind
		return
	}
	g.vertices[n] = &vertex{
		kind:  kind,
		preds: make(map[Node]struct{}),
		succs: make(map[Node]struct{}),
	}
}

// HasNode reports whether n is in the graph.
func (g *Graph) HasNode(n Node) bool {
	_, ok := g.vertices[n]
	return ok
}

// Kind returns the kind of n, KindNumerical if n is absent.
func (g *Graph) Kind(n Node) Kind {
	if v, ok := g.vertices[n]; ok {
		return v.kind
	}
	return KindNumerical
}

// SetKind updates the kind of an existing node.
func (g *Graph) SetKind(n Node, kind Kind) {
	if v, ok := g.vertices[n]; ok {
		v.kind = kind
	}
}

// AddEdge inserts cause -> effect, adding missing endpoints as numerical
// nodes. It does not check invariants; callers re-validate.
func (g *Graph) AddEdge(cause, effect Node) {
	if !g.HasNode(cause) {
		g.AddNode(cause, KindNumerical)
	}
	if !g.HasNode(effect) {
		g.AddNode(effect, KindNumerical)
	}
	if _, ok := g.vertices[cause].succs[effect]; ok {
		return
	}
	g.vertices[cause].succs[effect] = struct{}{}
	g.vertices[effect].preds[cause] = struct{}{}
	g.edges++
}

// RemoveEdge deletes cause -> effect and reports whether it existed.
func (g *Graph) RemoveEdge(cause, effect Node) bool {
	if !g.HasEdge(cause, effect) {
		return false
	}
	delete(g.vertices[cause].succs, effect)
	delete(g.vertices[effect].preds, cause)
	g.edges--
	return true
}

// HasEdge reports whether cause -> effect is present.
func (g *Graph) HasEdge(cause, effect Node) bool {
	v, ok := g.vertices[cause]
	if !ok {
		return false
	}
	_, ok = v.succs[effect]
	return ok
}

// Predecessors returns the parents of n in node order.
func (g *Graph) Predecessors(n Node) []Node {
	v, ok := g.vertices[n]
	if !ok {
		return nil
	}
	return sortedKeys(v.preds)
}

// Successors returns the children of n in node order.
func (g *Graph) Successors(n Node) []Node {
	v, ok := g.vertices[n]
	if !ok {
		return nil
	}
	return sortedKeys(v.succs)
}

// InDegree returns the number of parents of n.
func (g *Graph) InDegree(n Node) int {
	if v, ok := g.vertices[n]; ok {
		return len(v.preds)
	}
	return 0
}

// OutDegree returns the number of children of n.
func (g *Graph) OutDegree(n Node) int {
	if v, ok := g.vertices[n]; ok {
		return len(v.succs)
	}
	return 0
}

// Nodes returns all nodes, sources first, each role by ascending index.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.vertices))
	for n := range g.vertices {
		out = append(out, n)
	}
	SortNodes(out)
	return out
}

// NodesByRole returns the nodes with the given role by ascending index.
func (g *Graph) NodesByRole(role Role) []Node {
	var out []Node
	for n := range g.vertices {
		if n.Role == role {
			out = append(out, n)
		}
	}
	SortNodes(out)
	return out
}

// Edges returns all edges ordered by cause, then effect.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for _, c := range g.Nodes() {
		for _, e := range sortedKeys(g.vertices[c].succs) {
			out = append(out, Edge{Cause: c, Effect: e})
		}
	}
	return out
}

// NumNodes returns the vertex count.
func (g *Graph) NumNodes() int { return len(g.vertices) }

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int { return g.edges }

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := New()
	for n, v := range g.vertices {
		c.AddNode(n, v.kind)
	}
	for _, e := range g.Edges() {
		c.AddEdge(e.Cause, e.Effect)
	}
	return c
}

// Equal reports whether both graphs have the same nodes, kinds and edges.
func (g *Graph) Equal(o *Graph) bool {
	if g.NumNodes() != o.NumNodes() || g.NumEdges() != o.NumEdges() {
		return false
	}
	for n, v := range g.vertices {
		ov, ok := o.vertices[n]
		if !ok || ov.kind != v.kind {
			return false
		}
		for s := range v.succs {
			if _, ok := ov.succs[s]; !ok {
				return false
			}
		}
	}
	return true
}

// StructuralHammingDistance counts the edges present in exactly one of the
// two graphs. A reversed edge counts twice.
func StructuralHammingDistance(a, b *Graph) int {
	d := 0
	for _, e := range a.Edges() {
		if !b.HasEdge(e.Cause, e.Effect) {
			d++
		}
	}
	for _, e := range b.Edges() {
		if !a.HasEdge(e.Cause, e.Effect) {
			d++
		}
	}
	return d
}

func sortedKeys(m map[Node]struct{}) []Node {
	out := make([]Node, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	SortNodes(out)
	return out
}
