package relation

import (
	"fmt"
	"strings"

	"github.com/rmax-ai/causalmr/pkg/graph"
)

// Kind is the claim a relation makes about a pair of variables.
type Kind int

const (
	// ShouldCause claims that varying Cause changes Effect.
	ShouldCause Kind = iota
	// ShouldNotCause claims that varying Cause leaves Effect unchanged.
	ShouldNotCause
)

const (
	causeArrow  = " --> "
	independent = " _||_ "
)

func (k Kind) String() string {
	switch k {
	case ShouldCause:
		return "should_cause"
	case ShouldNotCause:
		return "should_not_cause"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "should_cause":
		*k = ShouldCause
	case "should_not_cause":
		*k = ShouldNotCause
	default:
		return fmt.Errorf("unknown relation kind %q", b)
	}
	return nil
}

// Relation is a metamorphic relation over one pair of variables. Values
// returned by Derive are never modified afterwards.
type Relation struct {
	Cause      graph.Node   `json:"cause"`
	Effect     graph.Node   `json:"effect"`
	Kind       Kind         `json:"kind"`
	Adjustment []graph.Node `json:"adjustment"`
}

// ID is the canonical string form, the join key across jobs:
//
//	X1 --> Y1 | [X2]
//	X1 _||_ Y2
func (r Relation) ID() string {
	var b strings.Builder
	b.WriteString(r.Cause.String())
	if r.Kind == ShouldCause {
		b.WriteString(causeArrow)
	} else {
		b.WriteString(independent)
	}
	b.WriteString(r.Effect.String())
	if len(r.Adjustment) > 0 {
		b.WriteString(" | [")
		for i, n := range r.Adjustment {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(n.String())
		}
		b.WriteString("]")
	}
	return b.String()
}

func (r Relation) String() string { return r.ID() }

// Adjusts reports whether n is held fixed by the relation.
func (r Relation) Adjusts(n graph.Node) bool {
	for _, a := range r.Adjustment {
		if a == n {
			return true
		}
	}
	return false
}

// ParseID is the inverse of Relation.ID. The "⫫" symbol is accepted in
// place of "_||_".
func ParseID(id string) (Relation, error) {
	var r Relation
	body, adj, hasAdj := strings.Cut(id, " | ")

	var cause, effect string
	if c, e, ok := strings.Cut(body, causeArrow); ok {
		r.Kind = ShouldCause
		cause, effect = c, e
	} else if c, e, ok := strings.Cut(body, independent); ok {
		r.Kind = ShouldNotCause
		cause, effect = c, e
	} else if c, e, ok := strings.Cut(body, " ⫫ "); ok {
		r.Kind = ShouldNotCause
		cause, effect = c, e
	} else {
		return Relation{}, fmt.Errorf("parse relation %q: missing relation operator", id)
	}

	var err error
	if r.Cause, err = graph.ParseNode(strings.TrimSpace(cause)); err != nil {
		return Relation{}, fmt.Errorf("parse relation %q: %w", id, err)
	}
	if r.Effect, err = graph.ParseNode(strings.TrimSpace(effect)); err != nil {
		return Relation{}, fmt.Errorf("parse relation %q: %w", id, err)
	}

	if hasAdj {
		adj = strings.TrimSpace(adj)
		if !strings.HasPrefix(adj, "[") || !strings.HasSuffix(adj, "]") {
			return Relation{}, fmt.Errorf("parse relation %q: malformed adjustment set", id)
		}
		for _, name := range strings.Split(adj[1:len(adj)-1], ",") {
			name = strings.Trim(strings.TrimSpace(name), `'"`)
			if name == "" {
				continue
			}
			n, err := graph.ParseNode(name)
			if err != nil {
				return Relation{}, fmt.Errorf("parse relation %q: %w", id, err)
			}
			r.Adjustment = append(r.Adjustment, n)
		}
		graph.SortNodes(r.Adjustment)
	}
	return r, nil
}
