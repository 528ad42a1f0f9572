package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"
)

const (
	dotGraphName = "G"
	dotComment   = "comment"
)

// Metadata is the flat key -> scalar payload carried in the graph comment
// (edge probability, seed, p_invert, shd, ...). It is passed through
// unchanged; numbers are kept as json.Number so nothing is rounded.
type Metadata map[string]any

var dotUnescaper = strings.NewReplacer(`\"`, `"`, `\\`, `\`)
var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return dotUnescaper.Replace(s[1 : len(s)-1])
	}
	return s
}

func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// MarshalDOT renders g as a strict digraph. Conditional nodes carry their
// kind in a node comment; meta, if non-empty, is written as JSON in the
// graph comment.
func MarshalDOT(g *Graph, meta Metadata) ([]byte, error) {
	out := gographviz.NewGraph()
	if err := out.SetName(dotGraphName); err != nil {
		return nil, err
	}
	if err := out.SetDir(true); err != nil {
		return nil, err
	}
	if err := out.SetStrict(true); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encode graph metadata: %w", err)
		}
		if err := out.AddAttr(dotGraphName, dotComment, quote(string(raw))); err != nil {
			return nil, err
		}
	}
	for _, n := range g.Nodes() {
		var attrs map[string]string
		if k := g.Kind(n); k != KindNumerical {
			attrs = map[string]string{dotComment: quote(k.String())}
		}
		if err := out.AddNode(dotGraphName, n.String(), attrs); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n, err)
		}
	}
	for _, e := range g.Edges() {
		if err := out.AddEdge(e.Cause.String(), e.Effect.String(), true, nil); err != nil {
			return nil, fmt.Errorf("add edge %s: %w", e, err)
		}
	}
	return []byte(out.String()), nil
}

// UnmarshalDOT parses a graph description file. The X/Y prefix of each node
// name is decoded into an explicit role here and nowhere else.
func UnmarshalDOT(data []byte) (*Graph, Metadata, error) {
	parsed, err := gographviz.ParseString(string(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parse dot: %w", err)
	}
	dg := gographviz.NewGraph()
	if err := gographviz.Analyse(parsed, dg); err != nil {
		return nil, nil, fmt.Errorf("analyse dot: %w", err)
	}
	if !dg.Directed {
		return nil, nil, invalidf("graph description must be a digraph")
	}

	g := New()
	for _, dn := range dg.Nodes.Nodes {
		n, err := ParseNode(unquote(dn.Name))
		if err != nil {
			return nil, nil, err
		}
		kind, err := ParseKind(unquote(dn.Attrs[gographviz.Attr(dotComment)]))
		if err != nil {
			return nil, nil, fmt.Errorf("node %s: %w", n, err)
		}
		g.AddNode(n, kind)
	}
	for _, de := range dg.Edges.Edges {
		cause, err := ParseNode(unquote(de.Src))
		if err != nil {
			return nil, nil, err
		}
		effect, err := ParseNode(unquote(de.Dst))
		if err != nil {
			return nil, nil, err
		}
		g.AddEdge(cause, effect)
	}

	var meta Metadata
	if raw := unquote(dg.Attrs[gographviz.Attr(dotComment)]); strings.TrimSpace(raw) != "" {
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		if err := dec.Decode(&meta); err != nil {
			return nil, nil, fmt.Errorf("decode graph metadata: %w", err)
		}
	}
	return g, meta, nil
}
