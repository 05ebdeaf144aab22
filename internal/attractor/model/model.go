// Package model holds the normalized intermediate representation produced by
// the DOT front-end: Graph, Node, and Edge. It carries no parsing or
// execution logic of its own — those live in the dot, style, validate, and
// engine packages that consume it.
package model

import "fmt"

// Graph is the normalized IR for a single pipeline. Node and edge order is
// preserved via each element's Order field so that downstream passes (lexical
// tiebreaks, declaration-order default application) can reproduce DOT
// declaration order without depending on map iteration.
type Graph struct {
	Name  string
	Attrs map[string]string
	Nodes map[string]*Node
	Edges []*Edge
}

func NewGraph(name string) *Graph {
	return &Graph{
		Name:  name,
		Attrs: map[string]string{},
		Nodes: map[string]*Node{},
	}
}

// AddNode registers n. Redeclaring an id with a node statement is allowed by
// the DOT subset (attrs accumulate); duplicate AddNode calls here instead
// merge the incoming attrs onto the existing node so callers never lose the
// first declaration's order.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("model: node must have a non-empty id")
	}
	if existing, ok := g.Nodes[n.ID]; ok {
		for k, v := range n.Attrs {
			existing.Attrs[k] = v
		}
		existing.Classes = append(existing.Classes, n.Classes...)
		return nil
	}
	g.Nodes[n.ID] = n
	return nil
}

// AddEdge appends e, auto-vivifying endpoint nodes that were not declared
// with an explicit node statement (plain DOT semantics: `a -> b` declares
// both a and b if not already present).
func (g *Graph) AddEdge(e *Edge) error {
	if e == nil || e.From == "" || e.To == "" {
		return fmt.Errorf("model: edge must have from/to")
	}
	if _, ok := g.Nodes[e.From]; !ok {
		n := NewNode(e.From)
		n.Order = len(g.Nodes)
		g.Nodes[e.From] = n
	}
	if _, ok := g.Nodes[e.To]; !ok {
		n := NewNode(e.To)
		n.Order = len(g.Nodes)
		g.Nodes[e.To] = n
	}
	e.Order = len(g.Edges)
	g.Edges = append(g.Edges, e)
	return nil
}

// Outgoing returns edges leaving nodeID in declaration order.
func (g *Graph) Outgoing(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns edges entering nodeID in declaration order.
func (g *Graph) Incoming(nodeID string) []*Edge {
	var in []*Edge
	for _, e := range g.Edges {
		if e.To == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// Node is one vertex of the IR. Shape/TypeOverride/ClassList are derived
// views over Attrs/Classes rather than separately-stored fields, so a
// stylesheet or parser pass that mutates Attrs is immediately visible to
// handler resolution.
type Node struct {
	ID      string
	Attrs   map[string]string
	Classes []string
	Order   int
}

func NewNode(id string) *Node {
	return &Node{ID: id, Attrs: map[string]string{}}
}

// Attr returns the named attribute or def if unset/empty after trimming is
// the caller's responsibility; this is a raw lookup.
func (n *Node) Attr(key, def string) string {
	if n == nil {
		return def
	}
	if v, ok := n.Attrs[key]; ok {
		return v
	}
	return def
}

// Shape returns the DOT `shape` attribute, defaulting to "box" to match
// Graphviz's own default node shape.
func (n *Node) Shape() string {
	return n.Attr("shape", "box")
}

// TypeOverride returns the explicit `type` attribute, empty if unset —
// callers fall back to shape-based resolution in that case.
func (n *Node) TypeOverride() string {
	return n.Attr("type", "")
}

// ClassList returns the node's `class` attribute (space-separated) merged
// with classes derived from enclosing subgraph labels.
func (n *Node) ClassList() []string {
	var out []string
	if c := n.Attr("class", ""); c != "" {
		out = append(out, splitClasses(c)...)
	}
	out = append(out, n.Classes...)
	return out
}

func splitClasses(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// Edge is one directed arc of the IR.
type Edge struct {
	From, To string
	Attrs    map[string]string
	Order    int
}

func NewEdge(from, to string) *Edge {
	return &Edge{From: from, To: to, Attrs: map[string]string{}}
}

func (e *Edge) Attr(key, def string) string {
	if e == nil {
		return def
	}
	if v, ok := e.Attrs[key]; ok {
		return v
	}
	return def
}

func (e *Edge) Label() string     { return e.Attr("label", "") }
func (e *Edge) Condition() string { return e.Attr("condition", "") }
