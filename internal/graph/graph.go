// Package graph provides the directed graph view carried by netlists,
// interconnects, timing paths and clock trees, its node/edge exchange form,
// and breadth-first traversal.
package graph

import (
	"iter"
	"maps"
	"slices"

	"github.com/edaschema/edaschema/internal/errors"
)

// Attrs holds the attributes of a node or an edge
type Attrs map[string]any

// Clone returns a shallow copy of a. A nil Attrs clones to an empty map.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	maps.Copy(out, a)
	return out
}

type edgeKey struct{ source, target string }

// Graph is a directed graph without parallel edges. Nodes and the
// successors of each node keep their insertion order, so traversal and
// export are deterministic for a given construction sequence.
//
// Graph is not safe for concurrent mutation.
type Graph struct {
	order []string
	nodes map[string]Attrs
	succ  map[string][]string
	pred  map[string][]string
	edges map[edgeKey]Attrs
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Attrs),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
		edges: make(map[edgeKey]Attrs),
	}
}

// AddNode adds id, or merges attrs into the attributes of an existing node.
func (g *Graph) AddNode(id string, attrs Attrs) {
	existing, ok := g.nodes[id]
	if !ok {
		g.order = append(g.order, id)
		g.nodes[id] = attrs.Clone()
		return
	}
	maps.Copy(existing, attrs)
}

// AddEdge adds the edge source -> target. Both endpoints must already be
// nodes. Adding an edge twice merges its attributes.
func (g *Graph) AddEdge(source, target string, attrs Attrs) error {
	for _, id := range [...]string{source, target} {
		if _, ok := g.nodes[id]; !ok {
			return errors.Newf("edge %s -> %s: endpoint %s is not a node", source, target, id).
				Component("graph").
				Category(errors.CategoryValidation).
				Context("node", id).
				Build()
		}
	}
	key := edgeKey{source, target}
	if existing, ok := g.edges[key]; ok {
		maps.Copy(existing, attrs)
		return nil
	}
	g.edges[key] = attrs.Clone()
	g.succ[source] = append(g.succ[source], target)
	g.pred[target] = append(g.pred[target], source)
	return nil
}

// HasNode reports whether id is a node
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// HasEdge reports whether the edge source -> target exists
func (g *Graph) HasEdge(source, target string) bool {
	_, ok := g.edges[edgeKey{source, target}]
	return ok
}

// Node returns the attributes of id. The map is owned by the graph.
func (g *Graph) Node(id string) (Attrs, bool) {
	attrs, ok := g.nodes[id]
	return attrs, ok
}

// Len returns the number of nodes
func (g *Graph) Len() int { return len(g.order) }

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int { return len(g.edges) }

// NodeIDs returns node ids in insertion order
func (g *Graph) NodeIDs() []string { return slices.Clone(g.order) }

// Nodes iterates over nodes and their attributes in insertion order
func (g *Graph) Nodes() iter.Seq2[string, Attrs] {
	return func(yield func(string, Attrs) bool) {
		for _, id := range g.order {
			if !yield(id, g.nodes[id]) {
				return
			}
		}
	}
}

// Edges iterates over edges grouped by source node in insertion order
func (g *Graph) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for _, source := range g.order {
			for _, target := range g.succ[source] {
				if !yield(Edge{Source: source, Target: target, Attrs: g.edges[edgeKey{source, target}]}) {
					return
				}
			}
		}
	}
}

// Successors returns the targets of edges leaving id
func (g *Graph) Successors(id string) []string { return slices.Clone(g.succ[id]) }

// Predecessors returns the sources of edges entering id
func (g *Graph) Predecessors(id string) []string { return slices.Clone(g.pred[id]) }

// Subgraph returns the subgraph induced by ids: those nodes plus every
// edge between two of them. Unknown ids are ignored and original node
// order is kept.
func (g *Graph) Subgraph(ids []string) *Graph {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	sub := New()
	for _, id := range g.order {
		if _, ok := keep[id]; ok {
			sub.AddNode(id, g.nodes[id])
		}
	}
	for e := range g.Edges() {
		if sub.HasNode(e.Source) && sub.HasNode(e.Target) {
			// both endpoints were just added
			_ = sub.AddEdge(e.Source, e.Target, e.Attrs)
		}
	}
	return sub
}

// Clone returns a deep copy of the graph structure with copied attribute maps
func (g *Graph) Clone() *Graph {
	return g.Subgraph(g.order)
}
