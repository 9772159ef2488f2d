package graph

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/edaschema/edaschema/internal/errors"
)

// Edge is a directed edge with optional attributes. Its JSON form is the
// tuple [source, target, attrs].
type Edge struct {
	Source string `bson:"source"`
	Target string `bson:"target"`
	Attrs  Attrs  `bson:"attrs,omitempty"`
}

// MarshalJSON encodes the edge as [source, target, attrs]
func (e Edge) MarshalJSON() ([]byte, error) {
	attrs := e.Attrs
	if attrs == nil {
		attrs = Attrs{}
	}
	return json.Marshal([]any{e.Source, e.Target, attrs})
}

// UnmarshalJSON accepts [source, target] or [source, target, attrs]
func (e *Edge) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("edge must have 2 or 3 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &e.Source); err != nil {
		return fmt.Errorf("edge source: %w", err)
	}
	if err := json.Unmarshal(parts[1], &e.Target); err != nil {
		return fmt.Errorf("edge target: %w", err)
	}
	e.Attrs = nil
	if len(parts) == 3 {
		if err := json.Unmarshal(parts[2], &e.Attrs); err != nil {
			return fmt.Errorf("edge attrs: %w", err)
		}
	}
	return nil
}

// Dict is the graph exchange form {nodes: {id: attrs}, edges: [[src, dst, attrs]]}
// crossing the boundary between entities and storage backends.
type Dict struct {
	Nodes map[string]Attrs `json:"nodes"`
	Edges []Edge           `json:"edges"`
}

// Validate checks that every edge endpoint is a node
func (d Dict) Validate() error {
	for i, e := range d.Edges {
		for _, id := range [...]string{e.Source, e.Target} {
			if _, ok := d.Nodes[id]; !ok {
				return errors.Newf("edge %d (%s -> %s): endpoint %s is not a node", i, e.Source, e.Target, id).
					Component("graph").
					Category(errors.CategoryValidation).
					Context("node", id).
					Build()
			}
		}
	}
	return nil
}

// Dict exports the graph
func (g *Graph) Dict() Dict {
	d := Dict{
		Nodes: make(map[string]Attrs, len(g.order)),
		Edges: make([]Edge, 0, len(g.edges)),
	}
	for id, attrs := range g.Nodes() {
		d.Nodes[id] = attrs.Clone()
	}
	for e := range g.Edges() {
		e.Attrs = e.Attrs.Clone()
		d.Edges = append(d.Edges, e)
	}
	return d
}

// FromDict builds a graph from its exchange form. Nodes are added in sorted
// id order since the node mapping carries no order of its own.
func FromDict(d Dict) (*Graph, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	g := New()
	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		g.AddNode(id, d.Nodes[id])
	}
	for _, e := range d.Edges {
		if err := g.AddEdge(e.Source, e.Target, e.Attrs); err != nil {
			return nil, err
		}
	}
	return g, nil
}
