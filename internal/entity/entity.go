// Package entity defines typed records for every EDA entity kind, their
// canonical dictionary form, and the graph view carried by netlists,
// interconnects, timing paths and clock trees.
package entity

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/schema"
)

// Entity is a typed record of one registered kind
type Entity interface {
	Kind() string
}

// GraphEntity is an entity with a node/edge graph view
type GraphEntity interface {
	Entity
	Graph() *graph.Graph
	GraphDict() graph.Dict
}

// Node types stored in the "type" attribute of graph nodes
const (
	NodePort         = "PORT"
	NodeGate         = "GATE"
	NodeInterconnect = "INTERCONNECT"
	NodeNetSegment   = "NETSEGMENT"
	NodeTimingPoint  = "TIMINGPOINT"
)

// NodeTypeAttr is the node attribute holding the node type
const NodeTypeAttr = "type"

// GraphView gives an entity a graph. The zero value is an empty graph.
type GraphView struct {
	g *graph.Graph
}

// Graph returns the graph, creating it on first use
func (v *GraphView) Graph() *graph.Graph {
	if v.g == nil {
		v.g = graph.New()
	}
	return v.g
}

// GraphDict exports the graph in exchange form
func (v *GraphView) GraphDict() graph.Dict {
	return v.Graph().Dict()
}

// SetGraph replaces the graph
func (v *GraphView) SetGraph(g *graph.Graph) {
	v.g = g
}

// AsDict returns the canonical dictionary form of e: every schema field
// keyed by its column name, nil for unset nullable fields. Graph views and
// related entities are not part of the dictionary.
func AsDict(e Entity) map[string]any {
	v := reflect.Indirect(reflect.ValueOf(e))
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				out[name] = nil
				continue
			}
			fv = fv.Elem()
		}
		out[name] = fv.Interface()
	}
	return out
}

// Validate checks e against the schema of its kind. For graph entities the
// graph is checked as well.
func Validate(e Entity) error {
	es, err := schema.Default().Lookup(e.Kind())
	if err != nil {
		return err
	}
	if err := es.Validate(AsDict(e)); err != nil {
		return err
	}
	if ge, ok := e.(GraphEntity); ok {
		return ge.GraphDict().Validate()
	}
	return nil
}

// Load builds an entity of type T from its dictionary form. The input is
// validated first: missing required fields and unknown fields are
// rejected, never defaulted.
//
//	gate, err := entity.Load[entity.Gate](raw)
func Load[T any, P interface {
	*T
	Entity
}](raw map[string]any) (P, error) {
	p := P(new(T))
	if err := decode(p, raw, false); err != nil {
		return nil, err
	}
	return p, nil
}

// FromRow is Load for table rows: columns outside the entity schema (key
// columns, parent names) are dropped before validation.
func FromRow[T any, P interface {
	*T
	Entity
}](row map[string]any) (P, error) {
	p := P(new(T))
	if err := decode(p, row, true); err != nil {
		return nil, err
	}
	return p, nil
}

var constructors = map[string]func() Entity{
	schema.KindNetlist:             func() Entity { return NewNetlist() },
	schema.KindCellMetrics:         func() Entity { return new(CellMetrics) },
	schema.KindAreaMetrics:         func() Entity { return new(AreaMetrics) },
	schema.KindPowerMetrics:        func() Entity { return new(PowerMetrics) },
	schema.KindCriticalPathMetrics: func() Entity { return new(CriticalPathMetrics) },
	schema.KindIOPort:              func() Entity { return new(IOPort) },
	schema.KindGate:                func() Entity { return new(Gate) },
	schema.KindStandardCell:        func() Entity { return new(StandardCell) },
	schema.KindInterconnect:        func() Entity { return NewInterconnect("") },
	schema.KindInterconnectSegment: func() Entity { return new(InterconnectSegment) },
	schema.KindTimingPath:          func() Entity { return NewTimingPath() },
	schema.KindTimingPoint:         func() Entity { return new(TimingPoint) },
	schema.KindClockTree:           func() Entity { return new(ClockTree) },
	schema.KindPowerProfile:        func() Entity { return new(NetlistPowerProfile) },
}

// LoadKind builds an entity of the named kind from its dictionary form
func LoadKind(kind string, raw map[string]any) (Entity, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, errors.NotFoundError("entity kind", kind)
	}
	e := ctor()
	if err := decode(e, raw, false); err != nil {
		return nil, err
	}
	return e, nil
}

func decode(e Entity, raw map[string]any, project bool) error {
	es, err := schema.Default().Lookup(e.Kind())
	if err != nil {
		return err
	}

	if project {
		raw, err = es.Project(raw)
		if err != nil {
			return err
		}
	}
	if err := es.Validate(raw); err != nil {
		return err
	}
	normalized, err := es.Normalize(raw)
	if err != nil {
		return err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      e,
		TagName:     "mapstructure",
		ErrorUnused: true,
		ZeroFields:  true,
	})
	if err != nil {
		return errors.New(err).
			Component("entity").
			Category(errors.CategoryGeneric).
			Build()
	}
	if err := decoder.Decode(normalized); err != nil {
		return errors.New(err).
			Component("entity").
			Category(errors.CategoryValidation).
			Context("kind", e.Kind()).
			Build()
	}
	return nil
}
