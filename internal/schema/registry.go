package schema

import (
	"slices"
	"sync"

	"github.com/edaschema/edaschema/internal/errors"
)

// EntityDef declares an entity kind
type EntityDef struct {
	Kind    string
	Title   string
	Graph   bool // instances carry a node/edge graph view
	Columns []Column
}

// EntitySchema is a compiled entity kind
type EntitySchema struct {
	*Schema
	Kind  string
	Title string
	Graph bool
}

// Registry maps entity kinds to their schemas. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	kinds  []string
	byKind map[string]*EntitySchema
}

// NewRegistry compiles defs into a Registry
func NewRegistry(defs ...EntityDef) (*Registry, error) {
	r := &Registry{byKind: make(map[string]*EntitySchema, len(defs))}
	for _, def := range defs {
		if _, dup := r.byKind[def.Kind]; dup {
			return nil, errors.Newf("entity kind %s registered twice", def.Kind).
				Component("schema").
				Category(errors.CategoryValidation).
				Build()
		}
		s, err := Compile(def.Kind, def.Columns)
		if err != nil {
			return nil, err
		}
		r.kinds = append(r.kinds, def.Kind)
		r.byKind[def.Kind] = &EntitySchema{Schema: s, Kind: def.Kind, Title: def.Title, Graph: def.Graph}
	}
	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(entityDefinitions()...)
	if err != nil {
		panic(err)
	}
	return r
})

// Default returns the registry of built-in EDA entity kinds
func Default() *Registry {
	return defaultRegistry()
}

// Lookup returns the schema of kind or a not-found error
func (r *Registry) Lookup(kind string) (*EntitySchema, error) {
	if es, ok := r.byKind[kind]; ok {
		return es, nil
	}
	return nil, errors.NotFoundError("entity kind", kind)
}

// MustLookup is Lookup for kinds known at compile time
func (r *Registry) MustLookup(kind string) *EntitySchema {
	es, err := r.Lookup(kind)
	if err != nil {
		panic(err)
	}
	return es
}

// Kinds returns the registered kinds in registration order
func (r *Registry) Kinds() []string {
	return slices.Clone(r.kinds)
}
