package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/edaschema/edaschema/internal/errors"
)

// Schema is an ordered column list with its compiled JSON Schema.
type Schema struct {
	name     string
	columns  []Column
	index    map[string]int
	document map[string]any
	compiled *jsonschema.Schema
}

// Compile builds a Schema named name. Every non-nullable column is required
// and properties outside the column list are rejected.
func Compile(name string, columns []Column) (*Schema, error) {
	s := &Schema{
		name:    name,
		columns: slices.Clone(columns),
		index:   make(map[string]int, len(columns)),
	}

	properties := make(map[string]any, len(columns))
	var required []string
	for i, c := range columns {
		if _, dup := s.index[c.Name]; dup {
			return nil, errors.Newf("schema %s: duplicate column %s", name, c.Name).
				Component("schema").
				Category(errors.CategoryValidation).
				Build()
		}
		s.index[c.Name] = i
		properties[c.Name] = c.jsonSchema()
		if !c.Nullable {
			required = append(required, c.Name)
		}
	}

	s.document = map[string]any{
		"$schema":              "http://json-schema.org/draft-04/schema#",
		"title":                name,
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s.document["required"] = required
	}

	raw, err := json.Marshal(s.document)
	if err != nil {
		return nil, errors.New(fmt.Errorf("schema %s: encode: %w", name, err)).
			Component("schema").
			Category(errors.CategorySerialization).
			Build()
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.New(fmt.Errorf("schema %s: decode: %w", name, err)).
			Component("schema").
			Category(errors.CategorySerialization).
			Build()
	}

	url := "edaschema://schemas/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft4)
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, errors.New(fmt.Errorf("schema %s: %w", name, err)).
			Component("schema").
			Category(errors.CategoryValidation).
			Build()
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, errors.New(fmt.Errorf("schema %s: compile: %w", name, err)).
			Component("schema").
			Category(errors.CategoryValidation).
			Build()
	}
	s.compiled = compiled
	return s, nil
}

// Name returns the schema name (entity kind or table name)
func (s *Schema) Name() string { return s.name }

// Columns returns the declared columns in order
func (s *Schema) Columns() []Column { return slices.Clone(s.columns) }

// ColumnNames returns the declared column names in order
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Document returns the JSON Schema document the validator was compiled from
func (s *Schema) Document() map[string]any { return s.document }

// Validate checks record against the schema. It never modifies record and
// never fills defaults: a missing required field is a ValidationError.
func (s *Schema) Validate(record map[string]any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return errors.New(fmt.Errorf("%s: record is not representable: %w", s.name, err)).
			Component("schema").
			Category(errors.CategoryValidation).
			Context("schema", s.name).
			Build()
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return errors.New(fmt.Errorf("%s: %w", s.name, err)).
			Component("schema").
			Category(errors.CategoryValidation).
			Context("schema", s.name).
			Build()
	}
	if err := s.compiled.Validate(instance); err != nil {
		return errors.New(fmt.Errorf("%s: invalid record: %w", s.name, err)).
			Component("schema").
			Category(errors.CategoryValidation).
			Context("schema", s.name).
			Build()
	}
	return nil
}

// Normalize returns a copy of record holding every declared column in its
// canonical Go type (see Column.Coerce). Absent nullable columns become nil.
// Unknown fields are rejected.
func (s *Schema) Normalize(record map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.columns))
	for key := range record {
		if _, ok := s.index[key]; !ok {
			return nil, errors.Newf("%s: unknown field %s", s.name, key).
				Component("schema").
				Category(errors.CategoryValidation).
				Context("schema", s.name).
				Build()
		}
	}
	for _, c := range s.columns {
		v, err := c.Coerce(record[c.Name])
		if err != nil {
			return nil, errors.New(fmt.Errorf("%s: %w", s.name, err)).
				Component("schema").
				Category(errors.CategoryValidation).
				Context("schema", s.name).
				Build()
		}
		out[c.Name] = v
	}
	return out, nil
}

// Project keeps only the columns of s from record, in canonical types.
// Columns missing from record are nil. Used to split a table row into its
// entity part.
func (s *Schema) Project(record map[string]any) (map[string]any, error) {
	sub := make(map[string]any, len(s.columns))
	for _, c := range s.columns {
		if v, ok := record[c.Name]; ok {
			sub[c.Name] = v
		}
	}
	return s.Normalize(sub)
}
