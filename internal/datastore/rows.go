package datastore

import (
	"maps"
	"slices"
	"strings"

	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/schema"
)

// preparedRow is a validated row in canonical types together with its
// primary key.
type preparedRow struct {
	key string
	row Row
}

// prepareRows validates and normalizes rows against t. A primary key that
// repeats inside the batch is a conflict; nothing of the batch is written.
func prepareRows(backend string, t *schema.Table, rows []Row) ([]preparedRow, error) {
	out := make([]preparedRow, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if err := t.Validate(row); err != nil {
			return nil, err
		}
		normalized, err := t.Normalize(row)
		if err != nil {
			return nil, err
		}
		key, err := t.RowKey(normalized)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			return nil, conflictError(backend, t.Name, key)
		}
		seen[key] = struct{}{}
		out = append(out, preparedRow{key: key, row: normalized})
	}
	return out, nil
}

// normalizeFilter coerces filter values to the column types of t so they
// compare equal to stored values.
func normalizeFilter(t *schema.Table, filter Filter) (Filter, error) {
	out := make(Filter, len(filter))
	for name, v := range filter {
		c, ok := t.Column(name)
		if !ok {
			return nil, validationError(t.Name+": unknown filter column "+name, "filter", name)
		}
		coerced, err := c.Coerce(v)
		if err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryValidation).
				Table(t.Name).
				Build()
		}
		out[name] = coerced
	}
	return out, nil
}

// matches reports whether row equals filter on every filter column
func matches(row Row, filter Filter) bool {
	for name, want := range filter {
		if row[name] != want {
			return false
		}
	}
	return true
}

// readRow normalizes a row read back from storage
func readRow(t *schema.Table, raw map[string]any) (Row, error) {
	row, err := t.Normalize(raw)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategorySerialization).
			Context("reason", "stored row does not match table columns").
			Table(t.Name).
			Build()
	}
	return row, nil
}

// graphTable resolves name to a table whose entity kind has a graph view
func graphTable(md *schema.Metadata, name string) (*schema.Table, error) {
	t, err := md.Table(name)
	if err != nil {
		return nil, err
	}
	if !t.Graph {
		return nil, validationError(name+": table does not store graphs", "table", name)
	}
	return t, nil
}

// checkGraph validates the key and the dict of a graph write
func checkGraph(key string, d graph.Dict) error {
	if err := checkGraphKey(key); err != nil {
		return err
	}
	return d.Validate()
}

// checkGraphKey rejects keys that cannot name a graph in every backend.
// Pin and instance names put '/' into timing path and net keys, so only
// the empty key and NUL are refused.
func checkGraphKey(key string) error {
	switch {
	case key == "":
		return validationError("graph key is empty", "key", key)
	case strings.ContainsRune(key, 0):
		return validationError("graph key contains NUL", "key", key)
	}
	return nil
}

// firstRow picks the single result of GetTableRow
func firstRow(rows []Row, table string, filter Filter) (Row, error) {
	if len(rows) == 0 {
		return nil, notFoundError("row", table, describeFilter(filter))
	}
	return rows[0], nil
}

func describeFilter(filter Filter) string {
	if len(filter) == 0 {
		return "*"
	}
	parts := make([]string, 0, len(filter))
	for _, name := range slices.Sorted(maps.Keys(filter)) {
		parts = append(parts, name+"="+schema.Column{}.FormatText(filter[name]))
	}
	return strings.Join(parts, ",")
}
