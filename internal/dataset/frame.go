package dataset

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/edaschema/edaschema/internal/datastore"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// Frame is a table read into memory: the declared columns and the rows in
// backend order. Values have their canonical Go types.
type Frame struct {
	table   *schema.Table
	Columns []string
	Rows    []datastore.Row
}

func newFrame(t *schema.Table, rows []datastore.Row) *Frame {
	return &Frame{table: t, Columns: t.ColumnNames(), Rows: rows}
}

// Table returns the name of the table the frame was read from
func (f *Frame) Table() string { return f.table.Name }

// Len returns the number of rows
func (f *Frame) Len() int { return len(f.Rows) }

// Column returns the values of one column, nil where the row has no value
func (f *Frame) Column(name string) ([]any, error) {
	if _, ok := f.table.Column(name); !ok {
		return nil, errors.Newf("table %s has no column %s", f.table.Name, name).
			Component("dataset").
			Category(errors.CategoryValidation).
			Table(f.table.Name).
			Build()
	}
	values := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[name]
	}
	return values, nil
}

// WriteCSV writes the frame with a header line. Null values are empty
// fields.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return err
	}
	columns := f.table.Columns()
	record := make([]string, len(columns))
	for _, row := range f.Rows {
		for i, c := range columns {
			record[i] = c.FormatText(row[c.Name])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Frame reads the rows of table matching filter
func (d *Dataset) Frame(ctx context.Context, table string, filter datastore.Filter) (*Frame, error) {
	ctx, _ = d.trace(ctx, "frame", logger.Table(table))
	t, err := d.md.Table(table)
	if err != nil {
		return nil, err
	}
	rows, err := d.store.GetTableData(ctx, table, filter)
	if err != nil {
		return nil, err
	}
	return newFrame(t, rows), nil
}

// Query reads the rows of table for which the boolean expression where
// holds, e.g. `phase == "route" && slack < 0`. Columns are variables of
// their declared type. Nullable columns hold nil for missing values; a row
// whose expression fails on a nil cell is not selected. An empty where
// selects every row.
func (d *Dataset) Query(ctx context.Context, table, where string) (*Frame, error) {
	ctx, log := d.trace(ctx, "query", logger.Table(table), logger.String("where", where))
	t, err := d.md.Table(table)
	if err != nil {
		return nil, err
	}
	if where == "" {
		return d.Frame(ctx, table, nil)
	}
	program, err := compileWhere(t, where)
	if err != nil {
		return nil, err
	}

	rows, err := d.store.GetTableData(ctx, table, nil)
	if err != nil {
		return nil, err
	}
	var (
		selected []datastore.Row
		machine  vm.VM
	)
	for i, row := range rows {
		env := make(map[string]any, len(t.Columns()))
		hasNull := false
		for _, c := range t.ColumnNames() {
			env[c] = row[c]
			hasNull = hasNull || row[c] == nil
		}
		out, err := machine.Run(program, env)
		// A comparison against a null cell does not match, as in SQL
		if err != nil && hasNull {
			continue
		}
		if err != nil {
			return nil, errors.New(err).
				Component("dataset").
				Category(errors.CategoryValidation).
				Context("row", i).
				Context("where", where).
				Table(table).
				Build()
		}
		if ok, _ := out.(bool); ok {
			selected = append(selected, row)
		}
	}
	log.Debug("query evaluated",
		logger.Int("rows", len(rows)),
		logger.Int("selected", len(selected)))
	return newFrame(t, selected), nil
}

// compileWhere type-checks where against the columns of t
func compileWhere(t *schema.Table, where string) (*vm.Program, error) {
	env := make(map[string]any, len(t.Columns()))
	for _, c := range t.Columns() {
		env[c.Name] = sampleValue(c.Type)
	}
	program, err := expr.Compile(where, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryValidation).
			Context("where", where).
			Table(t.Name).
			Build()
	}
	return program, nil
}

// sampleValue gives the expression checker the Go type of a column
func sampleValue(t schema.Type) any {
	switch t {
	case schema.TypeNumber:
		return 0.0
	case schema.TypeInteger:
		return int64(0)
	case schema.TypeBoolean:
		return false
	default:
		return ""
	}
}
