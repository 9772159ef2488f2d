package dataset

import (
	"context"

	"github.com/edaschema/edaschema/internal/datastore"
	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// DumpStandardCells writes the standard cell library. Each map key must be
// the name of its cell.
func (d *Dataset) DumpStandardCells(ctx context.Context, cells map[string]*entity.StandardCell) error {
	ctx, log := d.trace(ctx, "dump_standard_cells")
	rows := make([]datastore.Row, 0, len(cells))
	for _, c := range sortedValues(cells) {
		if c == nil {
			return errors.ValidationError("standard cell is nil")
		}
		if cells[c.Name] != c {
			return errors.Newf("standard cell %s is stored under another name", c.Name).
				Component("dataset").
				Category(errors.CategoryValidation).
				Table(schema.TableStandardCells).
				Build()
		}
		if err := entity.Validate(c); err != nil {
			return err
		}
		rows = append(rows, entity.AsDict(c))
	}
	if len(rows) == 0 {
		return nil
	}
	if err := d.store.AddTableData(ctx, schema.TableStandardCells, rows); err != nil {
		return err
	}
	log.Info("standard cells dumped", logger.Int("count", len(rows)))
	return nil
}

// LoadStandardCells returns the standard cell library keyed by cell name
func (d *Dataset) LoadStandardCells(ctx context.Context) (map[string]*entity.StandardCell, error) {
	ctx, log := d.trace(ctx, "load_standard_cells")
	rows, err := d.store.GetTableData(ctx, schema.TableStandardCells, nil)
	if err != nil {
		return nil, err
	}
	cells := make(map[string]*entity.StandardCell, len(rows))
	for _, row := range rows {
		c, err := entity.FromRow[entity.StandardCell](row)
		if err != nil {
			return nil, err
		}
		cells[c.Name] = c
	}
	log.Debug("standard cells loaded", logger.Int("count", len(cells)))
	return cells, nil
}
