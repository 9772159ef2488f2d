package dataset

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// Contents is a whole dataset in memory
type Contents struct {
	StandardCells map[string]*entity.StandardCell
	Netlists      map[schema.NetlistKey]*entity.Netlist
}

// Keys returns the netlist keys in sorted order
func (c *Contents) Keys() []schema.NetlistKey {
	keys := slices.Collect(maps.Keys(c.Netlists))
	slices.SortFunc(keys, func(a, b schema.NetlistKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// LoadDataset reads the standard cells and every netlist. A missing
// standard cell table is not an error for a dataset of netlists only.
func (d *Dataset) LoadDataset(ctx context.Context) (*Contents, error) {
	ctx, log := d.trace(ctx, "load_dataset")
	cells, err := d.LoadStandardCells(ctx)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	keys, err := d.ListNetlists(ctx)
	if err != nil {
		return nil, err
	}
	c := &Contents{
		StandardCells: cells,
		Netlists:      make(map[schema.NetlistKey]*entity.Netlist, len(keys)),
	}
	for _, k := range keys {
		n, err := d.LoadNetlist(ctx, k)
		if err != nil {
			return nil, err
		}
		c.Netlists[k] = n
	}
	log.Info("dataset loaded",
		logger.Int("standard_cells", len(c.StandardCells)),
		logger.Int("netlists", len(c.Netlists)))
	return c, nil
}

// DumpDataset creates the tables and writes the standard cells followed by
// every netlist in key order. Writing stops at the first error.
func (d *Dataset) DumpDataset(ctx context.Context, c *Contents) error {
	ctx, log := d.trace(ctx, "dump_dataset")
	if err := d.CreateTables(ctx); err != nil {
		return err
	}
	if err := d.DumpStandardCells(ctx, c.StandardCells); err != nil {
		return err
	}
	for _, k := range c.Keys() {
		if err := d.DumpNetlist(ctx, k, c.Netlists[k]); err != nil {
			return err
		}
	}
	log.Info("dataset dumped",
		logger.Int("standard_cells", len(c.StandardCells)),
		logger.Int("netlists", len(c.Netlists)))
	return nil
}
