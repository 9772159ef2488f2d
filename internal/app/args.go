package app

import (
	"context"

	"github.com/edaschema/edaschema/internal/dataset"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// NetlistKeyArgs is the number of positional arguments naming a netlist
const NetlistKeyArgs = 3

// NetlistKeyFromArgs reads circuit, netlist id and phase from the first
// three arguments and validates them
func NetlistKeyFromArgs(args []string) (schema.NetlistKey, error) {
	if len(args) < NetlistKeyArgs {
		return schema.NetlistKey{}, schema.NetlistKey{}.Validate()
	}
	key := schema.NetlistKey{Circuit: args[0], NetlistID: args[1], Phase: args[2]}
	return key, key.Validate()
}

// WithDataset opens the dataset, runs fn and closes the dataset. A close
// error is returned only when fn succeeded.
func (c *Context) WithDataset(ctx context.Context, fn func(d *dataset.Dataset) error) (err error) {
	d, err := c.OpenDataset(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			if err == nil {
				err = cerr
				return
			}
			c.Log.Warn("failed to close dataset", logger.Error(cerr))
		}
	}()
	return fn(d)
}
