package dataset

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/edaschema/edaschema/internal/datastore"
	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// keyedRow returns the dictionary form of e prefixed by the key columns and
// any parent columns in extra
func keyedRow(key schema.NetlistKey, e entity.Entity, extra map[string]any) datastore.Row {
	row := datastore.Row(key.Columns())
	maps.Copy(row, entity.AsDict(e))
	maps.Copy(row, extra)
	return row
}

// rowSet accumulates rows per table and writes them in table order
type rowSet map[string][]datastore.Row

func (rs rowSet) add(table string, row datastore.Row) {
	rs[table] = append(rs[table], row)
}

func (d *Dataset) writeRows(ctx context.Context, rs rowSet) error {
	for _, name := range d.md.Names() {
		rows := rs[name]
		if len(rows) == 0 {
			continue
		}
		if err := d.store.AddTableData(ctx, name, rows); err != nil {
			return err
		}
	}
	return nil
}

func validateAll[E entity.Entity](items []E) error {
	for _, e := range items {
		if err := entity.Validate(e); err != nil {
			return err
		}
	}
	return nil
}

func sortedValues[K cmp.Ordered, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}

func sortedPaths(m map[entity.TimingPathKey]*entity.TimingPath) []*entity.TimingPath {
	paths := slices.Collect(maps.Values(m))
	slices.SortFunc(paths, func(a, b *entity.TimingPath) int {
		return cmp.Or(
			cmp.Compare(a.Startpoint, b.Startpoint),
			cmp.Compare(a.Endpoint, b.Endpoint),
			cmp.Compare(a.PathType, b.PathType),
		)
	})
	return paths
}

// DumpNetlist writes the netlist under key: its row, metrics, ports,
// gates, nets with their segments, timing paths with their points, clock
// trees, and the netlist, routed net, timing path and clock tree graphs.
// Every entity is validated before anything is written. A failure part
// way through can leave earlier tables written.
func (d *Dataset) DumpNetlist(ctx context.Context, key schema.NetlistKey, n *entity.Netlist) error {
	ctx, log := d.trace(ctx, "dump_netlist", logger.String("netlist", key.String()))
	if err := key.Validate(); err != nil {
		return err
	}
	if n == nil {
		return errors.ValidationError("dump netlist: netlist is nil")
	}
	if err := entity.Validate(n); err != nil {
		return err
	}

	ports := sortedValues(n.Ports)
	gates := sortedValues(n.Gates)
	nets := sortedValues(n.Nets)
	if err := validateAll(ports); err != nil {
		return err
	}
	if err := validateAll(gates); err != nil {
		return err
	}
	if err := validateAll(nets); err != nil {
		return err
	}

	rs := rowSet{}
	rs.add(schema.TableNetlists, keyedRow(key, n, nil))
	for table, e := range map[string]entity.Entity{
		schema.TableCellMetrics:         n.CellMetrics,
		schema.TableAreaMetrics:         n.AreaMetrics,
		schema.TablePowerMetrics:        n.PowerMetrics,
		schema.TableCriticalPathMetrics: n.CriticalPathMetrics,
		schema.TablePowerProfiles:       n.PowerProfile,
	} {
		if isNil(e) {
			continue
		}
		if err := entity.Validate(e); err != nil {
			return err
		}
		rs.add(table, keyedRow(key, e, nil))
	}
	for _, p := range ports {
		rs.add(schema.TablePorts, keyedRow(key, p, nil))
	}
	for _, g := range gates {
		rs.add(schema.TableGates, keyedRow(key, g, nil))
	}
	for _, net := range nets {
		rs.add(schema.TableNets, keyedRow(key, net, nil))
		for _, seg := range sortedValues(net.Segments) {
			if err := entity.Validate(seg); err != nil {
				return err
			}
			rs.add(schema.TableNetSegments, keyedRow(key, seg, map[string]any{"net_name": net.Name}))
		}
	}
	paths := sortedPaths(n.TimingPaths)
	if err := d.timingPathRows(key, paths, rs); err != nil {
		return err
	}
	trees := sortedValues(n.ClockTrees)
	if err := clockTreeRows(key, trees, rs); err != nil {
		return err
	}

	if err := d.writeRows(ctx, rs); err != nil {
		return err
	}

	if err := d.store.AddGraphData(ctx, schema.TableNetlists, key.String(), n.GraphDict()); err != nil {
		return err
	}
	routed := 0
	if key.Phase == datastore.PhaseRoute {
		for _, net := range nets {
			if len(net.Segments) == 0 {
				continue
			}
			if err := d.store.AddGraphData(ctx, schema.TableNets, schema.NetGraphKey(key, net.Name), net.GraphDict()); err != nil {
				return err
			}
			routed++
		}
	}
	if err := d.timingPathGraphs(ctx, key, paths); err != nil {
		return err
	}
	if err := d.clockTreeGraphs(ctx, key, trees); err != nil {
		return err
	}

	log.Info("netlist dumped",
		logger.Int("ports", len(ports)),
		logger.Int("gates", len(gates)),
		logger.Int("nets", len(nets)),
		logger.Int("routed_nets", routed),
		logger.Int("timing_paths", len(paths)),
		logger.Int("clock_trees", len(trees)))
	return nil
}

// isNil reports whether e is nil or a typed nil pointer
func isNil(e entity.Entity) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *entity.CellMetrics:
		return v == nil
	case *entity.AreaMetrics:
		return v == nil
	case *entity.PowerMetrics:
		return v == nil
	case *entity.CriticalPathMetrics:
		return v == nil
	case *entity.NetlistPowerProfile:
		return v == nil
	}
	return false
}

func (d *Dataset) timingPathRows(key schema.NetlistKey, paths []*entity.TimingPath, rs rowSet) error {
	if err := validateAll(paths); err != nil {
		return err
	}
	for _, p := range paths {
		rs.add(schema.TableTimingPaths, keyedRow(key, p, nil))
		parent := map[string]any{
			"startpoint": p.Startpoint,
			"endpoint":   p.Endpoint,
			"path_type":  p.PathType,
		}
		for _, pt := range p.OrderedPoints() {
			if err := entity.Validate(pt); err != nil {
				return err
			}
			rs.add(schema.TableTimingPoints, keyedRow(key, pt, parent))
		}
	}
	return nil
}

func (d *Dataset) timingPathGraphs(ctx context.Context, key schema.NetlistKey, paths []*entity.TimingPath) error {
	for _, p := range paths {
		if p.Graph().Len() == 0 {
			continue
		}
		gk := schema.TimingPathGraphKey(key, p.Startpoint, p.Endpoint, p.PathType)
		if err := d.store.AddGraphData(ctx, schema.TableTimingPaths, gk, p.GraphDict()); err != nil {
			return err
		}
	}
	return nil
}

func clockTreeRows(key schema.NetlistKey, trees []*entity.ClockTree, rs rowSet) error {
	for _, ct := range trees {
		if ct.Source == "" {
			return errors.ValidationError("clock tree without a source")
		}
		if err := entity.Validate(ct); err != nil {
			return err
		}
		rs.add(schema.TableClockTrees, keyedRow(key, ct, map[string]any{"clock_source": ct.Source}))
	}
	return nil
}

func (d *Dataset) clockTreeGraphs(ctx context.Context, key schema.NetlistKey, trees []*entity.ClockTree) error {
	for _, ct := range trees {
		if ct.Graph().Len() == 0 {
			continue
		}
		if err := d.store.AddGraphData(ctx, schema.TableClockTrees, schema.ClockTreeGraphKey(key, ct.Source), ct.GraphDict()); err != nil {
			return err
		}
	}
	return nil
}

// DumpTimingPaths writes timing paths, their points and graphs for a
// netlist that is already stored
func (d *Dataset) DumpTimingPaths(ctx context.Context, key schema.NetlistKey, paths []*entity.TimingPath) error {
	ctx, log := d.trace(ctx, "dump_timing_paths", logger.String("netlist", key.String()))
	if err := key.Validate(); err != nil {
		return err
	}
	rs := rowSet{}
	if err := d.timingPathRows(key, paths, rs); err != nil {
		return err
	}
	if err := d.writeRows(ctx, rs); err != nil {
		return err
	}
	if err := d.timingPathGraphs(ctx, key, paths); err != nil {
		return err
	}
	log.Info("timing paths dumped", logger.Int("count", len(paths)))
	return nil
}

// DumpClockTrees writes clock trees and their graphs for a netlist that is
// already stored
func (d *Dataset) DumpClockTrees(ctx context.Context, key schema.NetlistKey, trees []*entity.ClockTree) error {
	ctx, log := d.trace(ctx, "dump_clock_trees", logger.String("netlist", key.String()))
	if err := key.Validate(); err != nil {
		return err
	}
	rs := rowSet{}
	if err := clockTreeRows(key, trees, rs); err != nil {
		return err
	}
	if err := d.writeRows(ctx, rs); err != nil {
		return err
	}
	if err := d.clockTreeGraphs(ctx, key, trees); err != nil {
		return err
	}
	log.Info("clock trees dumped", logger.Int("count", len(trees)))
	return nil
}

// LoadNetlist rebuilds the netlist stored under key, with its members,
// metrics, timing paths and clock trees
func (d *Dataset) LoadNetlist(ctx context.Context, key schema.NetlistKey) (*entity.Netlist, error) {
	ctx, log := d.trace(ctx, "load_netlist", logger.String("netlist", key.String()))
	n, err := d.store.LoadNetlist(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := entity.Validate(n); err != nil {
		return nil, err
	}
	log.Debug("netlist loaded",
		logger.Int("gates", len(n.Gates)),
		logger.Int("timing_paths", len(n.TimingPaths)))
	return n, nil
}

// ListNetlists returns the keys of every stored netlist, sorted
func (d *Dataset) ListNetlists(ctx context.Context) ([]schema.NetlistKey, error) {
	ctx, _ = d.trace(ctx, "list_netlists")
	rows, err := d.store.GetTableData(ctx, schema.TableNetlists, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]schema.NetlistKey, len(rows))
	for _, row := range rows {
		k := schema.NetlistKeyFromRow(row)
		seen[k.String()] = k
	}
	return sortedValues(seen), nil
}

// LoadTimingPaths returns every timing path of the netlist under key
func (d *Dataset) LoadTimingPaths(ctx context.Context, key schema.NetlistKey) ([]*entity.TimingPath, error) {
	ctx, _ = d.trace(ctx, "load_timing_paths", logger.String("netlist", key.String()))
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return datastore.LoadTimingPaths(ctx, d.store, key, nil)
}

// LoadTimingPath returns one timing path with its points and graph
func (d *Dataset) LoadTimingPath(ctx context.Context, key schema.NetlistKey, path entity.TimingPathKey) (*entity.TimingPath, error) {
	ctx, _ = d.trace(ctx, "load_timing_path", logger.String("netlist", key.String()))
	if err := key.Validate(); err != nil {
		return nil, err
	}
	paths, err := datastore.LoadTimingPaths(ctx, d.store, key, datastore.Filter{
		"startpoint": path.Startpoint,
		"endpoint":   path.Endpoint,
		"path_type":  path.PathType,
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.NotFoundError("timing path",
			schema.TimingPathGraphKey(key, path.Startpoint, path.Endpoint, path.PathType))
	}
	return paths[0], nil
}

// LoadInterconnect returns one net with its segments. Routed nets carry
// their stored segment graph.
func (d *Dataset) LoadInterconnect(ctx context.Context, key schema.NetlistKey, name string) (*entity.Interconnect, error) {
	ctx, _ = d.trace(ctx, "load_interconnect", logger.String("netlist", key.String()), logger.String("net", name))
	if err := key.Validate(); err != nil {
		return nil, err
	}
	filter := datastore.Filter(key.Columns())
	filter["name"] = name
	row, err := d.store.GetTableRow(ctx, schema.TableNets, filter)
	if err != nil {
		return nil, err
	}
	net, err := entity.FromRow[entity.Interconnect](row)
	if err != nil {
		return nil, err
	}
	nets := map[string]*entity.Interconnect{name: net}
	if err := datastore.AttachSegments(ctx, d.store, key, datastore.Filter{"net_name": name}, nets); err != nil {
		return nil, err
	}
	return net, nil
}

// LoadClockTree returns the clock tree driven by source. Its nodes are not
// checked against the netlist graph; LoadNetlist does that.
func (d *Dataset) LoadClockTree(ctx context.Context, key schema.NetlistKey, source string) (*entity.ClockTree, error) {
	ctx, log := d.trace(ctx, "load_clock_tree", logger.String("netlist", key.String()), logger.String("clock_source", source))
	if err := key.Validate(); err != nil {
		return nil, err
	}
	trees, err := datastore.LoadClockTrees(ctx, d.store, key, datastore.Filter{"clock_source": source}, nil, log)
	if err != nil {
		return nil, err
	}
	if len(trees) == 0 {
		return nil, errors.NotFoundError("clock tree", schema.ClockTreeGraphKey(key, source))
	}
	return trees[0], nil
}
