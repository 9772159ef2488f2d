package datastore

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// PhaseRoute is the only phase with routed nets
const PhaseRoute = "route"

// AssembleNetlist rebuilds the netlist identified by key from any backend:
// the netlist row, its metrics, the port, gate and net rows, the netlist
// graph, timing paths and clock trees.
//
// References are resolved fail-fast. A graph node without a row of its
// type, two rows with the same name, a node of unknown type and an edge to
// a missing node are validation errors. Rows no graph node references are
// skipped with a warning.
func AssembleNetlist(ctx context.Context, store Interface, key schema.NetlistKey, log logger.Logger) (*entity.Netlist, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = getLogger()
	}
	log = log.WithContext(ctx).With(logger.String("netlist", key.String()))
	filter := Filter(key.Columns())

	row, err := store.GetTableRow(ctx, schema.TableNetlists, filter)
	if err != nil {
		return nil, err
	}
	n, err := entity.FromRow[entity.Netlist](row)
	if err != nil {
		return nil, err
	}

	if err := loadNetlistMetrics(ctx, store, filter, n); err != nil {
		return nil, err
	}

	ports, err := indexRows[entity.IOPort](ctx, store, schema.TablePorts, filter, func(p *entity.IOPort) string { return p.Name })
	if err != nil {
		return nil, err
	}
	gates, err := indexRows[entity.Gate](ctx, store, schema.TableGates, filter, func(g *entity.Gate) string { return g.Name })
	if err != nil {
		return nil, err
	}
	nets, err := indexRows[entity.Interconnect](ctx, store, schema.TableNets, filter, func(i *entity.Interconnect) string { return i.Name })
	if err != nil {
		return nil, err
	}

	d, err := store.GetGraphData(ctx, schema.TableNetlists, key.String())
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(d.Nodes))
	for _, id := range slices.Sorted(maps.Keys(d.Nodes)) {
		attrs := d.Nodes[id]
		nodeType, _ := attrs[entity.NodeTypeAttr].(string)
		switch nodeType {
		case entity.NodePort:
			p, ok := ports[id]
			if !ok {
				return nil, danglingNode(key, id, nodeType, schema.TablePorts)
			}
			err = n.AddPort(p)
		case entity.NodeGate:
			g, ok := gates[id]
			if !ok {
				return nil, danglingNode(key, id, nodeType, schema.TableGates)
			}
			err = n.AddGate(g)
		case entity.NodeInterconnect:
			net, ok := nets[id]
			if !ok {
				return nil, danglingNode(key, id, nodeType, schema.TableNets)
			}
			err = n.AddNet(net)
		default:
			return nil, errors.Newf("netlist %s: node %s has unknown type %q", key, id, nodeType).
				Component("datastore").
				Category(errors.CategoryValidation).
				Context("node", id).
				Table(schema.TableNetlists).
				Build()
		}
		if err != nil {
			return nil, err
		}
		n.Graph().AddNode(id, attrs)
		used[id] = true
	}
	for _, e := range d.Edges {
		if err := n.Graph().AddEdge(e.Source, e.Target, e.Attrs); err != nil {
			return nil, err
		}
	}

	warnUnreferenced(log, schema.TablePorts, ports, used)
	warnUnreferenced(log, schema.TableGates, gates, used)
	warnUnreferenced(log, schema.TableNets, nets, used)

	if err := AttachSegments(ctx, store, key, nil, n.Nets); err != nil {
		return nil, err
	}
	paths, err := LoadTimingPaths(ctx, store, key, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		n.AddTimingPath(p)
	}
	trees, err := LoadClockTrees(ctx, store, key, nil, n.Graph().HasNode, log)
	if err != nil {
		return nil, err
	}
	for _, ct := range trees {
		n.AddClockTree(ct)
	}

	log.Debug("netlist assembled",
		logger.Int("ports", len(n.Ports)),
		logger.Int("gates", len(n.Gates)),
		logger.Int("nets", len(n.Nets)),
		logger.Int("edges", n.Graph().EdgeCount()))
	return n, nil
}

func danglingNode(key schema.NetlistKey, id, nodeType, table string) error {
	return errors.Newf("netlist %s: %s node %s has no row", key, nodeType, id).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("node", id).
		Table(table).
		Build()
}

func warnUnreferenced[T any](log logger.Logger, table string, rows map[string]*T, used map[string]bool) {
	var skipped []string
	for name := range rows {
		if !used[name] {
			skipped = append(skipped, name)
		}
	}
	if len(skipped) == 0 {
		return
	}
	slices.Sort(skipped)
	log.Warn("rows not referenced by the netlist graph skipped",
		logger.Table(table),
		logger.Int("count", len(skipped)),
		logger.Any("names", skipped))
}

// optionalRow decodes the single row of a per-netlist table, nil when absent
func optionalRow[T any, P interface {
	*T
	entity.Entity
}](ctx context.Context, store Interface, table string, filter Filter) (P, error) {
	row, err := store.GetTableRow(ctx, table, filter)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity.FromRow[T, P](row)
}

func loadNetlistMetrics(ctx context.Context, store Interface, filter Filter, n *entity.Netlist) error {
	var err error
	if n.CellMetrics, err = optionalRow[entity.CellMetrics](ctx, store, schema.TableCellMetrics, filter); err != nil {
		return err
	}
	if n.AreaMetrics, err = optionalRow[entity.AreaMetrics](ctx, store, schema.TableAreaMetrics, filter); err != nil {
		return err
	}
	if n.PowerMetrics, err = optionalRow[entity.PowerMetrics](ctx, store, schema.TablePowerMetrics, filter); err != nil {
		return err
	}
	if n.CriticalPathMetrics, err = optionalRow[entity.CriticalPathMetrics](ctx, store, schema.TableCriticalPathMetrics, filter); err != nil {
		return err
	}
	if n.PowerProfile, err = optionalRow[entity.NetlistPowerProfile](ctx, store, schema.TablePowerProfiles, filter); err != nil {
		return err
	}
	return nil
}

// indexRows decodes the rows of table and indexes them by name. A name
// used twice is a validation error.
func indexRows[T any, P interface {
	*T
	entity.Entity
}](ctx context.Context, store Interface, table string, filter Filter, name func(P) string) (map[string]P, error) {
	rows, err := store.GetTableData(ctx, table, filter)
	if err != nil {
		return nil, err
	}
	out := make(map[string]P, len(rows))
	for _, row := range rows {
		e, err := entity.FromRow[T, P](row)
		if err != nil {
			return nil, err
		}
		id := name(e)
		if _, dup := out[id]; dup {
			return nil, errors.Newf("%s: duplicate name %s", table, id).
				Component("datastore").
				Category(errors.CategoryValidation).
				Context("name", id).
				Table(table).
				Build()
		}
		out[id] = e
	}
	return out, nil
}

// AttachSegments adds the net segments of the netlist key matching where
// to their nets. Routed netlists also carry one graph per net; without it
// the segments are connected by their shared end points. A segment of a net
// not in nets is a validation error.
func AttachSegments(ctx context.Context, store Interface, key schema.NetlistKey, where Filter, nets map[string]*entity.Interconnect) error {
	rows, err := store.GetTableData(ctx, schema.TableNetSegments, withKey(key, where))
	if err != nil {
		return err
	}
	touched := make(map[string]bool)
	for _, row := range rows {
		netName, _ := row["net_name"].(string)
		net, ok := nets[netName]
		if !ok {
			return errors.Newf("netlist %s: segment of unknown net %s", key, netName).
				Component("datastore").
				Category(errors.CategoryValidation).
				Context("net", netName).
				Table(schema.TableNetSegments).
				Build()
		}
		seg, err := entity.FromRow[entity.InterconnectSegment](row)
		if err != nil {
			return err
		}
		if err := net.AddSegment(seg); err != nil {
			return err
		}
		touched[netName] = true
	}

	for _, name := range slices.Sorted(maps.Keys(touched)) {
		net := nets[name]
		if key.Phase != PhaseRoute {
			net.ConnectSegments()
			continue
		}
		d, err := store.GetGraphData(ctx, schema.TableNets, schema.NetGraphKey(key, name))
		if errors.IsNotFound(err) {
			net.ConnectSegments()
			continue
		}
		if err != nil {
			return err
		}
		if err := mergeGraph(net.Graph(), d, schema.TableNets); err != nil {
			return err
		}
	}
	return nil
}

// mergeGraph adds the attributes and edges of d to g. Every node of d must
// already be in g.
func mergeGraph(g *graph.Graph, d graph.Dict, table string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	for _, id := range slices.Sorted(maps.Keys(d.Nodes)) {
		if !g.HasNode(id) {
			return errors.Newf("graph node %s has no row", id).
				Component("datastore").
				Category(errors.CategoryValidation).
				Context("node", id).
				Table(table).
				Build()
		}
		g.AddNode(id, d.Nodes[id])
	}
	for _, e := range d.Edges {
		if err := g.AddEdge(e.Source, e.Target, e.Attrs); err != nil {
			return err
		}
	}
	return nil
}

// LoadTimingPaths rebuilds the timing paths of the netlist key matching
// where, with their points chained by node depth and the stored path
// graphs merged in. Paths come back in table order.
func LoadTimingPaths(ctx context.Context, store Interface, key schema.NetlistKey, where Filter) ([]*entity.TimingPath, error) {
	filter := withKey(key, where)
	rows, err := store.GetTableData(ctx, schema.TableTimingPaths, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	pointRows, err := store.GetTableData(ctx, schema.TableTimingPoints, filter)
	if err != nil {
		return nil, err
	}

	points := make(map[entity.TimingPathKey][]*entity.TimingPoint)
	for _, row := range pointRows {
		k := entity.TimingPathKey{}
		k.Startpoint, _ = row["startpoint"].(string)
		k.Endpoint, _ = row["endpoint"].(string)
		k.PathType, _ = row["path_type"].(string)
		pt, err := entity.FromRow[entity.TimingPoint](row)
		if err != nil {
			return nil, err
		}
		points[k] = append(points[k], pt)
	}

	paths := make([]*entity.TimingPath, 0, len(rows))
	for _, row := range rows {
		path, err := entity.FromRow[entity.TimingPath](row)
		if err != nil {
			return nil, err
		}

		pts := points[path.Key()]
		slices.SortStableFunc(pts, func(a, b *entity.TimingPoint) int {
			return cmp.Compare(a.NodeDepth, b.NodeDepth)
		})
		for _, pt := range pts {
			if err := path.AddPoint(pt); err != nil {
				return nil, err
			}
		}

		gk := schema.TimingPathGraphKey(key, path.Startpoint, path.Endpoint, path.PathType)
		d, err := store.GetGraphData(ctx, schema.TableTimingPaths, gk)
		switch {
		case errors.IsNotFound(err):
		case err != nil:
			return nil, err
		default:
			if err := mergeGraph(path.Graph(), d, schema.TableTimingPaths); err != nil {
				return nil, err
			}
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// LoadClockTrees reads the clock trees of the netlist key matching where
// together with their graphs. When inNetlist is set, every clock tree node
// must satisfy it.
func LoadClockTrees(ctx context.Context, store Interface, key schema.NetlistKey, where Filter, inNetlist func(string) bool, log logger.Logger) ([]*entity.ClockTree, error) {
	rows, err := store.GetTableData(ctx, schema.TableClockTrees, withKey(key, where))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = getLogger()
	}
	trees := make([]*entity.ClockTree, 0, len(rows))
	for _, row := range rows {
		ct, err := entity.FromRow[entity.ClockTree](row)
		if err != nil {
			return nil, err
		}
		ct.Source, _ = row["clock_source"].(string)

		d, err := store.GetGraphData(ctx, schema.TableClockTrees, schema.ClockTreeGraphKey(key, ct.Source))
		if errors.IsNotFound(err) {
			log.Warn("clock tree without graph", logger.String("clock_source", ct.Source))
			trees = append(trees, ct)
			continue
		}
		if err != nil {
			return nil, err
		}
		if inNetlist != nil {
			for id := range d.Nodes {
				if !inNetlist(id) {
					return nil, errors.Newf("clock tree %s: node %s is not in the netlist", ct.Source, id).
						Component("datastore").
						Category(errors.CategoryValidation).
						Context("node", id).
						Table(schema.TableClockTrees).
						Build()
				}
			}
		}
		g, err := graph.FromDict(d)
		if err != nil {
			return nil, err
		}
		ct.SetGraph(g)
		trees = append(trees, ct)
	}
	return trees, nil
}

// withKey returns the key columns of k merged with where
func withKey(k schema.NetlistKey, where Filter) Filter {
	filter := Filter(k.Columns())
	maps.Copy(filter, where)
	return filter
}
