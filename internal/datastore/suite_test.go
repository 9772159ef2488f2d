package datastore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

var (
	testKey    = schema.NetlistKey{Circuit: "aes", NetlistID: "n1", Phase: "place"}
	testLogger = logger.NewSlogLogger(nil, logger.LogLevelError, nil)
)

// keyed prefixes fields with the key columns of k
func keyed(k schema.NetlistKey, fields Row) Row {
	row := Row(k.Columns())
	maps.Copy(row, fields)
	return row
}

func gateRow(k schema.NetlistKey, name, cell string) Row {
	return keyed(k, Row{"name": name, "standard_cell": cell, "no_of_fanins": 1, "no_of_fanouts": 1})
}

func portRow(k schema.NetlistKey, name, direction string) Row {
	return keyed(k, Row{"name": name, "direction": direction})
}

func netRow(k schema.NetlistKey, name string) Row {
	return keyed(k, Row{"name": name, "no_of_inputs": 1, "no_of_outputs": 1})
}

func netlistRow(k schema.NetlistKey) Row {
	return keyed(k, Row{"no_of_inputs": 1, "no_of_outputs": 1, "no_of_cells": 2, "no_of_nets": 1})
}

func gateNode() graph.Attrs { return graph.Attrs{entity.NodeTypeAttr: entity.NodeGate} }

// equateGraphs ignores nil versus empty attribute maps and edge order
var equateGraphs = cmp.Options{
	cmpopts.EquateEmpty(),
	cmpopts.SortSlices(func(a, b graph.Edge) bool {
		return a.Source+"\x00"+a.Target < b.Source+"\x00"+b.Target
	}),
}

// openStore creates a backend ready for use. The store is closed on cleanup.
type openStore func(t *testing.T) Interface

// runStoreSuite checks the storage contract on one backend
func runStoreSuite(t *testing.T, open openStore) {
	t.Run("CreateIsIdempotent", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		md := schema.DatasetMetadata()

		require.NoError(t, s.CreateDatasetTables(ctx, md))
		require.NoError(t, s.AddTableRow(ctx, schema.TableGates, gateRow(testKey, "g1", "INVX1")))
		require.NoError(t, s.CreateDatasetTables(ctx, md))

		rows, err := s.GetTableData(ctx, schema.TableGates, nil)
		require.NoError(t, err)
		assert.Len(t, rows, 1, "second create must keep data")

		rows, err = s.GetTableData(ctx, schema.TablePorts, nil)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("MissingRowIsNotFound", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		_, err := s.GetTableRow(ctx, schema.TableGates, Filter{"name": "nope"})
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err), "got %v", err)
		assert.False(t, errors.IsBackend(err))
	})

	t.Run("InsertedRowReadsBackEqual", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		row := gateRow(testKey, "u_core/g1", "INVX1")
		row["x"] = 12.25
		require.NoError(t, s.AddTableRow(ctx, schema.TableGates, row))

		got, err := s.GetTableRow(ctx, schema.TableGates, keyed(testKey, Filter{"name": "u_core/g1"}))
		require.NoError(t, err)

		table, err := schema.DatasetMetadata().Table(schema.TableGates)
		require.NoError(t, err)
		want, err := table.Normalize(row)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("row mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("FilterOnValueColumns", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))
		require.NoError(t, s.AddTableData(ctx, schema.TableGates, []Row{
			gateRow(testKey, "g1", "INVX1"),
			gateRow(testKey, "g2", "BUFX2"),
			gateRow(testKey, "g3", "INVX1"),
			gateRow(schema.NetlistKey{Circuit: "aes", NetlistID: "n2", Phase: "place"}, "g1", "INVX1"),
		}))

		rows, err := s.GetTableData(ctx, schema.TableGates, keyed(testKey, Filter{"standard_cell": "INVX1"}))
		require.NoError(t, err)
		names := make([]string, len(rows))
		for i, r := range rows {
			names[i] = r["name"].(string)
		}
		slices.Sort(names)
		assert.Equal(t, []string{"g1", "g3"}, names)

		rows, err = s.GetTableData(ctx, schema.TableGates, Filter{"no_of_fanins": 1})
		require.NoError(t, err)
		assert.Len(t, rows, 4, "filter values are coerced to the column type")

		_, err = s.GetTableData(ctx, schema.TableGates, Filter{"colour": "red"})
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("DuplicateKeyConflicts", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))
		require.NoError(t, s.AddTableRow(ctx, schema.TableGates, gateRow(testKey, "g1", "INVX1")))

		err := s.AddTableRow(ctx, schema.TableGates, gateRow(testKey, "g1", "BUFX2"))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryConflict), "got %v", err)

		err = s.AddTableData(ctx, schema.TableGates, []Row{
			gateRow(testKey, "g7", "INVX1"),
			gateRow(testKey, "g7", "INVX1"),
		})
		assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
		_, err = s.GetTableRow(ctx, schema.TableGates, Filter{"name": "g7"})
		assert.True(t, errors.IsNotFound(err), "a batch with an inner duplicate writes nothing")
	})

	t.Run("InvalidRowIsValidationError", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		row := keyed(testKey, Row{
			"combinational_cell_area": 1.0, "sequential_cell_area": 1.0, "buffer_area": 0.0,
			"inverter_area": 0.0, "macro_area": 0.0, "total_area": 2.0,
		})
		err := s.AddTableRow(ctx, schema.TableAreaMetrics, row)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err), "missing cell_area must not default to zero")

		_, err = s.GetTableRow(ctx, schema.TableAreaMetrics, nil)
		assert.True(t, errors.IsNotFound(err))

		err = s.AddTableRow(ctx, schema.TableGates, keyed(testKey, Row{"name": "g1"}))
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("UnknownTableIsNotFound", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		_, err := s.GetTableData(ctx, "flip_flops", nil)
		assert.True(t, errors.IsNotFound(err))
		err = s.AddTableRow(ctx, "flip_flops", Row{})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("GraphScenario", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))
		require.NoError(t, s.AddTableData(ctx, schema.TableGates, []Row{
			gateRow(testKey, "g1", "INVX1"),
			gateRow(testKey, "g2", "BUFX2"),
		}))

		d := graph.Dict{
			Nodes: map[string]graph.Attrs{"g1": gateNode(), "g2": gateNode()},
			Edges: []graph.Edge{{Source: "g1", Target: "g2"}},
		}
		require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, testKey.String(), d))

		got, err := s.GetGraphData(ctx, schema.TableNetlists, testKey.String())
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"g1", "g2"}, slices.Collect(maps.Keys(got.Nodes)))
		require.Len(t, got.Edges, 1)
		assert.Equal(t, "g1", got.Edges[0].Source)
		assert.Equal(t, "g2", got.Edges[0].Target)
		if diff := cmp.Diff(d, got, equateGraphs); diff != "" {
			t.Errorf("graph mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("GraphErrors", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		_, err := s.GetGraphData(ctx, schema.TableNetlists, "aes-n1-route")
		assert.True(t, errors.IsNotFound(err))

		dangling := graph.Dict{
			Nodes: map[string]graph.Attrs{"g1": gateNode()},
			Edges: []graph.Edge{{Source: "g1", Target: "g9"}},
		}
		err = s.AddGraphData(ctx, schema.TableNetlists, "k", dangling)
		assert.True(t, errors.IsValidation(err))

		err = s.AddGraphData(ctx, schema.TableGates, "k", graph.Dict{})
		assert.True(t, errors.IsValidation(err), "gates have no graph view")

		err = s.AddGraphData(ctx, schema.TableNetlists, "", graph.Dict{})
		assert.True(t, errors.IsValidation(err))

		one := graph.Dict{Nodes: map[string]graph.Attrs{"g1": gateNode()}}
		require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, "k", one))
		err = s.AddGraphData(ctx, schema.TableNetlists, "k", one)
		assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
	})

	t.Run("ListGraphKeys", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		keys, err := s.ListGraphKeys(ctx, schema.TableClockTrees)
		require.NoError(t, err)
		assert.Empty(t, keys)

		for _, k := range []string{"aes-n1-place-clk_b", "aes-n1-place-clk_a", "aes-n1-place-u1/Z"} {
			require.NoError(t, s.AddGraphData(ctx, schema.TableClockTrees, k,
				graph.Dict{Nodes: map[string]graph.Attrs{"clk": nil}}))
		}
		keys, err = s.ListGraphKeys(ctx, schema.TableClockTrees)
		require.NoError(t, err)
		assert.Equal(t, []string{"aes-n1-place-clk_a", "aes-n1-place-clk_b", "aes-n1-place-u1/Z"}, keys)
	})

	t.Run("LongGraphKey", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		pin := strings.Repeat("u_core/", 12) + "reg_q_reg/"
		key := testKey.String() + "-" + pin + "CK-" + pin + "D-max"
		d := graph.Dict{
			Nodes: map[string]graph.Attrs{pin + "CK": nil, pin + "D": nil},
			Edges: []graph.Edge{{Source: pin + "CK", Target: pin + "D"}},
		}
		require.NoError(t, s.AddGraphData(ctx, schema.TableTimingPaths, key, d))
		require.NoError(t, s.AddGraphData(ctx, schema.TableTimingPaths, "short", graph.Dict{}))

		got, err := s.GetGraphData(ctx, schema.TableTimingPaths, key)
		require.NoError(t, err)
		if diff := cmp.Diff(d, got, equateGraphs); diff != "" {
			t.Errorf("graph mismatch (-want +got):\n%s", diff)
		}

		_, err = s.GetGraphData(ctx, schema.TableTimingPaths, key+"x")
		assert.True(t, errors.IsNotFound(err))
		err = s.AddGraphData(ctx, schema.TableTimingPaths, key, d)
		assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

		keys, err := s.ListGraphKeys(ctx, schema.TableTimingPaths)
		require.NoError(t, err)
		assert.Equal(t, []string{key, "short"}, keys)
	})

	t.Run("KeysAreCaseSensitive", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))
		upper := schema.NetlistKey{Circuit: "AES", NetlistID: testKey.NetlistID, Phase: testKey.Phase}

		require.NoError(t, s.AddTableData(ctx, schema.TableNets, []Row{
			netRow(testKey, "n1"),
			netRow(testKey, "N1"),
			netRow(upper, "n1"),
		}))

		rows, err := s.GetTableData(ctx, schema.TableNets, testKey.Columns())
		require.NoError(t, err)
		names := make([]string, 0, len(rows))
		for _, r := range rows {
			names = append(names, r["name"].(string))
		}
		assert.ElementsMatch(t, []string{"n1", "N1"}, names)

		row, err := s.GetTableRow(ctx, schema.TableNets, keyed(upper, Row{"name": "n1"}))
		require.NoError(t, err)
		assert.Equal(t, "AES", row["circuit"])

		one := graph.Dict{Nodes: map[string]graph.Attrs{"g1": gateNode()}}
		require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, "aes-n1-place", one))
		require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, "AES-n1-place", graph.Dict{}))
		got, err := s.GetGraphData(ctx, schema.TableNetlists, "aes-n1-place")
		require.NoError(t, err)
		assert.Len(t, got.Nodes, 1)
	})

	t.Run("AssembleNetlist", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		seedNetlist(t, s, testKey)

		n, err := AssembleNetlist(ctx, s, testKey, testLogger)
		require.NoError(t, err)

		assert.Equal(t, []string{"g1", "g2"}, slices.Sorted(maps.Keys(n.Gates)), "unreferenced g9 is skipped")
		assert.Len(t, n.Ports, 2)
		assert.Len(t, n.Nets, 1)
		assert.Equal(t, 4, n.Graph().EdgeCount())
		assert.Equal(t, entity.NodeInterconnect, n.NodeType("n0"))
		assert.Equal(t, int64(2), n.NoOfCells)
		require.NotNil(t, n.AreaMetrics)
		assert.InDelta(t, 10.0, n.AreaMetrics.CellArea, 1e-9)
		assert.Nil(t, n.PowerMetrics)

		path, ok := n.TimingPaths[entity.TimingPathKey{Startpoint: "in", Endpoint: "out", PathType: entity.PathMax}]
		require.True(t, ok)
		var points []string
		for _, p := range path.OrderedPoints() {
			points = append(points, p.Name)
		}
		assert.Equal(t, []string{"g1/A", "g2/A"}, points)
		assert.True(t, path.Graph().HasEdge("g1/A", "g2/A"))

		ct, ok := n.ClockTrees["in"]
		require.True(t, ok)
		seq, err := ct.Traverse("in")
		require.NoError(t, err)
		assert.Equal(t, []string{"in", "g1"}, slices.Collect(seq))
		assert.Equal(t, int64(1), ct.NoOfClockSinks)
	})

	t.Run("AssembleNetlistFailsFast", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		missing := schema.NetlistKey{Circuit: "aes", NetlistID: "gone", Phase: "place"}
		_, err := AssembleNetlist(ctx, s, missing, testLogger)
		assert.True(t, errors.IsNotFound(err))

		k := schema.NetlistKey{Circuit: "aes", NetlistID: "n3", Phase: "place"}
		require.NoError(t, s.AddTableRow(ctx, schema.TableNetlists, netlistRow(k)))
		require.NoError(t, s.AddTableRow(ctx, schema.TableGates, gateRow(k, "g1", "INVX1")))
		require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, k.String(), graph.Dict{
			Nodes: map[string]graph.Attrs{"g1": gateNode(), "g3": gateNode()},
			Edges: []graph.Edge{{Source: "g1", Target: "g3"}},
		}))
		_, err = AssembleNetlist(ctx, s, k, testLogger)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err), "node without a row: %v", err)

		k2 := schema.NetlistKey{Circuit: "aes", NetlistID: "n4", Phase: "place"}
		require.NoError(t, s.AddTableRow(ctx, schema.TableNetlists, netlistRow(k2)))
		require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, k2.String(), graph.Dict{
			Nodes: map[string]graph.Attrs{"x": {entity.NodeTypeAttr: "FLOP"}},
		}))
		_, err = AssembleNetlist(ctx, s, k2, testLogger)
		assert.True(t, errors.IsValidation(err), "unknown node type: %v", err)

		_, err = AssembleNetlist(ctx, s, schema.NetlistKey{Circuit: "aes"}, testLogger)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("FingerprintTracksWrites", func(t *testing.T) {
		ctx := t.Context()
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))

		empty, err := Fingerprint(ctx, s, nil)
		require.NoError(t, err)
		again, err := Fingerprint(ctx, s, nil)
		require.NoError(t, err)
		assert.Equal(t, empty, again)

		require.NoError(t, s.AddTableRow(ctx, schema.TableGates, gateRow(testKey, "g1", "INVX1")))
		withRow, err := Fingerprint(ctx, s, nil)
		require.NoError(t, err)
		assert.NotEqual(t, empty, withRow)

		require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, testKey.String(),
			graph.Dict{Nodes: map[string]graph.Attrs{"g1": gateNode()}}))
		withGraph, err := Fingerprint(ctx, s, nil)
		require.NoError(t, err)
		assert.NotEqual(t, withRow, withGraph)
	})
}

// seedNetlist writes a two-gate netlist with metrics, a timing path and a
// clock tree:
//
//	in -> g1 -> n0 -> g2 -> out
func seedNetlist(t *testing.T, s Interface, k schema.NetlistKey) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateDatasetTables(ctx, nil))

	require.NoError(t, s.AddTableRow(ctx, schema.TableNetlists, netlistRow(k)))
	require.NoError(t, s.AddTableRow(ctx, schema.TableAreaMetrics, keyed(k, Row{
		"combinational_cell_area": 6.0, "sequential_cell_area": 4.0, "buffer_area": 1.0,
		"inverter_area": 1.0, "macro_area": 0.0, "cell_area": 10.0, "total_area": 12.0,
	})))
	require.NoError(t, s.AddTableData(ctx, schema.TablePorts, []Row{
		portRow(k, "in", "input"),
		portRow(k, "out", "output"),
	}))
	require.NoError(t, s.AddTableData(ctx, schema.TableGates, []Row{
		gateRow(k, "g1", "DFFX1"),
		gateRow(k, "g2", "BUFX2"),
		gateRow(k, "g9", "INVX1"),
	}))
	require.NoError(t, s.AddTableRow(ctx, schema.TableNets, netRow(k, "n0")))

	port := graph.Attrs{entity.NodeTypeAttr: entity.NodePort}
	require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, k.String(), graph.Dict{
		Nodes: map[string]graph.Attrs{
			"in": port, "out": port, "g1": gateNode(), "g2": gateNode(),
			"n0": {entity.NodeTypeAttr: entity.NodeInterconnect},
		},
		Edges: []graph.Edge{
			{Source: "in", Target: "g1"},
			{Source: "g1", Target: "n0"},
			{Source: "n0", Target: "g2"},
			{Source: "g2", Target: "out"},
		},
	}))

	pathKey := Row{"startpoint": "in", "endpoint": "out", "path_type": entity.PathMax}
	require.NoError(t, s.AddTableRow(ctx, schema.TableTimingPaths, keyed(k, Row{
		"startpoint": "in", "endpoint": "out", "path_type": entity.PathMax,
		"sort_index": 0, "arrival_time": 1.2, "required_time": 2.0, "slack": 0.8,
		"no_of_gates": 2, "is_critical_path": true,
	})))
	point := func(name string, depth int) Row {
		row := keyed(k, Row{
			"name": name, "cell_delay": 0.1, "arrival_time": 0.5, "slew": 0.02,
			"is_rise_transition": true, "is_fall_transition": false, "node_depth": depth,
		})
		maps.Copy(row, pathKey)
		return row
	}
	require.NoError(t, s.AddTableData(ctx, schema.TableTimingPoints, []Row{
		point("g2/A", 1),
		point("g1/A", 0),
	}))

	require.NoError(t, s.AddTableRow(ctx, schema.TableClockTrees, keyed(k, Row{
		"clock_source": "in", "no_of_buffers": 0, "no_of_clock_sinks": 1,
	})))
	require.NoError(t, s.AddGraphData(ctx, schema.TableClockTrees, schema.ClockTreeGraphKey(k, "in"), graph.Dict{
		Nodes: map[string]graph.Attrs{"in": port, "g1": gateNode()},
		Edges: []graph.Edge{{Source: "in", Target: "g1"}},
	}))
}
