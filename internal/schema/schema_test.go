package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edaschema/edaschema/internal/errors"
)

func areaMetrics() map[string]any {
	return map[string]any{
		"combinational_cell_area": 120.5,
		"sequential_cell_area":    80.0,
		"buffer_area":             10.0,
		"inverter_area":           4.25,
		"macro_area":              0.0,
		"cell_area":               214.75,
		"total_area":              300.0,
	}
}

func TestValidateAcceptsConformingRecord(t *testing.T) {
	t.Parallel()

	es := Default().MustLookup(KindAreaMetrics)
	require.NoError(t, es.Validate(areaMetrics()))
}

func TestValidateMissingRequiredField(t *testing.T) {
	t.Parallel()

	record := areaMetrics()
	delete(record, "cell_area")

	err := Default().MustLookup(KindAreaMetrics).Validate(record)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err), "missing field must be a validation error: %v", err)
	_, still := record["cell_area"]
	assert.False(t, still, "validation must not fill defaults")
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		kind   string
		record map[string]any
	}{
		{
			name:   "unknown field",
			kind:   KindClockTree,
			record: map[string]any{"no_of_buffers": 1, "no_of_clock_sinks": 2, "fanout": 3},
		},
		{
			name:   "negative count",
			kind:   KindClockTree,
			record: map[string]any{"no_of_buffers": -1, "no_of_clock_sinks": 2},
		},
		{
			name:   "fractional count",
			kind:   KindClockTree,
			record: map[string]any{"no_of_buffers": 1.5, "no_of_clock_sinks": 2},
		},
		{
			name: "bad path type",
			kind: KindTimingPath,
			record: map[string]any{
				"startpoint": "a", "endpoint": "b", "path_type": "typ", "sort_index": 0,
				"arrival_time": 1.0, "required_time": 2.0, "slack": 1.0,
				"no_of_gates": 3, "is_critical_path": false,
			},
		},
		{
			name:   "string for number",
			kind:   KindIOPort,
			record: map[string]any{"name": "clk", "direction": "input", "x": "left"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Default().MustLookup(tt.kind).Validate(tt.record)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestNullableColumnMayBeAbsent(t *testing.T) {
	t.Parallel()

	es := Default().MustLookup(KindIOPort)
	record := map[string]any{"name": "clk", "direction": "input"}
	require.NoError(t, es.Validate(record))

	normalized, err := es.Normalize(record)
	require.NoError(t, err)
	assert.Contains(t, normalized, "x")
	assert.Nil(t, normalized["x"])
	assert.Nil(t, normalized["capacitance"])
}

func TestNormalizeCoercesBackendTypes(t *testing.T) {
	t.Parallel()

	es := Default().MustLookup(KindGate)
	normalized, err := es.Normalize(map[string]any{
		"name":          "g1",
		"standard_cell": "INVX1",
		"no_of_fanins":  int32(1),
		"no_of_fanouts": 2.0,
		"x":             "3.5",
		"y":             nil,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name":          "g1",
		"standard_cell": "INVX1",
		"no_of_fanins":  int64(1),
		"no_of_fanouts": int64(2),
		"x":             3.5,
		"y":             nil,
	}, normalized)
}

func TestNormalizeRejectsUnknownField(t *testing.T) {
	t.Parallel()

	_, err := Default().MustLookup(KindClockTree).Normalize(map[string]any{"depth": 3})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestColumnTextRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		col  Column
		text string
		want any
	}{
		{str("name"), "g1", "g1"},
		{str("name"), "", ""},
		{optNum("x", unitLength), "", nil},
		{optNum("x", unitLength), "1.25", 1.25},
		{count("no_of_cells"), "42", int64(42)},
		{boolean("is_buffer"), "true", true},
	}
	for _, tt := range tests {
		t.Run(tt.col.Name+"/"+tt.text, func(t *testing.T) {
			t.Parallel()
			got, err := tt.col.ParseText(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, tt.col.FormatText(got))
		})
	}

	_, err := count("no_of_cells").ParseText("many")
	assert.Error(t, err)
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	reg := Default()
	assert.Len(t, reg.Kinds(), 14)

	es, err := reg.Lookup(KindNetlist)
	require.NoError(t, err)
	assert.True(t, es.Graph)
	assert.Equal(t, "Netlist", es.Title)

	_, err = reg.Lookup("via")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	assert.Panics(t, func() { reg.MustLookup("via") })
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	t.Parallel()

	def := EntityDef{Kind: "k", Columns: []Column{str("name")}}
	_, err := NewRegistry(def, def)
	require.Error(t, err)
}

func TestCompileRejectsDuplicateColumn(t *testing.T) {
	t.Parallel()

	_, err := Compile("dup", []Column{str("name"), str("name")})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestPowerProfileColumns(t *testing.T) {
	t.Parallel()

	es := Default().MustLookup(KindPowerProfile)
	assert.Len(t, es.ColumnNames(), 28)
	_, ok := es.Column("leakage_clock_network")
	assert.True(t, ok)
}

func TestDatasetMetadataTables(t *testing.T) {
	t.Parallel()

	md := DatasetMetadata()
	assert.Equal(t, []string{
		TableStandardCells, TableNetlists, TableCellMetrics, TableAreaMetrics,
		TablePowerMetrics, TableCriticalPathMetrics, TablePorts, TableGates,
		TableNets, TableNetSegments, TableTimingPaths, TableTimingPoints,
		TableClockTrees, TablePowerProfiles,
	}, md.Names())

	gates, err := md.Table(TableGates)
	require.NoError(t, err)
	assert.Equal(t, []string{"circuit", "netlist_id", "phase", "name"}, gates.ColumnNames()[:4])
	assert.False(t, gates.Graph)

	points, err := md.Table(TableTimingPoints)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"circuit", "netlist_id", "phase", "startpoint", "endpoint", "path_type", "name"},
		points.ColumnNames()[:7])

	cells, err := md.Table(TableStandardCells)
	require.NoError(t, err)
	assert.False(t, cells.Keyed)
	assert.Equal(t, "name", cells.ColumnNames()[0])

	_, err = md.Table("vias")
	assert.True(t, errors.IsNotFound(err))

	entries := md.Entries()
	require.Len(t, entries, 14)
	assert.Equal(t, TableNetlists, entries[1].Entity)
	assert.Equal(t, KindNetlist, entries[1].Kind)
}

func TestRowKey(t *testing.T) {
	t.Parallel()

	gates, err := DatasetMetadata().Table(TableGates)
	require.NoError(t, err)

	key, err := gates.RowKey(map[string]any{
		"circuit": "aes", "netlist_id": "n1", "phase": PhasePlace, "name": "u_core/g1",
	})
	require.NoError(t, err)
	assert.Equal(t, "aes|n1|place|u_core/g1", key)

	_, err = gates.RowKey(map[string]any{"circuit": "aes", "netlist_id": "n1", "phase": PhasePlace})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestKeyValues(t *testing.T) {
	t.Parallel()

	md := DatasetMetadata()
	row := map[string]any{"circuit": "aes", "netlist_id": "n1", "phase": PhaseRoute, "name": "INVX1"}

	nets, _ := md.Table(TableNets)
	c, n, p := nets.KeyValues(row)
	assert.Equal(t, []string{"aes", "n1", PhaseRoute}, []string{c, n, p})

	cells, _ := md.Table(TableStandardCells)
	c, n, p = cells.KeyValues(row)
	assert.Empty(t, c+n+p)
}

func TestNetlistKey(t *testing.T) {
	t.Parallel()

	k := NetlistKey{Circuit: "aes", NetlistID: "n1", Phase: PhaseCTS}
	require.NoError(t, k.Validate())
	assert.Equal(t, "aes-n1-cts", k.String())
	assert.Equal(t, k, NetlistKeyFromRow(k.Columns()))
	assert.Equal(t, "aes-n1-cts-a-b-max", TimingPathGraphKey(k, "a", "b", "max"))
	assert.Equal(t, "aes-n1-cts-clk", ClockTreeGraphKey(k, "clk"))
	assert.Equal(t, "aes-n1-cts-net1", NetGraphKey(k, "net1"))

	bad := []NetlistKey{
		{NetlistID: "n1", Phase: PhaseCTS},
		{Circuit: "aes", Phase: PhaseCTS},
		{Circuit: "aes", NetlistID: "n1", Phase: "synth"},
	}
	for _, k := range bad {
		err := k.Validate()
		require.Error(t, err, k.String())
		assert.True(t, errors.IsValidation(err))
	}
}
