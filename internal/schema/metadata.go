package schema

import (
	"slices"
	"strings"
	"sync"

	"github.com/edaschema/edaschema/internal/errors"
)

// Dataset tables
const (
	TableStandardCells       = "standard_cells"
	TableNetlists            = "netlists"
	TableCellMetrics         = "cell_metrics"
	TableAreaMetrics         = "area_metrics"
	TablePowerMetrics        = "power_metrics"
	TableCriticalPathMetrics = "critical_path_metrics"
	TablePorts               = "ports"
	TableGates               = "gates"
	TableNets                = "nets"
	TableNetSegments         = "net_segments"
	TableTimingPaths         = "timing_paths"
	TableTimingPoints        = "timing_points"
	TableClockTrees          = "clock_trees"
	TablePowerProfiles       = "power_profiles"
)

// Key column names shared by every per-netlist table
const (
	ColumnCircuit   = "circuit"
	ColumnNetlistID = "netlist_id"
	ColumnPhase     = "phase"
)

// KeyColumns prefix every per-netlist table
func KeyColumns() []Column {
	return []Column{str(ColumnCircuit), str(ColumnNetlistID), enum(ColumnPhase, Phases...)}
}

// KeyColumnNames returns circuit, netlist_id, phase
func KeyColumnNames() []string {
	return []string{ColumnCircuit, ColumnNetlistID, ColumnPhase}
}

// rowKeySeparator joins primary key values into a row key. Instance names
// routinely contain '/', '.' and '-', so none of those can be used.
const rowKeySeparator = "|"

// TableDef declares a dataset table
type TableDef struct {
	Name       string
	Kind       string   // entity kind stored in the table
	Keyed      bool     // prefixed by circuit, netlist_id, phase
	Extra      []Column // columns between the key and the entity columns
	PrimaryKey []string // identifying columns, in order
}

// Table is a compiled dataset table
type Table struct {
	*Schema
	Name       string
	Kind       string
	Keyed      bool
	Graph      bool // the entity kind has a graph view stored alongside rows
	PrimaryKey []string
}

// RowKey joins the primary key values of row. Every primary key column
// must be present and non-empty.
func (t *Table) RowKey(row map[string]any) (string, error) {
	parts := make([]string, 0, len(t.PrimaryKey))
	for _, name := range t.PrimaryKey {
		c, _ := t.Column(name)
		v := c.FormatText(row[name])
		if v == "" {
			return "", errors.Newf("%s: primary key column %s is empty", t.Name, name).
				Component("schema").
				Category(errors.CategoryValidation).
				Table(t.Name).
				Build()
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, rowKeySeparator), nil
}

// KeyValues returns the circuit, netlist_id and phase of row, or empty
// strings for tables that are not keyed.
func (t *Table) KeyValues(row map[string]any) (circuit, netlistID, phase string) {
	if !t.Keyed {
		return "", "", ""
	}
	circuit, _ = row[ColumnCircuit].(string)
	netlistID, _ = row[ColumnNetlistID].(string)
	phase, _ = row[ColumnPhase].(string)
	return circuit, netlistID, phase
}

// Entry is the persisted description of one table
type Entry struct {
	Entity  string   `yaml:"entity" json:"entity" bson:"entity"`
	Kind    string   `yaml:"kind" json:"kind" bson:"kind"`
	Columns []string `yaml:"columns" json:"columns" bson:"columns"`
}

// Metadata maps table names to their columns. It is built once and shared
// read-only by every storage backend.
type Metadata struct {
	tables []*Table
	byName map[string]*Table
}

// NewMetadata compiles table definitions against the entity registry
func NewMetadata(reg *Registry, defs ...TableDef) (*Metadata, error) {
	m := &Metadata{byName: make(map[string]*Table, len(defs))}
	for _, def := range defs {
		es, err := reg.Lookup(def.Kind)
		if err != nil {
			return nil, err
		}

		var columns []Column
		if def.Keyed {
			columns = append(columns, KeyColumns()...)
		}
		columns = append(columns, def.Extra...)
		columns = append(columns, es.Columns()...)

		s, err := Compile(def.Name, columns)
		if err != nil {
			return nil, err
		}
		for _, pk := range def.PrimaryKey {
			if _, ok := s.Column(pk); !ok {
				return nil, errors.Newf("table %s: primary key column %s is not declared", def.Name, pk).
					Component("schema").
					Category(errors.CategoryValidation).
					Build()
			}
		}

		t := &Table{
			Schema:     s,
			Name:       def.Name,
			Kind:       def.Kind,
			Keyed:      def.Keyed,
			Graph:      es.Graph,
			PrimaryKey: slices.Clone(def.PrimaryKey),
		}
		m.tables = append(m.tables, t)
		m.byName[def.Name] = t
	}
	return m, nil
}

func withKey(columns ...string) []string {
	return append(KeyColumnNames(), columns...)
}

func tableDefinitions() []TableDef {
	return []TableDef{
		{Name: TableStandardCells, Kind: KindStandardCell, PrimaryKey: []string{"name"}},
		{Name: TableNetlists, Kind: KindNetlist, Keyed: true, PrimaryKey: withKey()},
		{Name: TableCellMetrics, Kind: KindCellMetrics, Keyed: true, PrimaryKey: withKey()},
		{Name: TableAreaMetrics, Kind: KindAreaMetrics, Keyed: true, PrimaryKey: withKey()},
		{Name: TablePowerMetrics, Kind: KindPowerMetrics, Keyed: true, PrimaryKey: withKey()},
		{Name: TableCriticalPathMetrics, Kind: KindCriticalPathMetrics, Keyed: true, PrimaryKey: withKey()},
		{Name: TablePorts, Kind: KindIOPort, Keyed: true, PrimaryKey: withKey("name")},
		{Name: TableGates, Kind: KindGate, Keyed: true, PrimaryKey: withKey("name")},
		{Name: TableNets, Kind: KindInterconnect, Keyed: true, PrimaryKey: withKey("name")},
		{
			Name: TableNetSegments, Kind: KindInterconnectSegment, Keyed: true,
			Extra:      []Column{str("net_name")},
			PrimaryKey: withKey("net_name", "name"),
		},
		{
			Name: TableTimingPaths, Kind: KindTimingPath, Keyed: true,
			PrimaryKey: withKey("startpoint", "endpoint", "path_type"),
		},
		{
			Name: TableTimingPoints, Kind: KindTimingPoint, Keyed: true,
			Extra:      []Column{str("startpoint"), str("endpoint"), enum("path_type", PathTypes...)},
			PrimaryKey: withKey("startpoint", "endpoint", "path_type", "name"),
		},
		{
			Name: TableClockTrees, Kind: KindClockTree, Keyed: true,
			Extra:      []Column{str("clock_source")},
			PrimaryKey: withKey("clock_source"),
		},
		{Name: TablePowerProfiles, Kind: KindPowerProfile, Keyed: true, PrimaryKey: withKey()},
	}
}

var datasetMetadata = sync.OnceValue(func() *Metadata {
	m, err := NewMetadata(Default(), tableDefinitions()...)
	if err != nil {
		panic(err)
	}
	return m
})

// DatasetMetadata returns the process-wide table layout of an EDA dataset
func DatasetMetadata() *Metadata {
	return datasetMetadata()
}

// Table returns the named table or a not-found error
func (m *Metadata) Table(name string) (*Table, error) {
	if t, ok := m.byName[name]; ok {
		return t, nil
	}
	return nil, errors.New(errors.NewStd("table not found: "+name)).
		Component("schema").
		Category(errors.CategoryNotFound).
		Table(name).
		Build()
}

// Tables returns all tables in declaration order
func (m *Metadata) Tables() []*Table {
	return slices.Clone(m.tables)
}

// Names returns all table names in declaration order
func (m *Metadata) Names() []string {
	names := make([]string, len(m.tables))
	for i, t := range m.tables {
		names[i] = t.Name
	}
	return names
}

// Entries describes every table for persistence in backend metadata
func (m *Metadata) Entries() []Entry {
	entries := make([]Entry, len(m.tables))
	for i, t := range m.tables {
		entries[i] = Entry{Entity: t.Name, Kind: t.Kind, Columns: t.ColumnNames()}
	}
	return entries
}
