package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/privacy"
	"github.com/edaschema/edaschema/internal/schema"
)

// slowQueryThreshold is the duration after which SQL statements are logged as slow
const slowQueryThreshold = 500 * time.Millisecond

// insertBatchSize bounds the rows of one INSERT statement
const insertBatchSize = 500

// sqlDialect holds what differs between the relational engines
type sqlDialect struct {
	name         string
	prepare      func() error // optional, runs before the connection is opened
	open         func() gorm.Dialector
	createSQL    string // CREATE TABLE for a row table, ? is the table name
	indexSQL     string // optional CREATE INDEX, ? are index and table name
	tableOptions string // appended to the CREATE TABLE of migrated tables
	afterOpen    []string
}

// blobRow is one row of a table: the primary key, the key columns and the
// full row as a JSON payload.
type blobRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RowKey    string `gorm:"column:row_key"`
	Circuit   *string
	NetlistID *string `gorm:"column:netlist_id"`
	Phase     *string
	Payload   datatypes.JSON
}

// graphBlob stores the node/edge lists of one graph
type graphBlob struct {
	ID       uint64         `gorm:"primaryKey;autoIncrement"`
	Entity   string         `gorm:"size:64;not null;uniqueIndex:idx_graph_blobs_entity_key,priority:1"`
	GraphKey string         `gorm:"column:graph_key;size:512;not null;uniqueIndex:idx_graph_blobs_entity_key,priority:2"`
	Nodes    datatypes.JSON `gorm:"not null"`
	Edges    datatypes.JSON `gorm:"not null"`
}

// TableName overrides the pluralized default
func (graphBlob) TableName() string { return "graph_blobs" }

// tableEntry persists schema.Entry in the dataset_metadata table
type tableEntry struct {
	Entity  string `gorm:"primaryKey;size:64"`
	Kind    string `gorm:"size:64;not null"`
	Columns datatypes.JSON
}

// TableName overrides the pluralized default
func (tableEntry) TableName() string { return "dataset_metadata" }

// SQLStore is the relational backend. Each table holds the primary key and
// the key columns as real columns and the full row as a JSON blob, so the
// layout does not depend on the entity columns. Graphs share the
// graph_blobs table.
type SQLStore struct {
	dialect sqlDialect
	md      *schema.Metadata
	log     logger.Logger

	mu     sync.RWMutex
	db     *gorm.DB
	tables map[string]bool // tables known to exist

	stopMonitor context.CancelFunc
	monitors    sync.WaitGroup
}

func newSQLStore(dialect sqlDialect, md *schema.Metadata, log logger.Logger) *SQLStore {
	if md == nil {
		md = schema.DatasetMetadata()
	}
	if log == nil {
		log = getLogger()
	}
	return &SQLStore{
		dialect: dialect,
		md:      md,
		log:     log.Module(dialect.name),
		tables:  make(map[string]bool),
	}
}

// Backend returns the backend name
func (s *SQLStore) Backend() string { return s.dialect.name }

// DB returns the underlying connection, nil before Open
func (s *SQLStore) DB() *gorm.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Open connects to the database
func (s *SQLStore) Open(ctx context.Context) error {
	if s.dialect.prepare != nil {
		if err := s.dialect.prepare(); err != nil {
			return err
		}
	}
	db, err := gorm.Open(s.dialect.open(), &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(s.log, slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		err = privacy.WrapError(err)
		s.log.Error("failed to open database", logger.Error(err))
		return dbError(err, s.dialect.name, "open", "")
	}
	for _, stmt := range s.dialect.afterOpen {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return dbError(err, s.dialect.name, "open", "", "statement", stmt)
		}
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	s.log.Debug("database opened")
	return nil
}

// Close closes the connection pool
func (s *SQLStore) Close() error {
	s.stopPoolMonitor()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, s.dialect.name, "close", "")
	}
	s.db = nil
	clear(s.tables)
	if err := sqlDB.Close(); err != nil {
		s.log.Error("failed to close database", logger.Error(err))
		return dbError(err, s.dialect.name, "close", "")
	}
	return nil
}

func (s *SQLStore) conn(ctx context.Context, operation string) (*gorm.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, stateError(s.dialect.name, operation)
	}
	return s.db.WithContext(ctx), nil
}

// CreateDatasetTables creates one blob table per dataset table, the graph
// table and the metadata table. Existing tables are left untouched.
func (s *SQLStore) CreateDatasetTables(ctx context.Context, md *schema.Metadata) error {
	db, err := s.conn(ctx, "create_tables")
	if err != nil {
		return err
	}
	if md != nil {
		s.md = md
	}

	migrator := db
	if s.dialect.tableOptions != "" {
		migrator = db.Set("gorm:table_options", s.dialect.tableOptions)
	}
	if err := migrator.AutoMigrate(&graphBlob{}, &tableEntry{}); err != nil {
		return dbError(err, s.dialect.name, "create_tables", "graph_blobs")
	}

	for _, t := range s.md.Tables() {
		if err := db.Exec(s.dialect.createSQL, clause.Table{Name: t.Name}).Error; err != nil {
			return dbError(err, s.dialect.name, "create_tables", t.Name)
		}
		if s.dialect.indexSQL != "" {
			index := clause.Column{Name: "idx_" + t.Name + "_netlist"}
			if err := db.Exec(s.dialect.indexSQL, index, clause.Table{Name: t.Name}).Error; err != nil {
				return dbError(err, s.dialect.name, "create_tables", t.Name)
			}
		}
		s.markTable(t.Name)
	}

	entries := make([]tableEntry, 0, len(s.md.Names()))
	for _, e := range s.md.Entries() {
		columns, err := json.Marshal(e.Columns)
		if err != nil {
			return serializationError(err, s.dialect.name, "create_tables", e.Entity)
		}
		entries = append(entries, tableEntry{Entity: e.Entity, Kind: e.Kind, Columns: columns})
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entries).Error; err != nil {
		return dbError(err, s.dialect.name, "create_tables", "dataset_metadata")
	}

	s.log.Info("dataset tables created", logger.Int("tables", len(entries)))
	return nil
}

func (s *SQLStore) markTable(name string) {
	s.mu.Lock()
	s.tables[name] = true
	s.mu.Unlock()
}

// requireTable fails with a not-found error when the table was never created
func (s *SQLStore) requireTable(db *gorm.DB, name string) error {
	s.mu.RLock()
	known := s.tables[name]
	s.mu.RUnlock()
	if known {
		return nil
	}
	if !db.Migrator().HasTable(name) {
		return notFoundError("table", name, s.dialect.name)
	}
	s.markTable(name)
	return nil
}

// AddTableRow inserts one row
func (s *SQLStore) AddTableRow(ctx context.Context, table string, row Row) error {
	return s.AddTableData(ctx, table, []Row{row})
}

// AddTableData inserts rows in one transaction
func (s *SQLStore) AddTableData(ctx context.Context, table string, rows []Row) error {
	db, err := s.conn(ctx, "add_data")
	if err != nil {
		return err
	}
	t, err := s.md.Table(table)
	if err != nil {
		return err
	}
	prepared, err := prepareRows(s.dialect.name, t, rows)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}
	if err := s.requireTable(db, table); err != nil {
		return err
	}

	blobs := make([]blobRow, 0, len(prepared))
	for _, p := range prepared {
		payload, err := json.Marshal(p.row)
		if err != nil {
			return serializationError(err, s.dialect.name, "add_data", table)
		}
		b := blobRow{RowKey: p.key, Payload: payload}
		if t.Keyed {
			circuit, netlistID, phase := t.KeyValues(p.row)
			b.Circuit, b.NetlistID, b.Phase = &circuit, &netlistID, &phase
		}
		blobs = append(blobs, b)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).CreateInBatches(&blobs, insertBatchSize).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflictError(s.dialect.name, table, "")
	}
	if err != nil {
		return dbError(err, s.dialect.name, "add_data", table, "rows", len(blobs))
	}
	return nil
}

// GetTableRow returns the first row matching filter
func (s *SQLStore) GetTableRow(ctx context.Context, table string, filter Filter) (Row, error) {
	rows, err := s.GetTableData(ctx, table, filter)
	if err != nil {
		return nil, err
	}
	return firstRow(rows, table, filter)
}

// GetTableData returns the rows matching filter in insertion order. Key
// columns are filtered by the database, other columns after decoding.
func (s *SQLStore) GetTableData(ctx context.Context, table string, filter Filter) ([]Row, error) {
	db, err := s.conn(ctx, "get_data")
	if err != nil {
		return nil, err
	}
	t, err := s.md.Table(table)
	if err != nil {
		return nil, err
	}
	filter, err = normalizeFilter(t, filter)
	if err != nil {
		return nil, err
	}
	if err := s.requireTable(db, table); err != nil {
		return nil, err
	}

	q := db.Table(table)
	rest := make(Filter, len(filter))
	for name, v := range filter {
		if t.Keyed && isKeyColumn(name) && v != nil {
			q = q.Where(clause.Eq{Column: clause.Column{Name: name}, Value: v})
			continue
		}
		rest[name] = v
	}

	var blobs []blobRow
	if err := q.Order("id").Find(&blobs).Error; err != nil {
		return nil, dbError(err, s.dialect.name, "get_data", table)
	}

	out := make([]Row, 0, len(blobs))
	for _, b := range blobs {
		raw, err := decodePayload(b.Payload)
		if err != nil {
			return nil, serializationError(err, s.dialect.name, "get_data", table)
		}
		row, err := readRow(t, raw)
		if err != nil {
			return nil, err
		}
		if matches(row, rest) {
			out = append(out, row)
		}
	}
	return out, nil
}

func isKeyColumn(name string) bool {
	return name == schema.ColumnCircuit || name == schema.ColumnNetlistID || name == schema.ColumnPhase
}

// decodePayload keeps numbers as json.Number so integers survive exactly
func decodePayload(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// AddGraphData stores the graph under (table, key)
func (s *SQLStore) AddGraphData(ctx context.Context, table, key string, d graph.Dict) error {
	db, err := s.conn(ctx, "add_graph")
	if err != nil {
		return err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return err
	}
	if err := checkGraph(key, d); err != nil {
		return err
	}

	nodes, err := json.Marshal(d.Nodes)
	if err != nil {
		return serializationError(err, s.dialect.name, "add_graph", table)
	}
	edges, err := json.Marshal(d.Edges)
	if err != nil {
		return serializationError(err, s.dialect.name, "add_graph", table)
	}

	err = db.Create(&graphBlob{Entity: table, GraphKey: key, Nodes: nodes, Edges: edges}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflictError(s.dialect.name, table, key)
	}
	if err != nil {
		return dbError(err, s.dialect.name, "add_graph", table, "key", key)
	}
	return nil
}

// GetGraphData loads the graph stored under (table, key)
func (s *SQLStore) GetGraphData(ctx context.Context, table, key string) (graph.Dict, error) {
	db, err := s.conn(ctx, "get_graph")
	if err != nil {
		return graph.Dict{}, err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return graph.Dict{}, err
	}

	var blob graphBlob
	err = db.Where(&graphBlob{Entity: table, GraphKey: key}).Take(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return graph.Dict{}, notFoundError("graph", table, key)
	}
	if err != nil {
		return graph.Dict{}, dbError(err, s.dialect.name, "get_graph", table, "key", key)
	}

	d := graph.Dict{Nodes: map[string]graph.Attrs{}}
	if err := json.Unmarshal(blob.Nodes, &d.Nodes); err != nil {
		return graph.Dict{}, serializationError(err, s.dialect.name, "get_graph", table)
	}
	if err := json.Unmarshal(blob.Edges, &d.Edges); err != nil {
		return graph.Dict{}, serializationError(err, s.dialect.name, "get_graph", table)
	}
	return d, nil
}

// ListGraphKeys returns the graph keys of table in sorted order
func (s *SQLStore) ListGraphKeys(ctx context.Context, table string) ([]string, error) {
	db, err := s.conn(ctx, "list_graphs")
	if err != nil {
		return nil, err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return nil, err
	}

	var keys []string
	err = db.Model(&graphBlob{}).
		Where(&graphBlob{Entity: table}).
		Order("graph_key").
		Pluck("graph_key", &keys).Error
	if err != nil {
		return nil, dbError(err, s.dialect.name, "list_graphs", table)
	}
	// sorted in Go so every backend returns the same order
	slices.Sort(keys)
	return keys, nil
}

// LoadNetlist rebuilds a netlist from its rows and graph
func (s *SQLStore) LoadNetlist(ctx context.Context, key schema.NetlistKey) (*entity.Netlist, error) {
	return AssembleNetlist(ctx, s, key, s.log)
}
