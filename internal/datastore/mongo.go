package datastore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/privacy"
	"github.com/edaschema/edaschema/internal/schema"
)

// defaultMongoTimeout applies when the settings leave the timeout unset
const defaultMongoTimeout = 10 * time.Second

// Collection name suffixes and the metadata collection
const (
	mongoTabularSuffix = "_tabular"
	mongoGraphSuffix   = "_graph"
	mongoMetadata      = "metadata"
)

// mongoNode is a graph node as stored in a graph document. Node ids are
// kept as values because instance names contain dots.
type mongoNode struct {
	ID    string      `bson:"id"`
	Attrs graph.Attrs `bson:"attrs,omitempty"`
}

// mongoGraph is one graph document
type mongoGraph struct {
	Key   string       `bson:"_id"`
	Nodes []mongoNode  `bson:"nodes"`
	Edges []graph.Edge `bson:"edges"`
}

// MongoStore is the document-store backend. Each table maps to the
// collection <table>_tabular whose documents are the rows with the row key
// as _id, and graph tables to <table>_graph with one document per graph.
// Filters use equality only.
type MongoStore struct {
	settings conf.MongoDBSettings
	md       *schema.Metadata
	log      logger.Logger

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore creates a document-store backend
func NewMongoStore(settings conf.MongoDBSettings, md *schema.Metadata, log logger.Logger) *MongoStore {
	if md == nil {
		md = schema.DatasetMetadata()
	}
	if log == nil {
		log = getLogger()
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultMongoTimeout
	}
	return &MongoStore{settings: settings, md: md, log: log.Module("mongodb")}
}

// Backend returns the backend name
func (s *MongoStore) Backend() string { return BackendMongoDB }

// Open connects and pings the primary
func (s *MongoStore) Open(ctx context.Context) error {
	opts := options.Client().
		ApplyURI(s.settings.URI).
		SetTimeout(s.settings.Timeout).
		SetServerSelectionTimeout(s.settings.Timeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return dbError(privacy.WrapError(err), BackendMongoDB, "open", "", "database", s.settings.Database)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		err = privacy.WrapError(err)
		s.log.Error("mongodb ping failed", logger.Error(err))
		return dbError(err, BackendMongoDB, "open", "", "database", s.settings.Database)
	}

	s.mu.Lock()
	s.client = client
	s.db = client.Database(s.settings.Database)
	s.mu.Unlock()
	s.log.Debug("connected", logger.String("database", s.settings.Database))
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()
	err := s.client.Disconnect(ctx)
	s.client, s.db = nil, nil
	if err != nil {
		return dbError(err, BackendMongoDB, "close", "")
	}
	return nil
}

func (s *MongoStore) database(operation string) (*mongo.Database, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, stateError(BackendMongoDB, operation)
	}
	return s.db, nil
}

// CreateDatasetTables creates the collections that do not exist yet,
// ensures the key index of every keyed table and upserts the metadata
// documents. Existing data is never dropped.
func (s *MongoStore) CreateDatasetTables(ctx context.Context, md *schema.Metadata) error {
	db, err := s.database("create_tables")
	if err != nil {
		return err
	}
	if md != nil {
		s.md = md
	}

	existing, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return dbError(err, BackendMongoDB, "create_tables", "")
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}
	ensure := func(name string) error {
		if have[name] {
			return nil
		}
		if err := db.CreateCollection(ctx, name); err != nil {
			return dbError(err, BackendMongoDB, "create_tables", name)
		}
		have[name] = true
		return nil
	}

	for _, t := range s.md.Tables() {
		tabular := t.Name + mongoTabularSuffix
		if err := ensure(tabular); err != nil {
			return err
		}
		if t.Keyed {
			keys := bson.D{}
			for _, c := range schema.KeyColumnNames() {
				keys = append(keys, bson.E{Key: c, Value: 1})
			}
			model := mongo.IndexModel{Keys: keys, Options: options.Index().SetName("netlist_key")}
			if _, err := db.Collection(tabular).Indexes().CreateOne(ctx, model); err != nil {
				return dbError(err, BackendMongoDB, "create_tables", tabular)
			}
		}
		if t.Graph {
			if err := ensure(t.Name + mongoGraphSuffix); err != nil {
				return err
			}
		}
	}

	meta := db.Collection(mongoMetadata)
	for _, e := range s.md.Entries() {
		_, err := meta.ReplaceOne(ctx, bson.D{{Key: "entity", Value: e.Entity}}, e,
			options.Replace().SetUpsert(true))
		if err != nil {
			return dbError(err, BackendMongoDB, "create_tables", mongoMetadata)
		}
	}

	s.log.Info("dataset collections created", logger.String("database", s.settings.Database))
	return nil
}

// requireCollection fails with a not-found error for collections that were
// never created
func (s *MongoStore) requireCollection(ctx context.Context, db *mongo.Database, table, name string) error {
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return dbError(err, BackendMongoDB, "get", table)
	}
	if len(names) == 0 {
		return notFoundError("collection", table, name)
	}
	return nil
}

// AddTableRow inserts one row
func (s *MongoStore) AddTableRow(ctx context.Context, table string, row Row) error {
	return s.AddTableData(ctx, table, []Row{row})
}

// AddTableData inserts the rows as documents keyed by their row key. The
// insert is ordered: on a duplicate key the rows before it stay written.
func (s *MongoStore) AddTableData(ctx context.Context, table string, rows []Row) error {
	db, err := s.database("add_data")
	if err != nil {
		return err
	}
	t, err := s.md.Table(table)
	if err != nil {
		return err
	}
	prepared, err := prepareRows(BackendMongoDB, t, rows)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	docs := make([]any, 0, len(prepared))
	for _, p := range prepared {
		doc := make(bson.M, len(p.row)+1)
		maps.Copy(doc, p.row)
		doc["_id"] = p.key
		docs = append(docs, doc)
	}

	_, err = db.Collection(table+mongoTabularSuffix).InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if mongo.IsDuplicateKeyError(err) {
		return conflictError(BackendMongoDB, table, "")
	}
	if err != nil {
		return dbError(err, BackendMongoDB, "add_data", table, "rows", len(docs))
	}
	return nil
}

// GetTableRow returns the first row matching filter
func (s *MongoStore) GetTableRow(ctx context.Context, table string, filter Filter) (Row, error) {
	rows, err := s.GetTableData(ctx, table, filter)
	if err != nil {
		return nil, err
	}
	return firstRow(rows, table, filter)
}

// GetTableData returns the rows matching filter ordered by row key
func (s *MongoStore) GetTableData(ctx context.Context, table string, filter Filter) ([]Row, error) {
	db, err := s.database("get_data")
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
	name := table + mongoTabularSuffix
	if err := s.requireCollection(ctx, db, table, name); err != nil {
		return nil, err
	}

	query := bson.D{}
	for _, k := range slices.Sorted(maps.Keys(filter)) {
		query = append(query, bson.E{Key: k, Value: filter[k]})
	}
	cursor, err := db.Collection(name).Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, dbError(err, BackendMongoDB, "get_data", table)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, dbError(err, BackendMongoDB, "get_data", table)
	}

	out := make([]Row, 0, len(docs))
	for _, doc := range docs {
		delete(doc, "_id")
		row, err := readRow(t, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// AddGraphData inserts one graph document
func (s *MongoStore) AddGraphData(ctx context.Context, table, key string, d graph.Dict) error {
	db, err := s.database("add_graph")
	if err != nil {
		return err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return err
	}
	if err := checkGraph(key, d); err != nil {
		return err
	}

	doc := mongoGraph{Key: key, Nodes: make([]mongoNode, 0, len(d.Nodes)), Edges: d.Edges}
	for _, id := range slices.Sorted(maps.Keys(d.Nodes)) {
		doc.Nodes = append(doc.Nodes, mongoNode{ID: id, Attrs: d.Nodes[id]})
	}
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}

	_, err = db.Collection(table+mongoGraphSuffix).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return conflictError(BackendMongoDB, table, key)
	}
	if err != nil {
		return dbError(err, BackendMongoDB, "add_graph", table, "key", key)
	}
	return nil
}

// GetGraphData reads the graph document stored under key
func (s *MongoStore) GetGraphData(ctx context.Context, table, key string) (graph.Dict, error) {
	db, err := s.database("get_graph")
	if err != nil {
		return graph.Dict{}, err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return graph.Dict{}, err
	}

	var doc mongoGraph
	err = db.Collection(table+mongoGraphSuffix).FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return graph.Dict{}, notFoundError("graph", table, key)
	}
	if err != nil {
		return graph.Dict{}, dbError(err, BackendMongoDB, "get_graph", table, "key", key)
	}

	d := graph.Dict{Nodes: make(map[string]graph.Attrs, len(doc.Nodes)), Edges: doc.Edges}
	for _, n := range doc.Nodes {
		d.Nodes[n.ID] = normalizeAttrs(n.Attrs)
	}
	for i := range d.Edges {
		d.Edges[i].Attrs = normalizeAttrs(d.Edges[i].Attrs)
	}
	return d, nil
}

// normalizeAttrs rewrites decoded BSON values into the shapes encoding/json
// yields: documents become maps, arrays become []any and every number a
// float64. Graphs then compare equal whichever backend stored them.
func normalizeAttrs(a graph.Attrs) graph.Attrs {
	if a == nil {
		return nil
	}
	out := make(graph.Attrs, len(a))
	for k, v := range a {
		out[k] = normalizeBSON(v)
	}
	return out
}

func normalizeBSON(v any) any {
	switch x := v.(type) {
	case bson.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = normalizeBSON(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = normalizeBSON(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = normalizeBSON(e)
		}
		return m
	case bson.A:
		return normalizeSlice(x)
	case []any:
		return normalizeSlice(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func normalizeSlice(x []any) []any {
	out := make([]any, len(x))
	for i, e := range x {
		out[i] = normalizeBSON(e)
	}
	return out
}

// ListGraphKeys returns the graph keys of table in sorted order
func (s *MongoStore) ListGraphKeys(ctx context.Context, table string) ([]string, error) {
	db, err := s.database("list_graphs")
	if err != nil {
		return nil, err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return nil, err
	}

	cursor, err := db.Collection(table+mongoGraphSuffix).Find(ctx, bson.D{},
		options.Find().
			SetProjection(bson.D{{Key: "_id", Value: 1}}).
			SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, dbError(err, BackendMongoDB, "list_graphs", table)
	}
	var docs []struct {
		Key string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, dbError(err, BackendMongoDB, "list_graphs", table)
	}
	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i] = doc.Key
	}
	return keys, nil
}
