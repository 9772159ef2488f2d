package datastore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// File backend layout below the dataset home directory
const (
	fileMetadataName = "metadata.yaml"
	fileTableName    = "table.csv"
	fileGraphDir     = "graphs"
	fileGraphExt     = ".json"
	fileHashedDir    = "hashed"

	// maxGraphFileName is the file name limit of common filesystems
	maxGraphFileName = 255
)

// FileStore keeps every table as a CSV file and every graph as a JSON
// document below a dataset home directory:
//
//	<home>/metadata.yaml
//	<home>/<table>/table.csv
//	<home>/<table>/graphs/<key>.json
//	<home>/<table>/graphs/hashed/<xxhash of key>.json
//
// Keys whose escaped form does not fit in a file name are stored under
// their digest, in a document that also carries the key. String cells are
// escaped so that carriage returns survive the CSV reader.
//
// Rows are returned in insertion order. Writers in other processes are not
// detected; two processes appending to one home corrupt it.
type FileStore struct {
	home string
	md   *schema.Metadata
	log  logger.Logger

	mu     sync.Mutex
	opened bool
	keys   map[string]map[string]struct{} // row keys per table, loaded lazily
}

// fileMetadata is the document written to metadata.yaml
type fileMetadata struct {
	Tables []schema.Entry `yaml:"tables"`
}

// NewFileStore creates a file backend rooted at home
func NewFileStore(home string, md *schema.Metadata, log logger.Logger) *FileStore {
	if md == nil {
		md = schema.DatasetMetadata()
	}
	if log == nil {
		log = getLogger()
	}
	return &FileStore{
		home: home,
		md:   md,
		log:  log.Module("file"),
		keys: make(map[string]map[string]struct{}),
	}
}

// Backend returns the backend name
func (s *FileStore) Backend() string { return BackendFile }

// Home returns the dataset home directory
func (s *FileStore) Home() string { return s.home }

// Open creates the home directory if needed
func (s *FileStore) Open(ctx context.Context) error {
	if s.home == "" {
		return validationError("file backend requires a dataset directory", "storage.file.path", s.home)
	}
	if err := os.MkdirAll(s.home, 0o755); err != nil {
		return fileError(err, "open", s.home)
	}
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	s.log.Debug("dataset directory opened", logger.String("path", s.home))
	return nil
}

// Close forgets the cached key index
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	clear(s.keys)
	return nil
}

func (s *FileStore) checkOpen(operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return stateError(BackendFile, operation)
	}
	return nil
}

func (s *FileStore) tablePath(table string) string {
	return filepath.Join(s.home, table, fileTableName)
}

// graphPath escapes key into a single file name. The second result
// reports whether the name is a digest of the key.
func (s *FileStore) graphPath(table, key string) (string, bool) {
	dir := filepath.Join(s.home, table, fileGraphDir)
	name := url.PathEscape(key) + fileGraphExt
	if len(name) <= maxGraphFileName {
		return filepath.Join(dir, name), false
	}
	return filepath.Join(dir, fileHashedDir, fmt.Sprintf("%016x", xxhash.Sum64String(key))+fileGraphExt), true
}

// hashedGraph is the document of a graph stored under a key digest
type hashedGraph struct {
	Key   string     `json:"key"`
	Graph graph.Dict `json:"graph"`
}

var cellEscaper = strings.NewReplacer(`\`, `\\`, "\r", `\r`)

// escapeCell protects carriage returns, which encoding/csv folds into
// newlines inside quoted fields.
func escapeCell(s string) string {
	if !strings.ContainsAny(s, "\\\r") {
		return s
	}
	return cellEscaper.Replace(s)
}

func unescapeCell(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'r':
				b.WriteByte('\r')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// CreateDatasetTables creates one directory with a CSV header per table.
// Existing tables are kept as long as their header matches.
func (s *FileStore) CreateDatasetTables(ctx context.Context, md *schema.Metadata) error {
	if err := s.checkOpen("create_tables"); err != nil {
		return err
	}
	if md != nil {
		s.md = md
	}

	for _, t := range s.md.Tables() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(s.home, t.Name, fileGraphDir), 0o755); err != nil {
			return fileError(err, "create_tables", filepath.Join(s.home, t.Name))
		}
		if err := s.ensureHeader(t); err != nil {
			return err
		}
	}

	raw, err := yaml.Marshal(fileMetadata{Tables: s.md.Entries()})
	if err != nil {
		return serializationError(err, BackendFile, "create_tables", fileMetadataName)
	}
	path := filepath.Join(s.home, fileMetadataName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fileError(err, "create_tables", path)
	}

	s.log.Info("dataset tables created",
		logger.String("path", s.home),
		logger.Int("tables", len(s.md.Names())))
	return nil
}

// ensureHeader writes the header of a new table file or checks the header
// of an existing one.
func (s *FileStore) ensureHeader(t *schema.Table) error {
	path := s.tablePath(t.Name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fileError(err, "create_tables", path)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	switch {
	case errors.Is(err, io.EOF):
		w := csv.NewWriter(f)
		if err := w.Write(t.ColumnNames()); err != nil {
			return fileError(err, "create_tables", path)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return fileError(err, "create_tables", path)
		}
		return nil
	case err != nil:
		return fileError(err, "create_tables", path)
	}

	if !slices.Equal(header, t.ColumnNames()) {
		return errors.Newf("%s: existing header does not match table columns", t.Name).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("backend", BackendFile).
			Context("header", strings.Join(header, ",")).
			Table(t.Name).
			Build()
	}
	return nil
}

// AddTableRow appends one row
func (s *FileStore) AddTableRow(ctx context.Context, table string, row Row) error {
	return s.AddTableData(ctx, table, []Row{row})
}

// AddTableData validates the whole batch, then appends it to the table file
func (s *FileStore) AddTableData(ctx context.Context, table string, rows []Row) error {
	if err := s.checkOpen("add_data"); err != nil {
		return err
	}
	t, err := s.md.Table(table)
	if err != nil {
		return err
	}
	prepared, err := prepareRows(BackendFile, t, rows)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.keyIndexLocked(t)
	if err != nil {
		return err
	}
	for _, p := range prepared {
		if _, dup := index[p.key]; dup {
			return conflictError(BackendFile, table, p.key)
		}
	}

	path := s.tablePath(table)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fileError(err, "add_data", path)
	}
	defer f.Close()

	columns := t.Columns()
	record := make([]string, len(columns))
	w := csv.NewWriter(f)
	for _, p := range prepared {
		for i, c := range columns {
			record[i] = escapeCell(c.FormatText(p.row[c.Name]))
		}
		if err := w.Write(record); err != nil {
			return fileError(err, "add_data", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fileError(err, "add_data", path)
	}

	for _, p := range prepared {
		index[p.key] = struct{}{}
	}
	return nil
}

// keyIndexLocked returns the row keys of t, reading the table once
func (s *FileStore) keyIndexLocked(t *schema.Table) (map[string]struct{}, error) {
	if index, ok := s.keys[t.Name]; ok {
		return index, nil
	}
	rows, err := s.readTable(t)
	if err != nil {
		return nil, err
	}
	index := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		key, err := t.RowKey(row)
		if err != nil {
			return nil, err
		}
		index[key] = struct{}{}
	}
	s.keys[t.Name] = index
	return index, nil
}

// readTable parses every row of the table file
func (s *FileStore) readTable(t *schema.Table) ([]Row, error) {
	path := s.tablePath(t.Name)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFoundError("table", t.Name, path)
	}
	if err != nil {
		return nil, fileError(err, "read", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, notFoundError("table", t.Name, path)
	}
	if err != nil {
		return nil, fileError(err, "read", path)
	}

	columns := make([]schema.Column, len(header))
	for i, name := range header {
		c, ok := t.Column(name)
		if !ok {
			return nil, serializationError(errors.Newf("unknown column %s in %s", name, path).Build(),
				BackendFile, "read", t.Name)
		}
		columns[i] = c
	}

	var rows []Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fileError(err, "read", path)
		}
		raw := make(map[string]any, len(record))
		for i, cell := range record {
			v, err := columns[i].ParseText(unescapeCell(cell))
			if err != nil {
				return nil, serializationError(err, BackendFile, "read", t.Name)
			}
			raw[columns[i].Name] = v
		}
		row, err := readRow(t, raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetTableRow returns the first row matching filter
func (s *FileStore) GetTableRow(ctx context.Context, table string, filter Filter) (Row, error) {
	rows, err := s.GetTableData(ctx, table, filter)
	if err != nil {
		return nil, err
	}
	return firstRow(rows, table, filter)
}

// GetTableData returns the rows matching filter in insertion order
func (s *FileStore) GetTableData(ctx context.Context, table string, filter Filter) ([]Row, error) {
	if err := s.checkOpen("get_data"); err != nil {
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
	rows, err := s.readTable(t)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if matches(row, filter) {
			out = append(out, row)
		}
	}
	return out, nil
}

// AddGraphData writes the graph as a new JSON file. An existing graph with
// the same key is a conflict.
func (s *FileStore) AddGraphData(ctx context.Context, table, key string, d graph.Dict) error {
	if err := s.checkOpen("add_graph"); err != nil {
		return err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return err
	}
	if err := checkGraph(key, d); err != nil {
		return err
	}

	path, hashed := s.graphPath(table, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fileError(err, "add_graph", path)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		if hashed {
			if stored, err := s.readGraph(path, true); err == nil && stored.Key != key {
				return dbError(errors.Newf("graph keys %q and %q share digest file %s", stored.Key, key, filepath.Base(path)).Build(),
					BackendFile, "add_graph", table)
			}
		}
		return conflictError(BackendFile, table, key)
	}
	if err != nil {
		return fileError(err, "add_graph", path)
	}

	var doc any = d
	if hashed {
		doc = hashedGraph{Key: key, Graph: d}
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		f.Close()
		os.Remove(path)
		return serializationError(err, BackendFile, "add_graph", table)
	}
	if err := f.Close(); err != nil {
		return fileError(err, "add_graph", path)
	}
	return nil
}

// GetGraphData reads the graph stored under key
func (s *FileStore) GetGraphData(ctx context.Context, table, key string) (graph.Dict, error) {
	if err := s.checkOpen("get_graph"); err != nil {
		return graph.Dict{}, err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return graph.Dict{}, err
	}
	if err := checkGraphKey(key); err != nil {
		return graph.Dict{}, err
	}

	path, hashed := s.graphPath(table, key)
	doc, err := s.readGraph(path, hashed)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && doc.Key != key) {
		return graph.Dict{}, notFoundError("graph", table, key)
	}
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return graph.Dict{}, serializationError(err, BackendFile, "get_graph", table)
		}
		return graph.Dict{}, fileError(err, "get_graph", path)
	}
	return doc.Graph, nil
}

// readGraph decodes a graph file. For plain files the key is recovered
// from the file name.
func (s *FileStore) readGraph(path string, hashed bool) (hashedGraph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return hashedGraph{}, err
	}
	var doc hashedGraph
	if hashed {
		err = json.Unmarshal(raw, &doc)
		return doc, err
	}
	doc.Key, err = url.PathUnescape(strings.TrimSuffix(filepath.Base(path), fileGraphExt))
	if err != nil {
		return hashedGraph{}, err
	}
	err = json.Unmarshal(raw, &doc.Graph)
	return doc, err
}

// ListGraphKeys returns the graph keys of table in sorted order
func (s *FileStore) ListGraphKeys(ctx context.Context, table string) ([]string, error) {
	if err := s.checkOpen("list_graphs"); err != nil {
		return nil, err
	}
	if _, err := graphTable(s.md, table); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.home, table, fileGraphDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFoundError("table", table, dir)
	}
	if err != nil {
		return nil, fileError(err, "list_graphs", dir)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileGraphExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(e.Name(), fileGraphExt))
		if err != nil {
			s.log.Warn("skipping graph file with malformed name", logger.String("file", e.Name()))
			continue
		}
		keys = append(keys, key)
	}

	hashedDir := filepath.Join(dir, fileHashedDir)
	hashedEntries, err := os.ReadDir(hashedDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fileError(err, "list_graphs", hashedDir)
	}
	for _, e := range hashedEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileGraphExt) {
			continue
		}
		doc, err := s.readGraph(filepath.Join(hashedDir, e.Name()), true)
		if err != nil {
			return nil, serializationError(err, BackendFile, "list_graphs", table)
		}
		keys = append(keys, doc.Key)
	}
	slices.Sort(keys)
	return keys, nil
}
