// interfaces.go: this code defines the storage contract shared by all backends
package datastore

import (
	"context"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// Backend names
const (
	BackendFile    = conf.BackendFile
	BackendMongoDB = conf.BackendMongoDB
	BackendSQLite  = conf.BackendSQLite
	BackendMySQL   = conf.BackendMySQL
)

// Row is one table row keyed by column name
type Row = map[string]any

// Filter selects rows whose columns equal the given values
type Filter = map[string]any

// Interface abstracts the storage medium of a dataset. Writes are
// append-only: there is no update or delete, and a duplicate primary key
// is a conflict. Reads return rows in a stable backend-defined order.
//
// Errors are categorized: errors.IsNotFound for absent tables, rows and
// graphs, errors.IsValidation for rows that do not match the table schema,
// errors.IsBackend for everything else.
type Interface interface {
	Open(ctx context.Context) error
	Close() error
	Backend() string

	// CreateDatasetTables creates storage for every table of md. It is
	// idempotent and never drops data. md becomes the metadata later
	// calls validate against.
	CreateDatasetTables(ctx context.Context, md *schema.Metadata) error

	AddTableRow(ctx context.Context, table string, row Row) error
	AddTableData(ctx context.Context, table string, rows []Row) error
	GetTableRow(ctx context.Context, table string, filter Filter) (Row, error)
	GetTableData(ctx context.Context, table string, filter Filter) ([]Row, error)

	AddGraphData(ctx context.Context, table, key string, g graph.Dict) error
	GetGraphData(ctx context.Context, table, key string) (graph.Dict, error)
	ListGraphKeys(ctx context.Context, table string) ([]string, error)
}

// New creates the backend selected in settings. The store is not opened.
func New(settings *conf.Settings, md *schema.Metadata, log logger.Logger) (Interface, error) {
	if md == nil {
		md = schema.DatasetMetadata()
	}
	if log == nil {
		log = getLogger()
	}

	switch settings.Storage.Backend {
	case BackendFile:
		return NewFileStore(settings.Storage.File.Path, md, log), nil
	case BackendMongoDB:
		return NewMongoStore(settings.Storage.MongoDB, md, log), nil
	case BackendSQLite:
		return NewSQLiteStore(settings.Storage.SQLite.Path, md, log), nil
	case BackendMySQL:
		return NewMySQLStore(settings.Storage.MySQL, md, log), nil
	default:
		return nil, errors.Newf("unknown storage backend %q", settings.Storage.Backend).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
