package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

const sqliteCreateTable = `CREATE TABLE IF NOT EXISTS ? (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	row_key TEXT NOT NULL UNIQUE,
	circuit TEXT,
	netlist_id TEXT,
	phase TEXT,
	payload TEXT NOT NULL
)`

const sqliteCreateIndex = `CREATE INDEX IF NOT EXISTS ? ON ? (circuit, netlist_id, phase)`

// NewSQLiteStore creates the embedded relational backend on the database
// file at path. The parent directory is created on Open.
func NewSQLiteStore(path string, md *schema.Metadata, log logger.Logger) *SQLStore {
	return newSQLStore(sqlDialect{
		name: BackendSQLite,
		prepare: func() error {
			dir := filepath.Dir(path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fileError(err, "open", dir)
			}
			return nil
		},
		open: func() gorm.Dialector {
			return sqlite.Open(path)
		},
		createSQL: sqliteCreateTable,
		indexSQL:  sqliteCreateIndex,
		afterOpen: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
		},
	}, md, log)
}
