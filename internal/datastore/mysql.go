package datastore

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/schema"
)

// Keys compare bytewise as in the other backends: net names that differ
// only in case are distinct.
const mysqlTableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin"

// The index is declared inline, MySQL has no CREATE INDEX IF NOT EXISTS.
const mysqlCreateTable = "CREATE TABLE IF NOT EXISTS ? (" +
	"id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY, " +
	"row_key VARCHAR(512) COLLATE utf8mb4_bin NOT NULL, " +
	"circuit VARCHAR(191) COLLATE utf8mb4_bin NULL, " +
	"netlist_id VARCHAR(191) COLLATE utf8mb4_bin NULL, " +
	"phase VARCHAR(32) COLLATE utf8mb4_bin NULL, " +
	"payload JSON NOT NULL, " +
	"UNIQUE KEY uk_row_key (row_key), " +
	"KEY idx_netlist (circuit, netlist_id, phase)" +
	") " + mysqlTableOptions

// NewMySQLStore creates the relational backend on a MySQL server
func NewMySQLStore(settings conf.MySQLSettings, md *schema.Metadata, log logger.Logger) *SQLStore {
	return newSQLStore(sqlDialect{
		name: BackendMySQL,
		open: func() gorm.Dialector {
			return mysql.Open(settings.DSN())
		},
		createSQL:    mysqlCreateTable,
		tableOptions: mysqlTableOptions,
	}, md, log)
}
