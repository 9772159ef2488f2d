// Package conf loads edaschema settings from YAML, environment variables and
// command line flags through viper.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/privacy"
)

// Storage backend kinds
const (
	BackendFile    = "file"
	BackendMongoDB = "mongodb"
	BackendSQLite  = "sqlite"
	BackendMySQL   = "mysql"
)

// EnvPrefix is prepended to every environment override, e.g.
// EDASCHEMA_STORAGE_BACKEND=sqlite.
const EnvPrefix = "EDASCHEMA"

// Settings is the root configuration
type Settings struct {
	Debug bool // verbose SQL and driver logging

	Storage   StorageSettings
	Snapshot  SnapshotSettings
	Telemetry TelemetrySettings
	Metrics   MetricsSettings
	Logging   logger.LoggingConfig
}

// StorageSettings selects one backend and carries the connection parameters
// for every kind. Only the section named by Backend is used.
type StorageSettings struct {
	Backend string // file, mongodb, sqlite or mysql

	File    FileSettings
	MongoDB MongoDBSettings
	SQLite  SQLiteSettings
	MySQL   MySQLSettings
}

// FileSettings configures the flat-file backend
type FileSettings struct {
	Path string // dataset home directory
}

// MongoDBSettings configures the document-store backend
type MongoDBSettings struct {
	URI      string        // mongodb:// connection string
	Database string        // database name
	Timeout  time.Duration // connect and per-operation timeout
}

// SQLiteSettings configures the embedded relational backend
type SQLiteSettings struct {
	Path string // database file
}

// MySQLSettings configures the relational backend on a MySQL server
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN returns the go-sql-driver connection string.
func (m MySQLSettings) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

// SnapshotSettings configures the binary snapshot cache
type SnapshotSettings struct {
	Enabled   bool
	Path      string        // directory holding snapshot files
	MemoryTTL time.Duration `mapstructure:"memoryttl"` // lifetime of in-memory entries
}

// TelemetrySettings configures error reporting
type TelemetrySettings struct {
	SentryDSN string `mapstructure:"sentrydsn"`
}

// MetricsSettings toggles Prometheus instrumentation of the datastore
type MetricsSettings struct {
	Enabled bool
	Listen  string // address of the /metrics endpoint, empty to disable it
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file at path (optional, may be empty),
// applies environment overrides and validates the result. The global viper
// instance is used so cobra flags bound with viper.BindPFlags take effect.
func Load(path string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := LoadWith(viper.GetViper(), path)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadWith is Load on an explicit viper instance.
func LoadWith(v *viper.Viper, path string) (*Settings, error) {
	if err := initViper(v, path); err != nil {
		return nil, errors.New(fmt.Errorf("error initializing viper: %w", err)).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("config_path", path).
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return settings, nil
}

// initViper registers defaults and environment bindings and reads the
// config file when one is given or found in the default locations.
func initViper(v *viper.Viper, path string) error {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("edaschema")
	v.SetConfigType("yaml")
	for _, dir := range defaultConfigPaths() {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// defaults and environment only
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// defaultConfigPaths lists directories searched for edaschema.yaml
func defaultConfigPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "edaschema"))
	}
	return paths
}

// GetSettings returns the settings from the last successful Load
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Redacted returns a copy with credentials removed, suitable for printing.
func (s *Settings) Redacted() Settings {
	out := *s
	if out.Storage.MySQL.Password != "" {
		out.Storage.MySQL.Password = "[REDACTED]"
	}
	out.Storage.MongoDB.URI = privacy.RedactURL(out.Storage.MongoDB.URI)
	if out.Telemetry.SentryDSN != "" {
		out.Telemetry.SentryDSN = "[REDACTED]"
	}
	return out
}
