package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edaschema/edaschema/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edaschema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "debug: false\n")
	settings, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, BackendFile, settings.Storage.Backend)
	assert.Equal(t, "dataset", settings.Storage.File.Path)
	assert.Equal(t, 10*time.Second, settings.Storage.MongoDB.Timeout)
	assert.Equal(t, 10*time.Minute, settings.Snapshot.MemoryTTL)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
storage:
  backend: mysql
  mysql:
    host: db.internal
    port: "3307"
    username: eda
    password: secret
    database: designs
snapshot:
  enabled: true
  path: /tmp/snaps
  memoryttl: 90s
logging:
  default_level: debug
  module_levels:
    datastore: trace
`)
	settings, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, BackendMySQL, settings.Storage.Backend)
	assert.Equal(t, "eda:secret@tcp(db.internal:3307)/designs?charset=utf8mb4&parseTime=True&loc=Local", settings.Storage.MySQL.DSN())
	assert.True(t, settings.Snapshot.Enabled)
	assert.Equal(t, 90*time.Second, settings.Snapshot.MemoryTTL)
	assert.Equal(t, "trace", settings.Logging.ModuleLevels["datastore"])
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("EDASCHEMA_STORAGE_BACKEND", "sqlite")
	t.Setenv("EDASCHEMA_STORAGE_SQLITE_PATH", "/data/designs.db")

	settings, err := LoadWith(viper.New(), writeConfig(t, "storage:\n  backend: file\n"))
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, settings.Storage.Backend)
	assert.Equal(t, "/data/designs.db", settings.Storage.SQLite.Path)
}

func TestInvalidEnvironmentValue(t *testing.T) {
	t.Setenv("EDASCHEMA_STORAGE_BACKEND", "postgres")

	_, err := LoadWith(viper.New(), writeConfig(t, ""))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	valid := func() *Settings {
		return &Settings{Storage: StorageSettings{
			Backend: BackendMongoDB,
			MongoDB: MongoDBSettings{URI: "mongodb://localhost:27017", Database: "eda", Timeout: time.Second},
		}}
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"unknown backend", func(s *Settings) { s.Storage.Backend = "redis" }, "storage.backend"},
		{"bad uri", func(s *Settings) { s.Storage.MongoDB.URI = "http://x" }, "storage.mongodb.uri"},
		{"zero timeout", func(s *Settings) { s.Storage.MongoDB.Timeout = 0 }, "timeout"},
		{"bad mysql port", func(s *Settings) {
			s.Storage.Backend = BackendMySQL
			s.Storage.MySQL = MySQLSettings{Host: "h", Port: "abc", Database: "d"}
		}, "port"},
		{"snapshot without path", func(s *Settings) { s.Snapshot = SnapshotSettings{Enabled: true} }, "snapshot.path"},
		{"bad log level", func(s *Settings) { s.Logging.DefaultLevel = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	s.Storage.MySQL.Password = "hunter2"
	s.Storage.MongoDB.URI = "mongodb://admin:hunter2@db:27017"
	s.Telemetry.SentryDSN = "https://key@sentry.example/1"

	r := s.Redacted()
	assert.Equal(t, "[REDACTED]", r.Storage.MySQL.Password)
	assert.NotContains(t, r.Storage.MongoDB.URI, "hunter2")
	assert.Equal(t, "[REDACTED]", r.Telemetry.SentryDSN)
	assert.Equal(t, "hunter2", s.Storage.MySQL.Password, "original untouched")
}
