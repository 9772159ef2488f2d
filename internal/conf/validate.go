// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var backendKinds = []string{BackendFile, BackendMongoDB, BackendSQLite, BackendMySQL}

var logLevels = []string{"", "trace", "debug", "info", "warn", "error"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateStorageSettings(&settings.Storage); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSnapshotSettings(&settings.Snapshot); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if !slices.Contains(logLevels, strings.ToLower(settings.Logging.DefaultLevel)) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("unknown log level %q", settings.Logging.DefaultLevel))
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateStorageSettings(settings *StorageSettings) error {
	switch settings.Backend {
	case BackendFile:
		if settings.File.Path == "" {
			return fmt.Errorf("storage.file.path is required for the file backend")
		}
	case BackendMongoDB:
		if !strings.HasPrefix(settings.MongoDB.URI, "mongodb://") && !strings.HasPrefix(settings.MongoDB.URI, "mongodb+srv://") {
			return fmt.Errorf("storage.mongodb.uri must start with mongodb:// or mongodb+srv://")
		}
		if settings.MongoDB.Database == "" {
			return fmt.Errorf("storage.mongodb.database is required")
		}
		if settings.MongoDB.Timeout <= 0 {
			return fmt.Errorf("storage.mongodb.timeout must be positive")
		}
	case BackendSQLite:
		if settings.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for the sqlite backend")
		}
	case BackendMySQL:
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			return fmt.Errorf("storage.mysql.host and storage.mysql.database are required")
		}
		if port, err := strconv.Atoi(settings.MySQL.Port); err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("storage.mysql.port %q is not a valid port", settings.MySQL.Port)
		}
	default:
		return fmt.Errorf("storage.backend %q must be one of %v", settings.Backend, backendKinds)
	}
	return nil
}

func validateSnapshotSettings(settings *SnapshotSettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.Path == "" {
		return fmt.Errorf("snapshot.path is required when snapshots are enabled")
	}
	if settings.MemoryTTL < 0 {
		return fmt.Errorf("snapshot.memoryttl must not be negative")
	}
	return nil
}
