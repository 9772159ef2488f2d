// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the keys whose environment values are validated
// before viper sees them. Every other key is still reachable through
// AutomaticEnv with the EDASCHEMA_ prefix.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"storage.backend", "EDASCHEMA_STORAGE_BACKEND", validateEnvBackend},
		{"storage.file.path", "EDASCHEMA_STORAGE_FILE_PATH", nil},
		{"storage.mongodb.uri", "EDASCHEMA_STORAGE_MONGODB_URI", nil},
		{"storage.mongodb.timeout", "EDASCHEMA_STORAGE_MONGODB_TIMEOUT", validateEnvDuration},
		{"storage.sqlite.path", "EDASCHEMA_STORAGE_SQLITE_PATH", nil},
		{"storage.mysql.password", "EDASCHEMA_STORAGE_MYSQL_PASSWORD", nil},
		{"snapshot.memoryttl", "EDASCHEMA_SNAPSHOT_MEMORYTTL", validateEnvDuration},
		{"telemetry.sentrydsn", "EDASCHEMA_TELEMETRY_SENTRYDSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBackend(value string) error {
	if !slices.Contains(backendKinds, value) {
		return fmt.Errorf("must be one of %v", backendKinds)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration like 10s: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
