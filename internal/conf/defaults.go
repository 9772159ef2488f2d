// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/edaschema/edaschema/internal/logger"
)

// setDefaultConfig registers default values on v.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.file.path", "dataset")
	v.SetDefault("storage.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongodb.database", "edaschema")
	v.SetDefault("storage.mongodb.timeout", 10*time.Second)
	v.SetDefault("storage.sqlite.path", "edaschema.db")
	v.SetDefault("storage.mysql.host", "localhost")
	v.SetDefault("storage.mysql.port", "3306")
	v.SetDefault("storage.mysql.username", "")
	v.SetDefault("storage.mysql.password", "")
	v.SetDefault("storage.mysql.database", "edaschema")

	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.path", ".snapshots")
	v.SetDefault("snapshot.memoryttl", 10*time.Minute)

	v.SetDefault("telemetry.sentrydsn", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}
