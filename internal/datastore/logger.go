package datastore

import "github.com/edaschema/edaschema/internal/logger"

// getLogger returns the datastore module logger of the global logger
func getLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
