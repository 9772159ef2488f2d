// Package logger provides a structured, module-aware logging system built on Go's standard log/slog.
//
// Every subsystem of the EDA data layer logs through a module-scoped
// Logger obtained from the CentralLogger:
//
//	central, err := logger.NewCentralLogger(&settings.Logging)
//	if err != nil {
//	    return err
//	}
//	defer central.Close()
//
//	storeLog := central.Module("datastore")
//	fileLog := storeLog.Module("file") // module="datastore.file"
//	fileLog.Info("table created", logger.String("table", "gates"))
//
// Console output is human-readable text without timestamps. File output is
// JSON with RFC3339 timestamps. Per-module files and levels are configured
// through LoggingConfig.ModuleOutputs and LoggingConfig.ModuleLevels.
//
// Operations that span several storage calls carry a trace id in their
// context (see WithTraceID and NewTraceContext); WithContext copies it onto
// every record.
//
// Use NewSlogLogger with a bytes.Buffer or io.Discard in tests.
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel names a severity as written in the configuration
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field. Keys are interned with unique.Make
// so repeated keys such as "table" or "circuit" share one allocation.
type Field struct {
	Key   string
	Value any
}

func internKey(key string) string {
	return unique.Make(key).Value()
}

var (
	errorKey = internKey("error")
	tableKey = internKey("table")
	keyKey   = internKey("key")
)

// Logger is passed to every component that logs
type Logger interface {
	// Module returns a child logger; nested names are joined with "."
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	// WithContext picks up the trace id of ctx
	WithContext(ctx context.Context) Logger

	Log(level LogLevel, msg string, fields ...Field)
	Flush() error
}

// String returns a string field. Values of sensitive keys and embedded
// credentials are redacted when the record is written.
func String(key, value string) Field { return Field{Key: internKey(key), Value: value} }

func Int(key string, value int) Field { return Field{Key: internKey(key), Value: value} }

func Int64(key string, value int64) Field { return Field{Key: internKey(key), Value: value} }

func Float64(key string, value float64) Field { return Field{Key: internKey(key), Value: value} }

func Bool(key string, value bool) Field { return Field{Key: internKey(key), Value: value} }

func Time(key string, value time.Time) Field { return Field{Key: internKey(key), Value: value} }

// Duration renders value in time.Duration.String form
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value.String()}
}

// Error returns the "error" field holding err's message
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

func Any(key string, value any) Field { return Field{Key: internKey(key), Value: value} }

// Table is the "table" field carried by storage records
func Table(name string) Field { return Field{Key: tableKey, Value: name} }

// Key is the "key" field for row and graph identifiers
func Key(key string) Field { return Field{Key: keyKey, Value: key} }
