package logger

import (
	"context"
	"log/slog"
	"time"
)

// moduleLogger is the Logger handed out by CentralLogger.Module and the
// standalone constructors.
type moduleLogger struct {
	module  string
	traceID string
	logger  *slog.Logger
	level   slog.Level
}

func (l *moduleLogger) Module(name string) Logger {
	child := *l
	if l.module != "" {
		child.module = l.module + "." + name
	} else {
		child.module = name
	}
	return &child
}

func (l *moduleLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, fieldToAttr(f))
	}
	child := *l
	child.logger = l.logger.With(args...)
	return &child
}

func (l *moduleLogger) WithContext(ctx context.Context) Logger {
	id := TraceIDFromContext(ctx)
	if id == "" || id == l.traceID {
		return l
	}
	child := *l
	child.traceID = id
	return &child
}

func (l *moduleLogger) Trace(msg string, fields ...Field) { l.log(traceLevelValue, msg, fields) }
func (l *moduleLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *moduleLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *moduleLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *moduleLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.log(parseLogLevel(string(level)), msg, fields)
}

// Flush is a no-op, files are flushed by their CentralLogger
func (l *moduleLogger) Flush() error { return nil }

func (l *moduleLogger) log(level slog.Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields)+2)
	if l.module != "" {
		attrs = append(attrs, slog.String(moduleKey, l.module))
	}
	if l.traceID != "" {
		attrs = append(attrs, slog.String(traceIDKey, l.traceID))
	}
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

// fieldToAttr converts a Field, redacting secrets in string values
func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, redactString(f.Key, v))
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case uint64:
		return slog.Uint64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, v)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.Duration(f.Key, v)
	case nil:
		return slog.Any(f.Key, nil)
	default:
		if isSensitiveKey(f.Key) {
			return slog.String(f.Key, redacted)
		}
		return slog.Any(f.Key, v)
	}
}
