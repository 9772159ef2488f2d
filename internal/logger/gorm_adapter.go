package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerAdapter routes GORM output of the SQL backends into a Logger.
// Statements are logged at TRACE, slow statements and failures at WARN.
type GormLoggerAdapter struct {
	log  Logger
	slow time.Duration
}

// NewGormLoggerAdapter returns an adapter logging to log. A zero slow
// threshold disables slow statement warnings.
func NewGormLoggerAdapter(log Logger, slow time.Duration) *GormLoggerAdapter {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &GormLoggerAdapter{log: log, slow: slow}
}

// LogMode ignores GORM levels, module levels decide what is written
func (a *GormLoggerAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface { return a }

func (a *GormLoggerAdapter) Info(_ context.Context, msg string, data ...any) {
	a.log.Debug(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.log.Warn(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Error(_ context.Context, msg string, data ...any) {
	a.log.Error(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	stmt, rows := fc()
	fields := []Field{
		String("sql", stmt),
		Int64("rows_affected", rows),
		Int64("duration_ms", elapsed.Milliseconds()),
	}
	log := a.log.WithContext(ctx)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("statement failed", append(fields, Error(err))...)
		return
	}
	if a.slow > 0 && elapsed > a.slow {
		log.Warn("slow statement", append(fields, Duration("threshold", a.slow))...)
		return
	}
	log.Trace("statement", fields...)
}
