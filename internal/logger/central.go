package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	// IANA zones for logging.timezone on hosts without a zoneinfo database
	_ "time/tzdata"
)

// traceLevelValue sits below slog.LevelDebug
const traceLevelValue = slog.Level(-8)

// CentralLogger owns the log outputs and hands out module loggers. Records
// of a module go to its own file when one is configured and to the shared
// console and main file otherwise.
type CentralLogger struct {
	cfg  *LoggingConfig
	tz   *time.Location
	base slog.Handler

	mu       sync.RWMutex
	main     *logFile
	modules  map[string]*logFile
	levels   map[string]slog.Level
	fallback slog.Level
}

var (
	global   *CentralLogger
	globalMu sync.Mutex
)

// SetGlobal installs cl as the logger returned by Global. It is called once
// the configuration is loaded.
func SetGlobal(cl *CentralLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = cl
}

// Global returns the logger installed by SetGlobal, or an info level console
// logger before that.
func Global() *CentralLogger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = &CentralLogger{
			cfg:      &LoggingConfig{DefaultLevel: DefaultLogLevel},
			tz:       time.Local,
			base:     newTextHandler(os.Stderr, slog.LevelInfo, time.Local),
			fallback: slog.LevelInfo,
		}
	}
	return global
}

// NewCentralLogger opens the outputs configured in cfg. Missing sections
// get their defaults.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	tz := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		var err error
		if tz, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", cfg.Timezone, err)
		}
	}

	cl := &CentralLogger{
		cfg:      cfg,
		tz:       tz,
		modules:  make(map[string]*logFile),
		levels:   make(map[string]slog.Level),
		fallback: parseLogLevel(cfg.DefaultLevel),
	}
	for module, level := range cfg.ModuleLevels {
		cl.levels[module] = parseLogLevel(level)
	}

	var handlers []slog.Handler
	// stderr keeps stdout free for command output
	if cfg.Console.Enabled {
		handlers = append(handlers, newTextHandler(os.Stderr, parseLogLevel(cfg.Console.Level), tz))
	}
	if cfg.FileOutput.Enabled {
		f, err := openLogFile(cfg.FileOutput.Path)
		if err != nil {
			return nil, err
		}
		cl.main = f
		handlers = append(handlers, newJSONHandler(f, parseLogLevel(cfg.FileOutput.Level), tz))
	}
	if len(handlers) == 0 {
		handlers = append(handlers, newTextHandler(os.Stderr, cl.fallback, tz))
	}
	cl.base = fanout(handlers)

	for module, out := range cfg.ModuleOutputs {
		if !out.Enabled {
			continue
		}
		f, err := openLogFile(out.FilePath)
		if err != nil {
			_ = cl.Close()
			return nil, fmt.Errorf("module %s: %w", module, err)
		}
		cl.modules[module] = f
	}
	return cl, nil
}

// Module returns a logger whose records carry module=name
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	level := cl.fallback
	if l, ok := cl.levels[name]; ok {
		level = l
	}

	handler := cl.base
	if out, ok := cl.cfg.ModuleOutputs[name]; ok && out.Enabled {
		if out.Level != "" {
			level = parseLogLevel(out.Level)
		}
		var handlers []slog.Handler
		if f := cl.modules[name]; f != nil {
			handlers = append(handlers, newJSONHandler(f, level, cl.tz))
		}
		if out.ConsoleAlso && cl.cfg.Console.Enabled {
			handlers = append(handlers, newTextHandler(os.Stderr, level, cl.tz))
		}
		if len(handlers) > 0 {
			handler = fanout(handlers)
		}
	}

	return &moduleLogger{module: name, logger: slog.New(handler), level: level}
}

// Flush writes buffered records of every log file to the OS
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.eachFile(func(f *logFile) error { return f.Flush() })
}

// Close flushes, syncs and closes every log file
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	err := cl.eachFile(func(f *logFile) error { return f.Close() })
	cl.main = nil
	clear(cl.modules)
	return err
}

func (cl *CentralLogger) eachFile(fn func(*logFile) error) error {
	var errs []error
	if cl.main != nil {
		if err := fn(cl.main); err != nil {
			errs = append(errs, err)
		}
	}
	for _, f := range cl.modules {
		if err := fn(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ensureFileDirectory creates the parent directory of path
func ensureFileDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == path {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch LogLevel(level) {
	case LogLevelTrace:
		return traceLevelValue
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
