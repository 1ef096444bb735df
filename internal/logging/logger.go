// Package logging provides config-driven categorized logging for kbchat.
// Logs are written to .kbchat/logs/ through a shared zap core, one named
// logger per category. Logging is a silent no-op unless debug mode is on
// or a logger has been attached explicitly (CLI subcommands do this).
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and config loading
	CategorySession  Category = "session"  // Session lifecycle, turns, reset
	CategoryAgent    Category = "agent"    // Remote agent invocation
	CategoryCitation Category = "citation" // Citation resolution and aggregation
	CategoryTrace    Category = "trace"    // Trace reconstruction
	CategoryStore    Category = "store"    // Session store persistence
	CategoryUI       Category = "ui"       // TUI events
)

// AllCategories returns every known category.
func AllCategories() []Category {
	return []Category{
		CategoryBoot,
		CategorySession,
		CategoryAgent,
		CategoryCitation,
		CategoryTrace,
		CategoryStore,
		CategoryUI,
	}
}

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	Categories map[string]bool // per-category toggles, all on when nil
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu        sync.RWMutex
	base      *zap.Logger
	logFile   *os.File
	opts      Options
	logsDir   string
	loggers   = make(map[Category]*Logger)
	attached  bool
	nopLogger = zap.NewNop().Sugar()
)

// Initialize sets up file logging under workspace/.kbchat/logs.
// Should be called once at startup with the workspace path.
func Initialize(workspace string, o Options) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	mu.Lock()
	defer mu.Unlock()

	opts = o
	loggers = make(map[Category]*Logger)
	if !o.DebugMode {
		return nil
	}

	logsDir = filepath.Join(workspace, ".kbchat", "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(logsDir, "kbchat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if strings.EqualFold(o.Format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	closeLocked()
	logFile = file
	base = zap.New(zapcore.NewCore(enc, zapcore.AddSync(file), parseLevel(o.Level)))
	attached = false
	return nil
}

// Attach routes all categories to an existing zap logger, bypassing the
// debug_mode switch. Used by CLI subcommands that own their own logger.
func Attach(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	base = l
	attached = l != nil
	loggers = make(map[Category]*Logger)
}

// IsDebugMode returns whether file logging was enabled at Initialize.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if base == nil {
		return false
	}
	if attached {
		return true
	}
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging is off or the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	enabled := categoryEnabledLocked(category)
	mu.RUnlock()

	if !enabled {
		return &Logger{category: category, sugar: nopLogger}
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	if base == nil {
		return &Logger{category: category, sugar: nopLogger}
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a child logger carrying structured key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// LogsDir returns the directory file logs are written to, or "" when file
// logging is off.
func LogsDir() string {
	mu.RLock()
	defer mu.RUnlock()
	if logFile == nil {
		return ""
	}
	return logsDir
}

// Category returns the logger's category.
func (l *Logger) Category() Category {
	return l.category
}

// CloseAll flushes and closes the log file.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	base = nil
	attached = false
	loggers = make(map[Category]*Logger)
}

func closeLocked() {
	if base != nil {
		_ = base.Sync()
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Category convenience helpers.

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

func Agent(format string, args ...interface{})      { Get(CategoryAgent).Info(format, args...) }
func AgentDebug(format string, args ...interface{}) { Get(CategoryAgent).Debug(format, args...) }
func AgentError(format string, args ...interface{}) { Get(CategoryAgent).Error(format, args...) }

func Citation(format string, args ...interface{})      { Get(CategoryCitation).Info(format, args...) }
func CitationDebug(format string, args ...interface{}) { Get(CategoryCitation).Debug(format, args...) }

func Trace(format string, args ...interface{})      { Get(CategoryTrace).Info(format, args...) }
func TraceDebug(format string, args ...interface{}) { Get(CategoryTrace).Debug(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func UI(format string, args ...interface{})      { Get(CategoryUI).Info(format, args...) }
func UIDebug(format string, args ...interface{}) { Get(CategoryUI).Debug(format, args...) }
