// Package logging provides config-driven categorized file-based logging for
// sketchd. Logs are written to <state_dir>/logs/ with a separate file per
// category. When debug mode is off, every call is a silent no-op, so hot
// paths can log freely.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and shutdown
	CategorySession Category = "session" // Session controller state machine
	CategoryDecode  Category = "decode"  // Stream decoding and emission
	CategoryGen     Category = "gen"     // Generation backend connections
	CategoryAgents  Category = "agents"  // Planner/executor/verifier calls
	CategoryBridge  Category = "bridge"  // Client websocket bridge
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls logger behavior. Zero value means disabled.
type Options struct {
	DebugMode  bool
	Level      string          // debug, info, warn, error
	Categories map[string]bool // nil means all categories enabled
}

// Logger writes one category's entries to its own file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	opts     Options
	logLevel = LevelInfo
)

// Initialize sets up the logging directory. Should be called once at startup.
// With DebugMode false it is a no-op and all subsequent logging is dropped.
func Initialize(stateDir string, o Options) error {
	mu.Lock()
	defer mu.Unlock()

	opts = o
	logLevel = parseLevel(o.Level)
	if !o.DebugMode {
		return nil
	}
	if stateDir == "" {
		return fmt.Errorf("state dir required when debug logging is enabled")
	}
	logsDir = filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

// Shutdown closes all open log files.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func parseLevel(s string) int {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func enabled(cat Category) bool {
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	return opts.Categories[string(cat)]
}

// Get returns the logger for a category, creating its file lazily.
func Get(cat Category) *Logger {
	mu.RLock()
	l, ok := loggers[cat]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok = loggers[cat]; ok {
		return l
	}

	l = &Logger{category: cat}
	if logsDir != "" && enabled(cat) {
		path := filepath.Join(logsDir, string(cat)+".log")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			l.file = f
			l.logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
		}
	}
	loggers[cat] = l
	return l
}

func (l *Logger) write(level int, levelName, format string, args ...interface{}) {
	if l.logger == nil || level < logLevel || !enabled(l.category) {
		return
	}
	l.logger.Printf("[%s] %s", levelName, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// Category helpers, matching call sites throughout the codebase.

func Boot(format string, args ...interface{})    { Get(CategoryBoot).Info(format, args...) }
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) {
	Get(CategorySession).Debug(format, args...)
}
func SessionError(format string, args ...interface{}) {
	Get(CategorySession).Error(format, args...)
}
func Decode(format string, args ...interface{})      { Get(CategoryDecode).Debug(format, args...) }
func Gen(format string, args ...interface{})         { Get(CategoryGen).Info(format, args...) }
func GenDebug(format string, args ...interface{})    { Get(CategoryGen).Debug(format, args...) }
func GenError(format string, args ...interface{})    { Get(CategoryGen).Error(format, args...) }
func Agents(format string, args ...interface{})      { Get(CategoryAgents).Info(format, args...) }
func AgentsError(format string, args ...interface{}) { Get(CategoryAgents).Error(format, args...) }
func Bridge(format string, args ...interface{})      { Get(CategoryBridge).Info(format, args...) }
func BridgeDebug(format string, args ...interface{}) { Get(CategoryBridge).Debug(format, args...) }
func BridgeError(format string, args ...interface{}) { Get(CategoryBridge).Error(format, args...) }
