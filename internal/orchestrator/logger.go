package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// pkgLogger is the package-level debug logger used by orchestrator components.
var pkgLogger *DebugLogger
var pkgLoggerMu sync.RWMutex

// setPackageLogger sets the package-level logger.
func setPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes a message using the package-level logger.
// This is used by collaborators (graph, runner) that don't carry the
// orchestrator's logger.
func debugLog(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l != nil {
		l.Log(format, args...)
	}
}

// LogOptions configures the rotating file sink of a DebugLogger.
type LogOptions struct {
	// Path is the log file. Empty means no file output.
	Path string
	// Level is a zap level name ("debug", "info", "warn", "error").
	Level string
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
}

// DebugLogger provides structured logging for orchestrator operations.
// It wraps a zap logger writing to a lumberjack-rotated file.
type DebugLogger struct {
	zap  *zap.Logger
	sink *lumberjack.Logger
}

// NewDebugLogger creates a logger writing to opts.Path.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func NewDebugLogger(opts LogOptions) (*DebugLogger, error) {
	if opts.Path == "" {
		return NopLogger(), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	level := zapcore.DebugLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
	}

	sink := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(sink), level)

	logger := &DebugLogger{zap: zap.New(core), sink: sink}
	logger.Log("=== Orchestrator Debug Log Started at %s ===", time.Now().Format(time.RFC3339))
	return logger, nil
}

// NewDebugLoggerForDir creates a debug logger in dir/.jobforge/logs.
// Returns a no-op logger if the directory cannot be created.
func NewDebugLoggerForDir(dir string) *DebugLogger {
	logPath := filepath.Join(dir, ".jobforge", "logs", "orchestrator-debug.log")
	logger, err := NewDebugLogger(LogOptions{Path: logPath, MaxSizeMB: 10, MaxBackups: 3})
	if err != nil {
		return NopLogger()
	}
	return logger
}

// NopLogger returns a no-op logger for testing or when logging is disabled.
func NopLogger() *DebugLogger {
	return &DebugLogger{zap: zap.NewNop()}
}

// Zap returns the structured logger for handing to components.
func (l *DebugLogger) Zap() *zap.Logger {
	if l == nil || l.zap == nil {
		return zap.NewNop()
	}
	return l.zap
}

// Log writes a formatted debug message.
// If the logger is nil this is a no-op.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.zap == nil {
		return
	}
	l.zap.Debug(fmt.Sprintf(format, args...))
}

// Close flushes and closes the log file.
// Safe to call on nil logger or logger without file.
func (l *DebugLogger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	_ = l.zap.Sync()
	return l.sink.Close()
}
