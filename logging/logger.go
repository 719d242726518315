// Package logging provides structured logging for the super-resolution
// pipeline: a zap logger that tees to the console and a rotating log file,
// with secret redaction and field helpers for tiles and refinement calls.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger and redacts sensitive values before they are written.
//
// Example:
//
//	logger, err := NewLogger(true, "sr.log", DebugLevel)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("tile refined", TileFields(spec)...)
type Logger struct {
	zap         *zap.Logger
	sugar       *zap.SugaredLogger
	logFilePath string
}

// NewLogger creates a Logger writing to stdout and to logFilePath.
//
// The file always receives JSON and is rotated by lumberjack with the
// default FileWriterConfig. The console receives colored human-readable
// lines in development mode and JSON otherwise.
func NewLogger(isDevelopment bool, logFilePath string, level zapcore.Level) (*Logger, error) {
	return NewLoggerWithConfig(isDevelopment, logFilePath, level, DefaultFileWriterConfig())
}

// NewLoggerWithConfig is NewLogger with explicit rotation settings.
func NewLoggerWithConfig(isDevelopment bool, logFilePath string, level zapcore.Level, fileConfig FileWriterConfig) (*Logger, error) {
	if logFilePath == "" {
		return nil, fmt.Errorf("logging: log file path is required")
	}

	fileWriter := NewFileWriterWithConfig(logFilePath, fileConfig)
	core := NewTeeCore(level, zapcore.Lock(os.Stdout), fileWriter, isDevelopment)

	return newLogger(core, logFilePath), nil
}

// NewLoggerWithCore builds a Logger around an existing core.
// Tests use it with zaptest/observer or an in-memory writer.
func NewLoggerWithCore(core zapcore.Core) *Logger {
	return newLogger(core, "")
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return newLogger(zapcore.NewNopCore(), "")
}

func newLogger(core zapcore.Core, logFilePath string) *Logger {
	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1), // Skip this wrapper layer
	)
	return &Logger{
		zap:         zapLogger,
		sugar:       zapLogger.Sugar(),
		logFilePath: logFilePath,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs a message at DebugLevel with optional structured fields.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

// Info logs a message at InfoLevel with optional structured fields.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

// Warn logs a message at WarnLevel with optional structured fields.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

// Error logs a message at ErrorLevel with optional structured fields.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// Infow logs a message at InfoLevel with loosely-typed key-value pairs.
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, redactKeysAndValues(keysAndValues)...)
}

// Warnw logs a message at WarnLevel with loosely-typed key-value pairs.
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, redactKeysAndValues(keysAndValues)...)
}

// Errorw logs a message at ErrorLevel with loosely-typed key-value pairs.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, redactKeysAndValues(keysAndValues)...)
}

// With creates a child logger that adds fields to every entry.
//
// Example:
//
//	imgLogger := logger.With(zap.String("image", "a.png"))
//	imgLogger.Info("upsampled")
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.zap.With(redactFields(fields)...)
	return &Logger{
		zap:         child,
		sugar:       child.Sugar(),
		logFilePath: l.logFilePath,
	}
}

// LogFilePath returns the path to the log file.
func (l *Logger) LogFilePath() string {
	return l.logFilePath
}
