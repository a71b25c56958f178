// Package logger provides leveled debug logging for labcmdr.
//
// Diagnostics go to stderr so they never mix with the operator-facing output
// printed by the output package or with --json documents on stdout. The
// backend is a zap console core; the package keeps a printf-style API so call
// sites stay short.
//
// # Initialization
//
//	logger.Init(verbose)  // verbose=true enables Debug level
//
// By default only Warn and Error messages are shown.
//
// # Output Format
//
//	2026-02-03 10:30:45 [DEBUG] Loading lab config
//	2026-02-03 10:30:45 [DEBUG] Server started {"port": 8080, "ip": "10.10.14.2"}
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging severity level.
type Level = zapcore.Level

// Log levels from least to most severe.
const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
)

// TimeLayout is the timestamp layout shared by the debug log and the access log.
const TimeLayout = "2006-01-02 15:04:05"

var (
	mu    sync.Mutex
	level = zap.NewAtomicLevelAt(LevelWarn)
	std   = build(os.Stderr)
)

// EncoderConfig returns the console encoder settings used by labcmdr loggers.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout(TimeLayout),
		EncodeLevel:      bracketLevel,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func bracketLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

func build(w io.Writer) *zap.SugaredLogger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(EncoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return zap.New(core).Sugar()
}

// Init initializes the global logger with the specified verbosity.
func Init(verbose bool) {
	if verbose {
		level.SetLevel(LevelDebug)
	} else {
		level.SetLevel(LevelWarn)
	}
}

// SetLevel sets the minimum log level for the global logger.
func SetLevel(l Level) {
	level.SetLevel(l)
}

// GetLevel returns the current log level.
func GetLevel() Level {
	return level.Level()
}

// SetOutput sets the output destination for the global logger.
// Useful for testing. Default is os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std = build(w)
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return std
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	current().Infof(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// DebugFields logs a debug message with structured fields.
func DebugFields(msg string, fields map[string]interface{}) {
	current().Debugw(msg, keyvals(fields)...)
}

// WarnFields logs a warning message with structured fields.
func WarnFields(msg string, fields map[string]interface{}) {
	current().Warnw(msg, keyvals(fields)...)
}

// keyvals flattens fields in sorted key order for stable output.
func keyvals(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return kv
}

// LogError logs an error with additional context message.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	current().Error(fmt.Sprintf("%s: %v", msg, err))
}
