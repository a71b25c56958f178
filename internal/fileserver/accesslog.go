package fileserver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ksyq12/labcmdr/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AccessLog writes one line per request to the console and the lab's
// httpserver.log.
type AccessLog struct {
	*zap.Logger
	file *os.File
}

// encoderConfig renders "[2006-01-02 15:04:05] message" with no level
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:    "time",
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format(logger.TimeLayout) + "]")
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

// NewCore builds the access log core for w. Writes are serialized since
// request goroutines log concurrently.
func NewCore(w io.Writer) zapcore.Core {
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(zapcore.AddSync(w)), zapcore.InfoLevel)
}

// OpenAccessLog appends to path and mirrors every line to console. A nil
// console logs to the file only.
func OpenAccessLog(path string, console io.Writer) (*AccessLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open access log: %w", err)
	}

	cores := []zapcore.Core{NewCore(f)}
	if console != nil {
		cores = append(cores, NewCore(console))
	}
	return &AccessLog{Logger: zap.New(zapcore.NewTee(cores...)), file: f}, nil
}

// Banner marks a server start in the log file
func (a *AccessLog) Banner(started time.Time, ip string, port int) error {
	rule := strings.Repeat("=", 60)
	_, err := fmt.Fprintf(a.file, "\n%s\nServer started: %s\nAddress: %s:%d\nPort: %d\n%s\n",
		rule, started.Format(logger.TimeLayout), ip, port, port, rule)
	return err
}

// Close flushes and closes the log file
func (a *AccessLog) Close() error {
	_ = a.Sync()
	return a.file.Close()
}
