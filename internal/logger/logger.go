package logger

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger.
type Options struct {
	Level string
	// Output receives every entry. Defaults to stdout; stdio transports pass
	// stderr so the protocol stream stays clean.
	Output io.Writer
	// File enables a rotated log file next to Output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	logger  = newLogrus(os.Stdout)
	mu      sync.Mutex
	logFile *lumberjack.Logger
)

func newLogrus(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Initialize sets up the logger with the specified level, writing to stdout
func Initialize(level string) {
	Setup(Options{Level: level})
}

// Setup replaces the process logger according to opts.
func Setup(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if opts.File != "" {
		logFile = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		out = io.MultiWriter(out, logFile)
	}

	logger = newLogrus(out)
	setLogLevel(opts.Level)
}

// Close flushes and closes the rotated log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// setLogLevel sets the log level from a string, falling back to info
func setLogLevel(level string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil || lvl > logrus.DebugLevel || lvl < logrus.ErrorLevel {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
}

// Level returns the active level name.
func Level() string {
	return logger.GetLevel().String()
}

// Debug logs a debug message
func Debug(format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	logger.Infof(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	logger.Warnf(format, v...)
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	logger.Errorf(format, v...)
}

// ErrorWithStack logs an error with a stack trace
func ErrorWithStack(err error) {
	if err == nil {
		return
	}
	logger.Errorf("%v\n%s", err, debug.Stack())
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return logger.WithFields(logrus.Fields(fields))
}

// RequestLog logs details of an HTTP request
func RequestLog(method, url, traceID string, status int, durationMs int64) {
	logger.WithFields(logrus.Fields{
		"method":      method,
		"path":        url,
		"trace_id":    traceID,
		"status":      status,
		"duration_ms": durationMs,
	}).Info("http_request")
}
