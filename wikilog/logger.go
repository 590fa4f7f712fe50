// Package wikilog provides the structured logging used by every stage of the
// ingestion pipeline: extractor, transformers, loaders, and the orchestrator
// all log through a ContextLogger carrying stage-scoped fields rather than
// calling the standard log package directly.
package wikilog

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Level mirrors the handful of logrus levels the pipeline actually uses.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls how a Logger is built.
type Config struct {
	Level  Level
	Format string // "json" or "text"
}

// OutputSplitter routes error-level lines to stderr and everything else to
// stdout, so stdout carries progress lines only and error lines can be
// redirected or silenced separately (e.g. with `2>/dev/null`).
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	if looksLikeErrorLine(p) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

func looksLikeErrorLine(p []byte) bool {
	// The text formatter writes level=error and the JSON formatter writes
	// "level":"error"; a substring check avoids parsing the line twice.
	return bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`))
}

// New builds a logrus.Logger configured per Config.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}

	logger.SetOutput(&OutputSplitter{})
	return logger
}

// ContextLogger carries a fixed set of fields (dump path, stage, worker id)
// through an otherwise stateless worker loop.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger attaches base fields to logger. A nil logger falls back
// to a default text logger at info level, useful in tests.
func NewContextLogger(logger *logrus.Logger, fields map[string]interface{}) *ContextLogger {
	if logger == nil {
		logger = New(Config{Level: LevelInfo, Format: "text"})
	}
	base := make(logrus.Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &ContextLogger{logger: logger, fields: base}
}

// WithField returns a derived logger with one additional field.
func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	return cl.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a derived logger with the given fields merged in.
func (cl *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	merged := make(logrus.Fields, len(cl.fields)+len(fields))
	for k, v := range cl.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: merged}
}

// WithError attaches an error field.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.WithField("error", err.Error())
}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Info(msg string)  { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Warn(msg string)  { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }

func (cl *ContextLogger) Infof(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Infof(format, args...)
}

func (cl *ContextLogger) Warnf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Warnf(format, args...)
}

func (cl *ContextLogger) Errorf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Errorf(format, args...)
}

// LogDuration logs the duration of an operation when the returned func runs;
// used to bracket a batch flush or a whole dump's processing.
func LogDuration(logger *ContextLogger, operation string) func() {
	start := time.Now()
	return func() {
		logger.WithFields(map[string]interface{}{
			"operation":   operation,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("operation completed")
	}
}

var _ io.Writer = OutputSplitter{}
