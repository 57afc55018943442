package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is the output destination (stdout, stderr).
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string

	// Service is attached to every entry as the "service" field when set.
	Service string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
		Service:    "citation-graph-service",
	}
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	return newLogger(cfg, output)
}

func newLogger(cfg LoggingConfig, output io.Writer) zerolog.Logger {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	format := strings.ToLower(cfg.Format)
	if format == "console" || format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	logCtx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		logCtx = logCtx.Str("service", cfg.Service)
	}
	if cfg.AddSource {
		logCtx = logCtx.Caller()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	return logCtx.Logger().Level(level)
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithPaperContext adds paper identity fields to a logger.
func WithPaperContext(logger zerolog.Logger, paperID int64, arxivID, doi string) zerolog.Logger {
	c := logger.With().Int64("paper_id", paperID)
	if arxivID != "" {
		c = c.Str("arxiv_id", arxivID)
	}
	if doi != "" {
		c = c.Str("doi", doi)
	}
	return c.Logger()
}

// WithQueueContext adds processing queue fields to a logger.
func WithQueueContext(logger zerolog.Logger, entryID, paperID int64) zerolog.Logger {
	return logger.With().
		Int64("queue_entry_id", entryID).
		Int64("paper_id", paperID).
		Logger()
}

// WithTraceContext adds distributed tracing fields to a logger.
func WithTraceContext(logger zerolog.Logger, traceID, spanID string) zerolog.Logger {
	return logger.With().
		Str("trace_id", traceID).
		Str("span_id", spanID).
		Logger()
}

// WithRequestContext adds request correlation fields to a logger.
func WithRequestContext(logger zerolog.Logger, requestID, correlationID string) zerolog.Logger {
	return logger.With().
		Str("request_id", requestID).
		Str("correlation_id", correlationID).
		Logger()
}
