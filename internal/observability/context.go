package observability

import (
	"context"

	"github.com/rs/zerolog"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	correlationIDKey contextKey = "correlation_id"
	paperIDKey       contextKey = "paper_id"
	traceIDKey       contextKey = "trace_id"
	spanIDKey        contextKey = "span_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext retrieves the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

// WithPaperID adds the id of the paper being processed to the context.
func WithPaperID(ctx context.Context, paperID int64) context.Context {
	return context.WithValue(ctx, paperIDKey, paperID)
}

// PaperIDFromContext retrieves the paper id from context.
// The boolean is false if none was stored.
func PaperIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(paperIDKey).(int64)
	return id, ok
}

// WithTraceSpan adds trace and span IDs to the context.
func WithTraceSpan(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, spanID)
	return ctx
}

// TraceSpanFromContext retrieves trace and span IDs from context.
// Returns empty strings if not present.
func TraceSpanFromContext(ctx context.Context) (traceID, spanID string) {
	return stringValue(ctx, traceIDKey), stringValue(ctx, spanIDKey)
}

// LoggerFromContext enriches logger with whatever identifiers the context carries.
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	c := logger.With()
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		c = c.Str("correlation_id", id)
	}
	if id, ok := PaperIDFromContext(ctx); ok {
		c = c.Int64("paper_id", id)
	}
	if traceID, spanID := TraceSpanFromContext(ctx); traceID != "" {
		c = c.Str("trace_id", traceID).Str("span_id", spanID)
	}
	return c.Logger()
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
