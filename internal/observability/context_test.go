package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-9")
	assert.Equal(t, "corr-9", CorrelationIDFromContext(ctx))
}

func TestPaperIDContext(t *testing.T) {
	_, ok := PaperIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := PaperIDFromContext(WithPaperID(context.Background(), 7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestTraceSpanContext(t *testing.T) {
	ctx := WithTraceSpan(context.Background(), "trace", "span")
	traceID, spanID := TraceSpanFromContext(ctx)
	assert.Equal(t, "trace", traceID)
	assert.Equal(t, "span", spanID)
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithPaperID(ctx, 3)

	logger := LoggerFromContext(ctx, zerolog.New(&buf))
	logger.Info().Msg("x")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, float64(3), entry["paper_id"])
	_, hasTrace := entry["trace_id"]
	assert.False(t, hasTrace)
}
