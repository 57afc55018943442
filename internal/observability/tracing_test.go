package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpanWithNoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.span")
	require.NotNil(t, span)

	traceID, _ := TraceSpanFromContext(ctx)
	assert.Empty(t, traceID)

	assert.NotPanics(t, func() { EndSpan(span, errors.New("failed")) })
}
