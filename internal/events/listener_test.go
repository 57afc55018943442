package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// scriptedReader returns queued messages, then blocks until the context ends.
type scriptedReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestListener_Run(t *testing.T) {
	reader := &scriptedReader{
		errs: []error{errors.New("broker unreachable")},
		messages: []kafka.Message{
			{Value: []byte(`not json`)},
			{Value: []byte(`{"arxiv_id":"1401.2910"}`)},
			{Value: []byte(`{}`)},
			{Value: []byte(`{"doi":"10.1/abc"}`)},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type call struct{ doi, arxivID string }
	var calls []call
	submitter := PaperSubmitterFunc(func(_ context.Context, doi, arxivID string) error {
		calls = append(calls, call{doi, arxivID})
		if doi == "" && arxivID == "" {
			return domain.NewValidationError("paper", "one of doi or arxiv_id is required")
		}
		if len(calls) == 3 {
			cancel()
		}
		return nil
	})

	err := newListener(reader, submitter, zerolog.Nop()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, calls, 3)
	assert.Equal(t, call{"", "1401.2910"}, calls[0])
	assert.Equal(t, call{"", ""}, calls[1])
	assert.Equal(t, call{"10.1/abc", ""}, calls[2])
}

func TestListener_Close(t *testing.T) {
	reader := &scriptedReader{}
	require.NoError(t, newListener(reader, PaperSubmitterFunc(nil), zerolog.Nop()).Close())
	assert.True(t, reader.closed)
}
