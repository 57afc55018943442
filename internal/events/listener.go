package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// PaperRequestedEvent asks the service to add a paper to the graph.
type PaperRequestedEvent struct {
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
}

// PaperSubmitter creates a requested paper and queues it for expansion.
type PaperSubmitter interface {
	SubmitPaper(ctx context.Context, doi, arxivID string) error
}

// PaperSubmitterFunc adapts a function to PaperSubmitter.
type PaperSubmitterFunc func(ctx context.Context, doi, arxivID string) error

// SubmitPaper calls f.
func (f PaperSubmitterFunc) SubmitPaper(ctx context.Context, doi, arxivID string) error {
	return f(ctx, doi, arxivID)
}

// messageReader is the subset of *kafka.Reader used by Listener.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ListenerConfig holds configuration for the intake listener.
type ListenerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic carries PaperRequestedEvent messages.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// Listener consumes paper requests from Kafka and submits them.
type Listener struct {
	reader    messageReader
	submitter PaperSubmitter
	logger    zerolog.Logger
}

// NewListener creates a new paper request listener.
func NewListener(cfg ListenerConfig, submitter PaperSubmitter, logger zerolog.Logger) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newListener(reader, submitter, logger)
}

func newListener(reader messageReader, submitter PaperSubmitter, logger zerolog.Logger) *Listener {
	return &Listener{
		reader:    reader,
		submitter: submitter,
		logger:    logger.With().Str("component", "intake_listener").Logger(),
	}
}

// Run starts the listener loop. Blocks until context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting intake listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("intake listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received paper request")

		var event PaperRequestedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal paper request")
			continue
		}

		if err := l.submitter.SubmitPaper(ctx, event.DOI, event.ArXivID); err != nil {
			evt := l.logger.Error()
			if errors.Is(err, domain.ErrInvalidInput) {
				evt = l.logger.Warn()
			}
			evt.Err(err).
				Str("doi", event.DOI).
				Str("arxiv_id", event.ArXivID).
				Msg("failed to submit requested paper")
		}
	}
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing intake listener")
	return l.reader.Close()
}
