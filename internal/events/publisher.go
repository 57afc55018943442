// Package events publishes citation graph change events to Kafka and
// consumes paper intake requests from it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
)

// Header keys set on every published message.
const (
	HeaderEventType     = "event_type"
	HeaderEventID       = "event_id"
	HeaderCorrelationID = "correlation_id"
)

// Publisher delivers graph events.
type Publisher interface {
	Publish(ctx context.Context, events ...*domain.GraphEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
}

// KafkaPublisher writes graph events to one topic, keyed by paper id so all
// events of a paper land on the same partition.
type KafkaPublisher struct {
	writer  messageWriter
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return newKafkaPublisher(writer, logger, metrics)
}

func newKafkaPublisher(writer messageWriter, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
		metrics: metrics,
	}
}

// Publish writes events in one batch. Either all events are accepted or an
// error is returned.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...*domain.GraphEvent) error {
	if len(events) == 0 {
		return nil
	}

	correlationID := observability.CorrelationIDFromContext(ctx)
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := toMessage(ev, correlationID)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	for _, ev := range events {
		p.metrics.RecordEventPublished(ev.EventType, err)
	}
	if err != nil {
		return fmt.Errorf("publish %d events: %w", len(events), err)
	}

	p.logger.Debug().Int("events", len(events)).Msg("events published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(ev *domain.GraphEvent, correlationID string) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %s: %w", ev.EventID, err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(ev.EventType)},
		{Key: HeaderEventID, Value: []byte(ev.EventID)},
	}
	if correlationID != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(correlationID)})
	}

	return kafka.Message{
		Key:     []byte(strconv.FormatInt(ev.PaperID, 10)),
		Value:   value,
		Headers: headers,
		Time:    ev.CreatedAt,
	}, nil
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, ...*domain.GraphEvent) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
