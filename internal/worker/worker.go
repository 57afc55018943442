// Package worker drains the processing queue: on every tick it takes one
// queued paper, expands its citations and removes the entry, all in one
// transaction.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/events"
	"github.com/helixir/citation-graph-service/internal/graph"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// Default worker settings.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultUnitTimeout  = 10 * time.Minute
)

// CycleOutcome describes what one worker cycle did.
type CycleOutcome string

// Cycle outcomes, also used as metric labels.
const (
	CycleProcessed CycleOutcome = "processed"
	CycleEmpty     CycleOutcome = "empty"
	CycleFailed    CycleOutcome = "failed"
)

// Expander expands one paper within a store.
type Expander interface {
	Expand(ctx context.Context, store *repository.Store, paper *domain.Paper) (*graph.ExpandResult, error)
}

// Config configures the QueueWorker.
type Config struct {
	// PollInterval is the fixed delay between cycles.
	PollInterval time.Duration
	// UnitTimeout bounds one cycle. Zero means no bound.
	UnitTimeout time.Duration
}

// QueueWorker runs the processing queue on a fixed interval. A failed cycle
// rolls back completely, leaving the entry queued for a later cycle.
type QueueWorker struct {
	cfg       Config
	tx        database.TxRunner
	stores    repository.StoreFactory
	expander  Expander
	publisher events.Publisher
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// New creates a QueueWorker. A nil publisher disables events.
func New(cfg Config, tx database.TxRunner, stores repository.StoreFactory, expander Expander, publisher events.Publisher, logger zerolog.Logger, metrics *observability.Metrics) *QueueWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.UnitTimeout < 0 {
		cfg.UnitTimeout = 0
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &QueueWorker{
		cfg:       cfg,
		tx:        tx,
		stores:    stores,
		expander:  expander,
		publisher: publisher,
		logger:    logger.With().Str("component", "queue_worker").Logger(),
		metrics:   metrics,
	}
}

// Run ticks every PollInterval until ctx is cancelled. Cycle failures are
// logged and never stop the loop.
func (w *QueueWorker) Run(ctx context.Context) error {
	w.logger.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Dur("unit_timeout", w.cfg.UnitTimeout).
		Msg("starting queue worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("queue worker stopped")
			return nil
		case <-ticker.C:
			// Errors are logged by Tick.
			_, _ = w.Tick(ctx)
		}
	}
}

// Tick runs one cycle: dequeue at most one entry, expand its paper, delete
// the entry and commit. Graph events are published only after the commit.
func (w *QueueWorker) Tick(ctx context.Context) (_ CycleOutcome, err error) {
	unitCtx := ctx
	if w.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, w.cfg.UnitTimeout)
		defer cancel()
	}

	unitCtx, span := observability.StartSpan(unitCtx, "worker.cycle")
	defer func() { observability.EndSpan(span, err) }()

	var (
		entry  *domain.QueueEntry
		result *graph.ExpandResult
	)
	err = w.tx.WithTransaction(unitCtx, func(tx pgx.Tx) error {
		store := w.stores(tx)

		depth, err := store.Queue.Count(unitCtx)
		if err != nil {
			return err
		}
		w.metrics.SetQueueDepth(depth)

		entry, err = store.Queue.DequeueOne(unitCtx)
		if err != nil || entry == nil {
			return err
		}
		span.SetAttributes(
			attribute.Int64("queue.entry_id", entry.ID),
			attribute.Int64("paper.id", entry.PaperID),
		)

		paper, err := store.Papers.GetByID(unitCtx, entry.PaperID)
		if err != nil {
			return err
		}

		result, err = w.expander.Expand(unitCtx, store, paper)
		if err != nil {
			return err
		}

		return store.Queue.Delete(unitCtx, entry.ID)
	})

	logger := w.logger
	if entry != nil {
		logger = observability.WithQueueContext(logger, entry.ID, entry.PaperID)
	}

	switch {
	case err != nil:
		w.metrics.RecordWorkerCycle(string(CycleFailed))
		evt := logger.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			evt = logger.Warn()
		}
		evt.Err(err).Msg("queue cycle failed, entry stays queued")
		if entry != nil {
			w.recordFailure(ctx, logger, entry)
		}
		return CycleFailed, fmt.Errorf("queue cycle: %w", err)
	case entry == nil:
		w.metrics.RecordWorkerCycle(string(CycleEmpty))
		logger.Debug().Msg("queue empty")
		return CycleEmpty, nil
	}

	if result == nil {
		result = &graph.ExpandResult{}
	}
	w.metrics.RecordWorkerCycle(string(CycleProcessed))
	logger.Info().
		Int("discovered", len(result.Discovered)).
		Int("edges", len(result.Edges)).
		Msg("queue entry processed")

	w.publish(ctx, logger, result)
	return CycleProcessed, nil
}

// recordFailure moves a failed entry behind the others so a persistently
// failing paper cannot starve the rest of the queue.
func (w *QueueWorker) recordFailure(ctx context.Context, logger zerolog.Logger, entry *domain.QueueEntry) {
	err := w.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		return w.stores(tx).Queue.RecordFailure(ctx, entry.ID)
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn().Err(err).Msg("failed to record queue failure")
	}
}

// publish sends the events of a committed expansion. Failures are logged;
// the graph state is already durable.
func (w *QueueWorker) publish(ctx context.Context, logger zerolog.Logger, result *graph.ExpandResult) {
	evs, err := result.Events()
	if err == nil {
		err = w.publisher.Publish(ctx, evs...)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("failed to publish graph events")
	}
}
