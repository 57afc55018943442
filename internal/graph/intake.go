package graph

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/events"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// Paper origins used as metrics labels.
const (
	OriginAPI   = "api"
	OriginKafka = "kafka"
)

// SubmitRequest names a paper by exactly one identifier.
type SubmitRequest struct {
	DOI     string
	ArXivID string
	Origin  string
}

// Validate checks that exactly one identifier is set.
func (r SubmitRequest) Validate() error {
	doi, arxivID := strings.TrimSpace(r.DOI), strings.TrimSpace(r.ArXivID)
	switch {
	case doi == "" && arxivID == "":
		return domain.NewValidationError("paper", "one of doi or arxiv_id is required")
	case doi != "" && arxivID != "":
		return domain.NewValidationError("paper", "only one of doi or arxiv_id may be set")
	}
	return nil
}

// Intake creates papers submitted from outside the expander and queues those
// with an arXiv identity for expansion. Each submission is one transaction.
type Intake struct {
	tx        database.TxRunner
	stores    repository.StoreFactory
	creator   *Creator
	publisher events.Publisher
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewIntake creates an Intake. A nil publisher disables events.
func NewIntake(tx database.TxRunner, stores repository.StoreFactory, creator *Creator, publisher events.Publisher, logger zerolog.Logger, metrics *observability.Metrics) *Intake {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Intake{
		tx:        tx,
		stores:    stores,
		creator:   creator,
		publisher: publisher,
		logger:    logger.With().Str("component", "intake").Logger(),
		metrics:   metrics,
	}
}

// Submit creates the requested paper. When the identifier is already taken
// the existing paper is returned with AlreadyExists and nothing is queued.
func (i *Intake) Submit(ctx context.Context, req SubmitRequest) (*domain.Paper, repository.InsertOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, repository.Created, err
	}
	if req.Origin == "" {
		req.Origin = OriginAPI
	}

	var (
		paper   *domain.Paper
		outcome repository.InsertOutcome
	)
	err := i.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		store := i.stores(tx)

		var err error
		if strings.TrimSpace(req.DOI) != "" {
			paper, outcome, err = i.creator.CreateByDOI(ctx, store.Papers, req.DOI)
		} else {
			paper, outcome, err = i.creator.CreateByArXivID(ctx, store.Papers, req.ArXivID)
		}
		if err != nil {
			return err
		}

		if outcome == repository.Created && paper.HasArXivID() {
			if _, err := store.Queue.Enqueue(ctx, paper.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, repository.Created, err
	}

	logger := observability.WithPaperContext(i.logger, paper.ID, paper.ArXivID, paper.DOI)
	if outcome == repository.AlreadyExists {
		logger.Debug().Msg("paper already exists")
		return paper, outcome, nil
	}

	i.metrics.RecordPaperCreated(req.Origin)
	logger.Info().Str("origin", req.Origin).Msg("paper created")

	ev, err := domain.NewGraphEvent(domain.EventTypePaperDiscovered, paper.ID, domain.PaperDiscoveredPayload{
		DOI:     paper.DOI,
		ArXivID: paper.ArXivID,
	})
	if err == nil {
		err = i.publisher.Publish(ctx, ev)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("failed to publish paper event")
	}

	return paper, outcome, nil
}

// SubmitPaper implements events.PaperSubmitter for requests arriving over Kafka.
func (i *Intake) SubmitPaper(ctx context.Context, doi, arxivID string) error {
	_, _, err := i.Submit(ctx, SubmitRequest{DOI: doi, ArXivID: arxivID, Origin: OriginKafka})
	return err
}

var _ events.PaperSubmitter = (*Intake)(nil)
