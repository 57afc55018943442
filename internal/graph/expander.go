package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helixir/citation-graph-service/internal/citations"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// metricsOrigin labels papers created while expanding citations.
const metricsOrigin = "citation"

// BibliographyFetcher returns the raw bibliography documents of an arXiv
// paper. No documents is a valid answer.
type BibliographyFetcher interface {
	FetchBibliographies(ctx context.Context, arxivID string) ([]string, error)
}

// CitationResolver maps bibliography documents to citation identifiers.
type CitationResolver interface {
	ResolveAll(ctx context.Context, documents []string) (citations.Resolution, error)
}

// ExpandResult describes the graph changes made by one expansion.
type ExpandResult struct {
	// Paper is the expanded paper.
	Paper *domain.Paper
	// Discovered holds papers created during the expansion.
	Discovered []*domain.Paper
	// Edges holds cite edges created during the expansion.
	Edges []domain.Edge
	// Resolved is the number of distinct identifiers cited.
	Resolved int
	// Skipped counts identifiers whose kind could not be determined.
	Skipped int
}

// Events returns the graph events describing the result.
func (r *ExpandResult) Events() ([]*domain.GraphEvent, error) {
	if r == nil || r.Paper == nil {
		return nil, nil
	}

	events := make([]*domain.GraphEvent, 0, len(r.Discovered)+len(r.Edges))
	for _, p := range r.Discovered {
		ev, err := domain.NewGraphEvent(domain.EventTypePaperDiscovered, p.ID, domain.PaperDiscoveredPayload{
			DOI:           p.DOI,
			ArXivID:       p.ArXivID,
			SourcePaperID: r.Paper.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("build %s event: %w", domain.EventTypePaperDiscovered, err)
		}
		events = append(events, ev)
	}
	for _, e := range r.Edges {
		ev, err := domain.NewGraphEvent(domain.EventTypeCitationCreated, e.LeftPaperID, domain.CitationCreatedPayload{
			CitingPaperID: e.LeftPaperID,
			CitedPaperID:  e.RightPaperID,
		})
		if err != nil {
			return nil, fmt.Errorf("build %s event: %w", domain.EventTypeCitationCreated, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Expander walks a paper's bibliography and records its citations.
type Expander struct {
	fetcher  BibliographyFetcher
	resolver CitationResolver
	creator  *Creator
	logger   zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewExpander creates an Expander.
func NewExpander(fetcher BibliographyFetcher, resolver CitationResolver, creator *Creator, logger zerolog.Logger, metrics *observability.Metrics) *Expander {
	return &Expander{
		fetcher:  fetcher,
		resolver: resolver,
		creator:  creator,
		logger:   logger.With().Str("component", "expander").Logger(),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Expand resolves the citations of paper and links it to every cited paper
// through store, creating and enqueueing papers seen for the first time.
// Papers without an arXiv identity are left untouched.
//
// Expand is safe to re-run: existing papers, edges and queue entries are
// reused, so a second run with the same inputs changes nothing.
func (e *Expander) Expand(ctx context.Context, store *repository.Store, paper *domain.Paper) (_ *ExpandResult, err error) {
	result := &ExpandResult{Paper: paper}
	if !paper.HasArXivID() {
		return result, nil
	}

	ctx, span := observability.StartSpan(ctx, "graph.expand",
		attribute.Int64("paper.id", paper.ID),
		attribute.String("paper.arxiv_id", paper.ArXivID),
	)
	start := e.now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failed"
		}
		e.metrics.RecordExpansion(outcome, e.now().Sub(start).Seconds())
		observability.EndSpan(span, err)
	}()

	logger := observability.WithPaperContext(e.logger, paper.ID, paper.ArXivID, paper.DOI)

	documents, err := e.fetcher.FetchBibliographies(ctx, paper.ArXivID)
	if err != nil {
		return nil, fmt.Errorf("fetch bibliographies of %s: %w", paper.ArXivID, err)
	}
	if len(documents) == 0 {
		logger.Debug().Msg("no bibliography found")
		return result, nil
	}

	resolution, err := e.resolver.ResolveAll(ctx, documents)
	if err != nil {
		return nil, fmt.Errorf("resolve citations of %s: %w", paper.ArXivID, err)
	}

	identifiers := distinctIdentifiers(resolution)
	result.Resolved = len(identifiers)
	if len(identifiers) == 0 {
		logger.Debug().Int("documents", len(documents)).Msg("no citation resolved")
		return result, nil
	}

	cite, err := store.Relationships.EnsureRelationship(ctx, domain.RelationshipCite)
	if err != nil {
		return nil, err
	}

	for _, value := range identifiers {
		kind := domain.ClassifyIdentifier(value)
		if kind == domain.IdentifierUnresolved {
			logger.Debug().Str("identifier", value).Msg("skipping identifier of unknown kind")
			result.Skipped++
			continue
		}

		if err := e.link(ctx, store, cite.ID, domain.ResolvedIdentifier{Kind: kind, Value: value}, result); err != nil {
			return nil, fmt.Errorf("link %s: %w", value, err)
		}
	}

	logger.Info().
		Int("documents", len(documents)).
		Int("cited", result.Resolved).
		Int("discovered", len(result.Discovered)).
		Int("edges", len(result.Edges)).
		Int("skipped", result.Skipped).
		Msg("paper expanded")

	return result, nil
}

// link connects the expanded paper to the paper identified by id.
func (e *Expander) link(ctx context.Context, store *repository.Store, relationshipID int, id domain.ResolvedIdentifier, result *ExpandResult) error {
	target, outcome, err := e.creator.Ensure(ctx, store.Papers, id)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			e.logger.Debug().Err(err).Str("identifier", id.Value).Msg("skipping invalid identifier")
			result.Skipped++
			return nil
		}
		return err
	}

	if outcome == repository.Created {
		e.metrics.RecordPaperCreated(metricsOrigin)
		result.Discovered = append(result.Discovered, target)
		if _, err := store.Queue.Enqueue(ctx, target.ID); err != nil {
			return fmt.Errorf("enqueue paper %d: %w", target.ID, err)
		}
	}

	if target.ID == result.Paper.ID {
		return nil
	}

	edgeOutcome, err := store.Relationships.CreateEdge(ctx, result.Paper.ID, target.ID, relationshipID)
	if err != nil {
		return err
	}
	e.metrics.RecordEdge(edgeOutcome == repository.Created)
	if edgeOutcome == repository.Created {
		result.Edges = append(result.Edges, domain.Edge{
			LeftPaperID:  result.Paper.ID,
			RightPaperID: target.ID,
			Kind:         domain.RelationshipCite,
			CreatedAt:    e.now().UTC(),
		})
	}
	return nil
}

// distinctIdentifiers returns the resolved identifier values of resolution
// in sorted order, each once.
func distinctIdentifiers(resolution citations.Resolution) []string {
	seen := make(map[string]struct{}, len(resolution))
	values := make([]string, 0, len(resolution))
	for _, id := range resolution.Resolved() {
		if _, ok := seen[id.Value]; ok {
			continue
		}
		seen[id.Value] = struct{}{}
		values = append(values, id.Value)
	}
	sort.Strings(values)
	return values
}
