// Package graph maintains the citation graph: it creates papers from
// identifiers and expands papers into outbound cite edges.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// maxArXivIDLength matches papers.arxiv_id.
const maxArXivIDLength = 25

// SiblingLookup cross-references a DOI and an arXiv identifier. An empty
// result means the counterpart is unknown and is not an error.
type SiblingLookup interface {
	LookupArXivID(ctx context.Context, doi string) (string, error)
	LookupDOI(ctx context.Context, arxivID string) (string, error)
}

// Creator creates papers from a single identifier, backfilling the other one
// when the sibling lookup knows it.
type Creator struct {
	lookup SiblingLookup
	logger zerolog.Logger
}

// NewCreator creates a Creator. A nil lookup disables sibling backfill.
func NewCreator(lookup SiblingLookup, logger zerolog.Logger) *Creator {
	return &Creator{
		lookup: lookup,
		logger: logger.With().Str("component", "paper_creator").Logger(),
	}
}

// CreateByDOI inserts a paper for doi. If the DOI or its backfilled arXiv id
// is already taken, the existing paper is returned with AlreadyExists.
func (c *Creator) CreateByDOI(ctx context.Context, papers repository.PaperRepository, doi string) (*domain.Paper, repository.InsertOutcome, error) {
	doi = domain.BareDOI(doi)
	if doi == "" {
		return nil, repository.Created, domain.NewValidationError("doi", "DOI is required")
	}

	var arxivID string
	if c.lookup != nil {
		id, err := c.lookup.LookupArXivID(ctx, doi)
		if err != nil {
			c.logger.Warn().Err(err).Str("doi", doi).Msg("arXiv sibling lookup failed")
		} else if len(id) <= maxArXivIDLength {
			arxivID = id
		}
	}

	return papers.Create(ctx, doi, arxivID)
}

// CreateByArXivID inserts a paper for arxivID, backfilling its DOI.
func (c *Creator) CreateByArXivID(ctx context.Context, papers repository.PaperRepository, arxivID string) (*domain.Paper, repository.InsertOutcome, error) {
	arxivID = domain.BareArXivID(arxivID)
	if err := validateArXivID(arxivID); err != nil {
		return nil, repository.Created, err
	}

	var doi string
	if c.lookup != nil {
		found, err := c.lookup.LookupDOI(ctx, arxivID)
		if err != nil {
			c.logger.Warn().Err(err).Str("arxiv_id", arxivID).Msg("DOI sibling lookup failed")
		} else {
			doi = domain.BareDOI(found)
		}
	}

	return papers.Create(ctx, doi, arxivID)
}

// Ensure returns the paper carrying the resolved identifier, creating it when
// none exists. The outcome is Created only if this call inserted the paper.
func (c *Creator) Ensure(ctx context.Context, papers repository.PaperRepository, id domain.ResolvedIdentifier) (*domain.Paper, repository.InsertOutcome, error) {
	var (
		paper *domain.Paper
		err   error
	)
	switch id.Kind {
	case domain.IdentifierDOI:
		paper, err = papers.FindByDOI(ctx, domain.BareDOI(id.Value))
	case domain.IdentifierArXiv:
		paper, err = papers.FindByArXivID(ctx, domain.BareArXivID(id.Value))
	default:
		return nil, repository.Created, domain.NewValidationError("identifier", fmt.Sprintf("cannot classify %q", id.Value))
	}
	if err == nil {
		return paper, repository.AlreadyExists, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, repository.Created, err
	}

	if id.Kind == domain.IdentifierDOI {
		return c.CreateByDOI(ctx, papers, id.Value)
	}
	return c.CreateByArXivID(ctx, papers, id.Value)
}

func validateArXivID(id string) error {
	if id == "" {
		return domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}
	if len(id) > maxArXivIDLength {
		return domain.NewValidationError("arxiv_id", fmt.Sprintf("arXiv ID exceeds %d characters", maxArXivIDLength))
	}
	return nil
}
