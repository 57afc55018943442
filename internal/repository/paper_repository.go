package repository

import (
	"context"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// PaperRepository handles paper persistence.
type PaperRepository interface {
	// GetByID retrieves a paper by its numeric id.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id int64) (*domain.Paper, error)

	// FindByDOI retrieves the paper with exactly this DOI.
	// Returns domain.ErrNotFound if no matching paper exists.
	FindByDOI(ctx context.Context, doi string) (*domain.Paper, error)

	// FindByArXivID retrieves the paper with exactly this arXiv id.
	// Returns domain.ErrNotFound if no matching paper exists.
	FindByArXivID(ctx context.Context, arxivID string) (*domain.Paper, error)

	// List retrieves papers matching the filter, oldest first.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, error)

	// Create inserts a paper with the given identifiers; empty strings are
	// stored as NULL and at least one must be set. When either identifier is
	// already taken the existing paper is returned with AlreadyExists.
	Create(ctx context.Context, doi, arxivID string) (*domain.Paper, InsertOutcome, error)

	// Delete removes a paper together with its edges, tags and queue entry.
	// Returns domain.ErrNotFound if no matching paper exists.
	Delete(ctx context.Context, id int64) error
}

// PaperFilter specifies criteria for listing papers. Set fields are ANDed.
type PaperFilter struct {
	// ID filters to one paper id (optional).
	ID *int64

	// DOI filters by exact DOI (optional).
	DOI string

	// ArXivID filters by exact arXiv id (optional).
	ArXivID string

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PaperFilter) Validate() error {
	if f.ID != nil && *f.ID <= 0 {
		return domain.NewValidationError("id", "must be positive")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
