package repository

import (
	"context"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// TagRepository provides read access to paper tags.
type TagRepository interface {
	// List returns all tags ordered by id.
	List(ctx context.Context) ([]*domain.Tag, error)

	// GetByID returns one tag. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id int) (*domain.Tag, error)

	// ListForPaper returns the tags attached to a paper.
	ListForPaper(ctx context.Context, paperID int64) ([]*domain.Tag, error)
}
