package repository

import (
	"context"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// RelationshipRepository handles relationship kinds and the directed edges
// between papers.
type RelationshipRepository interface {
	// EnsureRelationship returns the relationship with this name, creating it
	// if needed.
	EnsureRelationship(ctx context.Context, name string) (*domain.Relationship, error)

	// GetRelationship returns the relationship with this name.
	// Returns domain.ErrNotFound if it does not exist.
	GetRelationship(ctx context.Context, name string) (*domain.Relationship, error)

	// CreateEdge links left to right. An existing identical edge yields
	// AlreadyExists. A missing paper yields domain.ErrNotFound.
	CreateEdge(ctx context.Context, leftPaperID, rightPaperID int64, relationshipID int) (InsertOutcome, error)

	// DeleteEdge removes the edge if present.
	DeleteEdge(ctx context.Context, leftPaperID, rightPaperID int64, relationshipID int) error

	// ListLinked returns the papers paperID links to, or with reverse the
	// papers linking to paperID.
	ListLinked(ctx context.Context, paperID int64, relationshipID int, reverse bool) ([]*domain.Paper, error)
}
