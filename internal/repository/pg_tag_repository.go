package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// Compile-time interface verification.
var _ TagRepository = (*PgTagRepository)(nil)

// PgTagRepository is a PostgreSQL implementation of TagRepository.
type PgTagRepository struct {
	db DBTX
}

// NewPgTagRepository creates a new PostgreSQL tag repository.
func NewPgTagRepository(db DBTX) *PgTagRepository {
	return &PgTagRepository{db: db}
}

// List returns all tags.
func (r *PgTagRepository) List(ctx context.Context) ([]*domain.Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return collectTags(rows)
}

// GetByID returns one tag.
func (r *PgTagRepository) GetByID(ctx context.Context, id int) (*domain.Tag, error) {
	var tag domain.Tag
	if err := r.db.QueryRow(ctx, `SELECT id, name FROM tags WHERE id = $1`, id).Scan(&tag.ID, &tag.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("tag", strconv.Itoa(id))
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &tag, nil
}

// ListForPaper returns the tags attached to a paper.
func (r *PgTagRepository) ListForPaper(ctx context.Context, paperID int64) ([]*domain.Tag, error) {
	query := `
		SELECT t.id, t.name
		FROM paper_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.paper_id = $1
		ORDER BY t.id`

	rows, err := r.db.Query(ctx, query, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paper tags: %w", err)
	}
	return collectTags(rows)
}

func collectTags(rows pgx.Rows) ([]*domain.Tag, error) {
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}
