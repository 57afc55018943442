package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/domain"
)

// Compile-time interface verification.
var _ RelationshipRepository = (*PgRelationshipRepository)(nil)

// maxRelationshipNameLength matches relationships.name.
const maxRelationshipNameLength = 64

// PgRelationshipRepository is a PostgreSQL implementation of RelationshipRepository.
type PgRelationshipRepository struct {
	db DBTX
}

// NewPgRelationshipRepository creates a new PostgreSQL relationship repository.
func NewPgRelationshipRepository(db DBTX) *PgRelationshipRepository {
	return &PgRelationshipRepository{db: db}
}

// EnsureRelationship returns the named relationship, inserting it on first use.
func (r *PgRelationshipRepository) EnsureRelationship(ctx context.Context, name string) (*domain.Relationship, error) {
	name = strings.TrimSpace(name)
	if err := validateRelationshipName(name); err != nil {
		return nil, err
	}

	query := `
		WITH ins AS (
			INSERT INTO relationships (name) VALUES ($1)
			ON CONFLICT (name) DO NOTHING
			RETURNING id, name
		)
		SELECT id, name FROM ins
		UNION ALL
		SELECT id, name FROM relationships WHERE name = $1
		LIMIT 1`

	var rel domain.Relationship
	if err := r.db.QueryRow(ctx, query, name).Scan(&rel.ID, &rel.Name); err != nil {
		return nil, fmt.Errorf("failed to ensure relationship %q: %w", name, err)
	}
	return &rel, nil
}

// GetRelationship returns the named relationship.
func (r *PgRelationshipRepository) GetRelationship(ctx context.Context, name string) (*domain.Relationship, error) {
	var rel domain.Relationship
	err := r.db.QueryRow(ctx, `SELECT id, name FROM relationships WHERE name = $1`, name).Scan(&rel.ID, &rel.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("relationship", name)
		}
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return &rel, nil
}

// CreateEdge inserts a directed edge, ignoring duplicates.
func (r *PgRelationshipRepository) CreateEdge(ctx context.Context, leftPaperID, rightPaperID int64, relationshipID int) (InsertOutcome, error) {
	query := `
		INSERT INTO paper_relationships (left_paper_id, right_paper_id, relationship_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (left_paper_id, right_paper_id, relationship_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query, leftPaperID, rightPaperID, relationshipID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return Created, domain.NewNotFoundError("paper", edgeString(leftPaperID, rightPaperID))
		}
		return Created, fmt.Errorf("failed to create edge: %w", err)
	}
	if result.RowsAffected() == 0 {
		return AlreadyExists, nil
	}
	return Created, nil
}

// DeleteEdge removes an edge; deleting a missing edge is not an error.
func (r *PgRelationshipRepository) DeleteEdge(ctx context.Context, leftPaperID, rightPaperID int64, relationshipID int) error {
	query := `
		DELETE FROM paper_relationships
		WHERE left_paper_id = $1 AND right_paper_id = $2 AND relationship_id = $3`

	if _, err := r.db.Exec(ctx, query, leftPaperID, rightPaperID, relationshipID); err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	return nil
}

// ListLinked returns the papers on the other end of paperID's edges.
func (r *PgRelationshipRepository) ListLinked(ctx context.Context, paperID int64, relationshipID int, reverse bool) ([]*domain.Paper, error) {
	from, to := "left_paper_id", "right_paper_id"
	if reverse {
		from, to = to, from
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.doi, p.arxiv_id, p.created_at
		FROM paper_relationships pr
		JOIN papers p ON p.id = pr.%s
		WHERE pr.%s = $1 AND pr.relationship_id = $2
		ORDER BY p.id`, to, from)

	rows, err := r.db.Query(ctx, query, paperID, relationshipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked papers: %w", err)
	}
	return collectPapers(rows)
}

func validateRelationshipName(name string) error {
	if name == "" {
		return domain.NewValidationError("name", "relationship name is required")
	}
	if len(name) > maxRelationshipNameLength {
		return domain.NewValidationError("name", fmt.Sprintf("relationship name exceeds %d characters", maxRelationshipNameLength))
	}
	return nil
}

func edgeString(left, right int64) string {
	return strconv.FormatInt(left, 10) + "->" + strconv.FormatInt(right, 10)
}
