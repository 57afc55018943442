package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

const paperColumns = "id, doi, arxiv_id, created_at"

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// GetByID retrieves a paper by its numeric id.
func (r *PgPaperRepository) GetByID(ctx context.Context, id int64) (*domain.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE id = $1`

	paper, err := scanPaper(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return paper, nil
}

// FindByDOI retrieves the paper with exactly this DOI.
func (r *PgPaperRepository) FindByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	if doi == "" {
		return nil, domain.NewValidationError("doi", "DOI is required")
	}
	return r.findBy(ctx, "doi", doi)
}

// FindByArXivID retrieves the paper with exactly this arXiv id.
func (r *PgPaperRepository) FindByArXivID(ctx context.Context, arxivID string) (*domain.Paper, error) {
	if arxivID == "" {
		return nil, domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}
	return r.findBy(ctx, "arxiv_id", arxivID)
}

// findBy looks a paper up by a unique identifier column. column is never user input.
func (r *PgPaperRepository) findBy(ctx context.Context, column, value string) (*domain.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE ` + column + ` = $1`

	paper, err := scanPaper(r.db.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", column+":"+value)
		}
		return nil, fmt.Errorf("failed to find paper by %s: %w", column, err)
	}
	return paper, nil
}

// List retrieves papers matching the filter criteria.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.ID != nil {
		conditions = append(conditions, fmt.Sprintf("id = $%d", argIndex))
		args = append(args, *filter.ID)
		argIndex++
	}
	if filter.DOI != "" {
		conditions = append(conditions, fmt.Sprintf("doi = $%d", argIndex))
		args = append(args, filter.DOI)
		argIndex++
	}
	if filter.ArXivID != "" {
		conditions = append(conditions, fmt.Sprintf("arxiv_id = $%d", argIndex))
		args = append(args, filter.ArXivID)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers %s ORDER BY id LIMIT $%d OFFSET $%d`,
		paperColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	return collectPapers(rows)
}

// Create inserts a paper unless one of its identifiers is already taken.
func (r *PgPaperRepository) Create(ctx context.Context, doi, arxivID string) (*domain.Paper, InsertOutcome, error) {
	if doi == "" && arxivID == "" {
		return nil, Created, domain.NewValidationError("paper", "a DOI or an arXiv ID is required")
	}

	query := `
		INSERT INTO papers (doi, arxiv_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		RETURNING ` + paperColumns

	paper, err := scanPaper(r.db.QueryRow(ctx, query, nullable(doi), nullable(arxivID)))
	if err == nil {
		return paper, Created, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, Created, fmt.Errorf("failed to create paper: %w", err)
	}

	// Conflict: return the paper holding either identifier.
	existingQuery := `
		SELECT ` + paperColumns + `
		FROM papers
		WHERE ($1::text IS NOT NULL AND doi = $1)
		   OR ($2::text IS NOT NULL AND arxiv_id = $2)
		ORDER BY id
		LIMIT 1`

	existing, err := scanPaper(r.db.QueryRow(ctx, existingQuery, nullable(doi), nullable(arxivID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The conflicting row was deleted between the two statements.
			return nil, AlreadyExists, domain.NewAlreadyExistsError("paper", identityString(doi, arxivID))
		}
		return nil, AlreadyExists, fmt.Errorf("failed to load existing paper: %w", err)
	}
	return existing, AlreadyExists, nil
}

// Delete removes a paper. Foreign keys cascade to edges, tags and the queue.
func (r *PgPaperRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", strconv.FormatInt(id, 10))
	}
	return nil
}

func identityString(doi, arxivID string) string {
	if doi != "" {
		return "doi:" + doi
	}
	return "arxiv:" + arxivID
}

type paperScanDest struct {
	paper   domain.Paper
	doi     *string
	arxivID *string
}

func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{&d.paper.ID, &d.doi, &d.arxivID, &d.paper.CreatedAt}
}

func (d *paperScanDest) finalize() *domain.Paper {
	d.paper.DOI = deref(d.doi)
	d.paper.ArXivID = deref(d.arxivID)
	p := d.paper
	return &p
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize(), nil
}

// collectPapers drains rows into papers and closes them.
func collectPapers(rows pgx.Rows) ([]*domain.Paper, error) {
	defer rows.Close()

	papers := []*domain.Paper{}
	for rows.Next() {
		var dest paperScanDest
		if err := rows.Scan(dest.destinations()...); err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, dest.finalize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}
	return papers, nil
}
