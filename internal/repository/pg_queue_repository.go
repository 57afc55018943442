package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/domain"
)

// Compile-time interface verification.
var _ QueueRepository = (*PgQueueRepository)(nil)

// PgQueueRepository is a PostgreSQL implementation of QueueRepository.
type PgQueueRepository struct {
	db DBTX
}

// NewPgQueueRepository creates a new PostgreSQL queue repository.
func NewPgQueueRepository(db DBTX) *PgQueueRepository {
	return &PgQueueRepository{db: db}
}

// Enqueue adds a paper to the queue, ignoring papers already queued.
func (r *PgQueueRepository) Enqueue(ctx context.Context, paperID int64) (InsertOutcome, error) {
	query := `
		INSERT INTO processing_queue (paper_id)
		VALUES ($1)
		ON CONFLICT (paper_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query, paperID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return Created, domain.NewNotFoundError("paper", strconv.FormatInt(paperID, 10))
		}
		return Created, fmt.Errorf("failed to enqueue paper: %w", err)
	}
	if result.RowsAffected() == 0 {
		return AlreadyExists, nil
	}
	return Created, nil
}

// DequeueOne locks the next available entry with SKIP LOCKED so concurrent
// workers never take the same entry.
func (r *PgQueueRepository) DequeueOne(ctx context.Context) (*domain.QueueEntry, error) {
	query := `
		SELECT id, paper_id, enqueued_at, attempts, last_attempt_at
		FROM processing_queue
		ORDER BY last_attempt_at NULLS FIRST, id
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var entry domain.QueueEntry
	err := r.db.QueryRow(ctx, query).Scan(&entry.ID, &entry.PaperID, &entry.EnqueuedAt, &entry.Attempts, &entry.LastAttemptAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}
	return &entry, nil
}

// RecordFailure increments attempts and stamps last_attempt_at.
func (r *PgQueueRepository) RecordFailure(ctx context.Context, entryID int64) error {
	query := `
		UPDATE processing_queue
		SET attempts = attempts + 1, last_attempt_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, entryID)
	if err != nil {
		return fmt.Errorf("failed to record queue failure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("queue_entry", strconv.FormatInt(entryID, 10))
	}
	return nil
}

// Delete removes a queue entry.
func (r *PgQueueRepository) Delete(ctx context.Context, entryID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM processing_queue WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("queue_entry", strconv.FormatInt(entryID, 10))
	}
	return nil
}

// Count returns the queue depth.
func (r *PgQueueRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM processing_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}
