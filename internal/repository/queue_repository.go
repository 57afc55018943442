package repository

import (
	"context"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// QueueRepository handles the processing queue of papers awaiting expansion.
type QueueRepository interface {
	// Enqueue adds a paper. A paper already queued yields AlreadyExists.
	Enqueue(ctx context.Context, paperID int64) (InsertOutcome, error)

	// DequeueOne locks and returns the next entry not locked by another
	// transaction, or nil when none is available. Entries never attempted
	// come first, then the least recently failed. The entry stays queued
	// until Delete is called and the transaction commits.
	DequeueOne(ctx context.Context) (*domain.QueueEntry, error)

	// RecordFailure counts a failed attempt and moves the entry behind the
	// others.
	RecordFailure(ctx context.Context, entryID int64) error

	// Delete removes an entry.
	Delete(ctx context.Context, entryID int64) error

	// Count returns the number of queued entries.
	Count(ctx context.Context) (int64, error)
}
