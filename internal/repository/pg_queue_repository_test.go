package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-graph-service/internal/domain"
)

func TestPgQueueRepository_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("new entry", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO processing_queue").
			WithArgs(int64(4)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		outcome, err := NewPgQueueRepository(mock).Enqueue(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, Created, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already queued", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO processing_queue").
			WithArgs(int64(4)).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		outcome, err := NewPgQueueRepository(mock).Enqueue(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, AlreadyExists, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown paper", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO processing_queue").
			WithArgs(int64(99)).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		_, err = NewPgQueueRepository(mock).Enqueue(ctx, 99)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgQueueRepository_DequeueOne(t *testing.T) {
	ctx := context.Background()

	t.Run("locks oldest entry", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		enqueued := time.Now().UTC()
		mock.ExpectQuery("FROM processing_queue(.+)ORDER BY last_attempt_at NULLS FIRST, id(.+)FOR UPDATE SKIP LOCKED").
			WillReturnRows(pgxmock.NewRows([]string{"id", "paper_id", "enqueued_at", "attempts", "last_attempt_at"}).
				AddRow(int64(10), int64(4), enqueued, 2, &enqueued))

		entry, err := NewPgQueueRepository(mock).DequeueOne(ctx)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, int64(10), entry.ID)
		assert.Equal(t, int64(4), entry.PaperID)
		assert.Equal(t, enqueued, entry.EnqueuedAt)
		assert.Equal(t, 2, entry.Attempts)
		require.NotNil(t, entry.LastAttemptAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("FROM processing_queue").WillReturnError(pgx.ErrNoRows)

		entry, err := NewPgQueueRepository(mock).DequeueOne(ctx)
		require.NoError(t, err)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgQueueRepository_RecordFailure(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE processing_queue\\s+SET attempts = attempts \\+ 1").
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE processing_queue").
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPgQueueRepository(mock)
	require.NoError(t, repo.RecordFailure(ctx, 10))
	assert.ErrorIs(t, repo.RecordFailure(ctx, 11), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgQueueRepository_DeleteAndCount(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM processing_queue").
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM processing_queue").
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	repo := NewPgQueueRepository(mock)
	require.NoError(t, repo.Delete(ctx, 10))
	assert.ErrorIs(t, repo.Delete(ctx, 10), domain.ErrNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStore(t *testing.T) {
	store := NewStore(nil)
	assert.IsType(t, &PgPaperRepository{}, store.Papers)
	assert.IsType(t, &PgRelationshipRepository{}, store.Relationships)
	assert.IsType(t, &PgTagRepository{}, store.Tags)
	assert.IsType(t, &PgQueueRepository{}, store.Queue)
}
