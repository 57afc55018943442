package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-graph-service/internal/domain"
)

func TestPgRelationshipRepository_EnsureRelationship(t *testing.T) {
	ctx := context.Background()

	t.Run("returns inserted or existing row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("WITH ins AS").
			WithArgs("cite").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(1, "cite"))

		rel, err := NewPgRelationshipRepository(mock).EnsureRelationship(ctx, " cite ")
		require.NoError(t, err)
		assert.Equal(t, 1, rel.ID)
		assert.Equal(t, "cite", rel.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validates name", func(t *testing.T) {
		repo := NewPgRelationshipRepository(nil)

		_, err := repo.EnsureRelationship(ctx, "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = repo.EnsureRelationship(ctx, strings.Repeat("x", maxRelationshipNameLength+1))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgRelationshipRepository_GetRelationship(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name FROM relationships").
		WithArgs("refutes").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRelationshipRepository(mock).GetRelationship(ctx, "refutes")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRelationshipRepository_CreateEdge(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		result      pgconn.CommandTag
		err         error
		wantOutcome InsertOutcome
		wantErr     error
	}{
		{
			name:        "new edge",
			result:      pgxmock.NewResult("INSERT", 1),
			wantOutcome: Created,
		},
		{
			name:        "duplicate edge is ignored",
			result:      pgxmock.NewResult("INSERT", 0),
			wantOutcome: AlreadyExists,
		},
		{
			name:    "missing paper",
			err:     &pgconn.PgError{Code: "23503"},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			exp := mock.ExpectExec("INSERT INTO paper_relationships").WithArgs(int64(1), int64(2), 1)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(tt.result)
			}

			outcome, err := NewPgRelationshipRepository(mock).CreateEdge(ctx, 1, 2, 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOutcome, outcome)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgRelationshipRepository_DeleteEdge(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM paper_relationships").
		WithArgs(int64(1), int64(2), 1).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, NewPgRelationshipRepository(mock).DeleteEdge(context.Background(), 1, 2, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRelationshipRepository_ListLinked(t *testing.T) {
	ctx := context.Background()

	t.Run("outbound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("JOIN papers p ON p.id = pr.right_paper_id\\s+WHERE pr.left_paper_id = \\$1").
			WithArgs(int64(1), 1).
			WillReturnRows(pgxmock.NewRows(paperRowColumns).
				AddRow(int64(2), nil, strPtr("1501.00001"), time.Now()).
				AddRow(int64(3), strPtr("10.1/a"), nil, time.Now()))

		papers, err := NewPgRelationshipRepository(mock).ListLinked(ctx, 1, 1, false)
		require.NoError(t, err)
		require.Len(t, papers, 2)
		assert.Equal(t, "1501.00001", papers[0].ArXivID)
		assert.Equal(t, "10.1/a", papers[1].DOI)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reverse", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("JOIN papers p ON p.id = pr.left_paper_id\\s+WHERE pr.right_paper_id = \\$1").
			WithArgs(int64(2), 1).
			WillReturnRows(pgxmock.NewRows(paperRowColumns))

		papers, err := NewPgRelationshipRepository(mock).ListLinked(ctx, 2, 1, true)
		require.NoError(t, err)
		assert.Empty(t, papers)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
