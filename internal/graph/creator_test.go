package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/repository"
)

func TestCreator_CreateByDOI(t *testing.T) {
	ctx := context.Background()

	t.Run("backfills arXiv sibling", func(t *testing.T) {
		g := newMemGraph()
		lookup := &mockLookup{arxivFn: func(_ context.Context, doi string) (string, error) {
			assert.Equal(t, "10.1103/PhysRevD.1.1", doi)
			return "1501.00001", nil
		}}

		paper, outcome, err := NewCreator(lookup, zerolog.Nop()).CreateByDOI(ctx, g.store().Papers, "http://dx.doi.org/10.1103/PhysRevD.1.1")
		require.NoError(t, err)
		assert.Equal(t, repository.Created, outcome)
		assert.Equal(t, "10.1103/PhysRevD.1.1", paper.DOI)
		assert.Equal(t, "1501.00001", paper.ArXivID)
	})

	t.Run("lookup failure is not fatal", func(t *testing.T) {
		g := newMemGraph()
		lookup := &mockLookup{arxivFn: func(context.Context, string) (string, error) {
			return "", domain.ErrServiceUnavailable
		}}

		paper, outcome, err := NewCreator(lookup, zerolog.Nop()).CreateByDOI(ctx, g.store().Papers, "10.1/abc")
		require.NoError(t, err)
		assert.Equal(t, repository.Created, outcome)
		assert.Empty(t, paper.ArXivID)
	})

	t.Run("existing DOI", func(t *testing.T) {
		g := newMemGraph()
		existing := g.addPaper("10.1/abc", "")

		paper, outcome, err := NewCreator(nil, zerolog.Nop()).CreateByDOI(ctx, g.store().Papers, "doi:10.1/abc")
		require.NoError(t, err)
		assert.Equal(t, repository.AlreadyExists, outcome)
		assert.Equal(t, existing.ID, paper.ID)
	})

	t.Run("empty DOI", func(t *testing.T) {
		_, _, err := NewCreator(nil, zerolog.Nop()).CreateByDOI(ctx, newMemGraph().store().Papers, " ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestCreator_CreateByArXivID(t *testing.T) {
	ctx := context.Background()

	t.Run("backfills DOI", func(t *testing.T) {
		g := newMemGraph()
		lookup := &mockLookup{doiFn: func(_ context.Context, id string) (string, error) {
			assert.Equal(t, "1401.2910", id)
			return "10.1/xyz", nil
		}}

		paper, outcome, err := NewCreator(lookup, zerolog.Nop()).CreateByArXivID(ctx, g.store().Papers, "http://arxiv.org/abs/1401.2910")
		require.NoError(t, err)
		assert.Equal(t, repository.Created, outcome)
		assert.Equal(t, "1401.2910", paper.ArXivID)
		assert.Equal(t, "10.1/xyz", paper.DOI)
	})

	t.Run("sibling already owned by another paper", func(t *testing.T) {
		g := newMemGraph()
		existing := g.addPaper("10.1/xyz", "")
		lookup := &mockLookup{doiFn: func(context.Context, string) (string, error) {
			return "10.1/xyz", nil
		}}

		paper, outcome, err := NewCreator(lookup, zerolog.Nop()).CreateByArXivID(ctx, g.store().Papers, "1401.2910")
		require.NoError(t, err)
		assert.Equal(t, repository.AlreadyExists, outcome)
		assert.Equal(t, existing.ID, paper.ID)
	})

	t.Run("too long", func(t *testing.T) {
		_, _, err := NewCreator(nil, zerolog.Nop()).CreateByArXivID(ctx, newMemGraph().store().Papers, strings.Repeat("1", 26))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestCreator_Ensure(t *testing.T) {
	ctx := context.Background()

	t.Run("finds existing paper without lookups", func(t *testing.T) {
		g := newMemGraph()
		existing := g.addPaper("", "1501.00001")
		lookup := &mockLookup{doiFn: func(context.Context, string) (string, error) {
			t.Fatal("lookup must not be called for existing papers")
			return "", nil
		}}

		paper, outcome, err := NewCreator(lookup, zerolog.Nop()).Ensure(ctx, g.store().Papers,
			domain.ArXivIdentifier("http://arxiv.org/abs/1501.00001"))
		require.NoError(t, err)
		assert.Equal(t, repository.AlreadyExists, outcome)
		assert.Equal(t, existing.ID, paper.ID)
	})

	t.Run("creates missing DOI paper", func(t *testing.T) {
		g := newMemGraph()
		paper, outcome, err := NewCreator(nil, zerolog.Nop()).Ensure(ctx, g.store().Papers,
			domain.DOIIdentifier("http://dx.doi.org/10.1/abc"))
		require.NoError(t, err)
		assert.Equal(t, repository.Created, outcome)
		assert.Equal(t, "10.1/abc", paper.DOI)
	})

	t.Run("unclassified identifier", func(t *testing.T) {
		_, _, err := NewCreator(nil, zerolog.Nop()).Ensure(ctx, newMemGraph().store().Papers,
			domain.ResolvedIdentifier{Value: "http://example.org/x"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("lookup error propagates", func(t *testing.T) {
		g := newMemGraph()
		store := g.store()
		boom := errors.New("connection reset")
		store.Papers = failingFind{memPapers{g}, boom}

		_, _, err := NewCreator(nil, zerolog.Nop()).Ensure(ctx, store.Papers, domain.DOIIdentifier("http://dx.doi.org/10.1/abc"))
		assert.ErrorIs(t, err, boom)
	})
}

type failingFind struct {
	memPapers
	err error
}

func (f failingFind) FindByDOI(context.Context, string) (*domain.Paper, error) {
	return nil, f.err
}
