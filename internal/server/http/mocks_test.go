package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/citations"
	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/graph"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockPaperRepo implements repository.PaperRepository for HTTP handler tests.
type mockPaperRepo struct {
	getByIDFn func(ctx context.Context, id int64) (*domain.Paper, error)
	listFn    func(ctx context.Context, filter repository.PaperFilter) ([]*domain.Paper, error)
	deleteFn  func(ctx context.Context, id int64) error
}

func (m *mockPaperRepo) GetByID(ctx context.Context, id int64) (*domain.Paper, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.NewNotFoundError("paper", "")
}

func (m *mockPaperRepo) FindByDOI(_ context.Context, doi string) (*domain.Paper, error) {
	return nil, domain.NewNotFoundError("paper", doi)
}

func (m *mockPaperRepo) FindByArXivID(_ context.Context, arxivID string) (*domain.Paper, error) {
	return nil, domain.NewNotFoundError("paper", arxivID)
}

func (m *mockPaperRepo) List(ctx context.Context, filter repository.PaperFilter) ([]*domain.Paper, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockPaperRepo) Create(_ context.Context, _, _ string) (*domain.Paper, repository.InsertOutcome, error) {
	return nil, repository.Created, nil
}

func (m *mockPaperRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockRelationshipRepo implements repository.RelationshipRepository.
type mockRelationshipRepo struct {
	ensureFn     func(ctx context.Context, name string) (*domain.Relationship, error)
	getFn        func(ctx context.Context, name string) (*domain.Relationship, error)
	createEdgeFn func(ctx context.Context, left, right int64, relID int) (repository.InsertOutcome, error)
	deleteEdgeFn func(ctx context.Context, left, right int64, relID int) error
	listLinkedFn func(ctx context.Context, paperID int64, relID int, reverse bool) ([]*domain.Paper, error)
}

func (m *mockRelationshipRepo) EnsureRelationship(ctx context.Context, name string) (*domain.Relationship, error) {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, name)
	}
	return &domain.Relationship{ID: 1, Name: name}, nil
}

func (m *mockRelationshipRepo) GetRelationship(ctx context.Context, name string) (*domain.Relationship, error) {
	if m.getFn != nil {
		return m.getFn(ctx, name)
	}
	return nil, domain.NewNotFoundError("relationship", name)
}

func (m *mockRelationshipRepo) CreateEdge(ctx context.Context, left, right int64, relID int) (repository.InsertOutcome, error) {
	if m.createEdgeFn != nil {
		return m.createEdgeFn(ctx, left, right, relID)
	}
	return repository.Created, nil
}

func (m *mockRelationshipRepo) DeleteEdge(ctx context.Context, left, right int64, relID int) error {
	if m.deleteEdgeFn != nil {
		return m.deleteEdgeFn(ctx, left, right, relID)
	}
	return nil
}

func (m *mockRelationshipRepo) ListLinked(ctx context.Context, paperID int64, relID int, reverse bool) ([]*domain.Paper, error) {
	if m.listLinkedFn != nil {
		return m.listLinkedFn(ctx, paperID, relID, reverse)
	}
	return nil, nil
}

// mockTagRepo implements repository.TagRepository.
type mockTagRepo struct {
	tags    []*domain.Tag
	byPaper map[int64][]*domain.Tag
}

func (m *mockTagRepo) List(_ context.Context) ([]*domain.Tag, error) { return m.tags, nil }

func (m *mockTagRepo) GetByID(_ context.Context, id int) (*domain.Tag, error) {
	for _, t := range m.tags {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.NewNotFoundError("tag", "")
}

func (m *mockTagRepo) ListForPaper(_ context.Context, paperID int64) ([]*domain.Tag, error) {
	return m.byPaper[paperID], nil
}

// mockQueueRepo implements repository.QueueRepository; handlers never touch
// the queue directly.
type mockQueueRepo struct{}

func (mockQueueRepo) Enqueue(context.Context, int64) (repository.InsertOutcome, error) {
	return repository.Created, nil
}
func (mockQueueRepo) DequeueOne(context.Context) (*domain.QueueEntry, error) { return nil, nil }
func (mockQueueRepo) RecordFailure(context.Context, int64) error             { return nil }
func (mockQueueRepo) Delete(context.Context, int64) error                    { return nil }
func (mockQueueRepo) Count(context.Context) (int64, error)                   { return 0, nil }

// mockTx runs the function inline and records whether it committed.
type mockTx struct {
	calls     int
	committed int
}

func (m *mockTx) WithTransaction(_ context.Context, fn database.TxFunc) error {
	m.calls++
	if err := fn(nil); err != nil {
		return err
	}
	m.committed++
	return nil
}

type mockSubmitter struct {
	submitFn func(ctx context.Context, req graph.SubmitRequest) (*domain.Paper, repository.InsertOutcome, error)
}

func (m *mockSubmitter) Submit(ctx context.Context, req graph.SubmitRequest) (*domain.Paper, repository.InsertOutcome, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return nil, repository.Created, domain.ErrServiceUnavailable
}

type mockResolver struct {
	resolveFn func(ctx context.Context, document string) (citations.Resolution, error)
}

func (m *mockResolver) Resolve(ctx context.Context, document string) (citations.Resolution, error) {
	return m.resolveFn(ctx, document)
}

type mockExpander struct {
	expandFn func(ctx context.Context, store *repository.Store, paper *domain.Paper) (*graph.ExpandResult, error)
}

func (m *mockExpander) Expand(ctx context.Context, store *repository.Store, paper *domain.Paper) (*graph.ExpandResult, error) {
	if m.expandFn != nil {
		return m.expandFn(ctx, store, paper)
	}
	return &graph.ExpandResult{Paper: paper}, nil
}

type mockPublisher struct {
	published []*domain.GraphEvent
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, evs ...*domain.GraphEvent) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, evs...)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockHealth struct {
	status database.HealthStatus
}

func (m mockHealth) Health(context.Context) database.HealthStatus { return m.status }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// testDeps bundles the mocks behind one test server.
type testDeps struct {
	papers    *mockPaperRepo
	rels      *mockRelationshipRepo
	tags      *mockTagRepo
	tx        *mockTx
	intake    *mockSubmitter
	resolver  *mockResolver
	expander  *mockExpander
	publisher *mockPublisher
	health    mockHealth
}

func newTestDeps() *testDeps {
	return &testDeps{
		papers:    &mockPaperRepo{},
		rels:      &mockRelationshipRepo{},
		tags:      &mockTagRepo{},
		tx:        &mockTx{},
		intake:    &mockSubmitter{},
		resolver:  &mockResolver{},
		expander:  &mockExpander{},
		publisher: &mockPublisher{},
		health:    mockHealth{status: database.HealthStatus{Status: "healthy"}},
	}
}

func newTestHTTPServer(d *testDeps) *Server {
	store := &repository.Store{
		Papers:        d.papers,
		Relationships: d.rels,
		Tags:          d.tags,
		Queue:         mockQueueRepo{},
	}
	return NewServer(Config{}, Dependencies{
		Store:     store,
		Tx:        d.tx,
		Stores:    func(repository.DBTX) *repository.Store { return store },
		Intake:    d.intake,
		Resolver:  d.resolver,
		Expander:  d.expander,
		Publisher: d.publisher,
		Health:    d.health,
	}, zerolog.Nop())
}

// serveHTTP dispatches a request through the test server's router and returns the recorder.
func serveHTTP(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, r)
	return rr
}

// decodeJSON decodes a JSON response body into the given target.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// Ensure the inline transaction satisfies the interface handlers expect.
var _ database.TxRunner = (*mockTx)(nil)
