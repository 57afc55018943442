package graph

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/helixir/citation-graph-service/internal/citations"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// memGraph is an in-memory stand-in for the Postgres tables touched by the
// expander. It enforces the same uniqueness rules.
type memGraph struct {
	mu       sync.Mutex
	nextID   int64
	papers   map[int64]*domain.Paper
	edges    map[[3]int64]struct{}
	queue    []int64
	queued   map[int64]bool
	rels     map[string]int
	createFn func(doi, arxivID string) error
}

func newMemGraph() *memGraph {
	return &memGraph{
		papers: make(map[int64]*domain.Paper),
		edges:  make(map[[3]int64]struct{}),
		queued: make(map[int64]bool),
		rels:   map[string]int{domain.RelationshipCite: 1},
	}
}

func (g *memGraph) store() *repository.Store {
	return &repository.Store{
		Papers:        memPapers{g},
		Relationships: memRelationships{g},
		Queue:         memQueue{g},
	}
}

func (g *memGraph) addPaper(doi, arxivID string) *domain.Paper {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	p := &domain.Paper{ID: g.nextID, DOI: doi, ArXivID: arxivID, CreatedAt: time.Now()}
	g.papers[p.ID] = p
	return p
}

func (g *memGraph) edgeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edges)
}

func (g *memGraph) hasEdge(left, right int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.edges[[3]int64{left, right, 1}]
	return ok
}

func (g *memGraph) queuedPapers() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.queue...)
}

func (g *memGraph) findBy(match func(*domain.Paper) bool) *domain.Paper {
	for id := int64(1); id <= g.nextID; id++ {
		if p, ok := g.papers[id]; ok && match(p) {
			return p
		}
	}
	return nil
}

type memPapers struct{ g *memGraph }

func (m memPapers) GetByID(_ context.Context, id int64) (*domain.Paper, error) {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	if p, ok := m.g.papers[id]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("paper", strconv.FormatInt(id, 10))
}

func (m memPapers) FindByDOI(_ context.Context, doi string) (*domain.Paper, error) {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	if p := m.g.findBy(func(p *domain.Paper) bool { return p.DOI == doi }); p != nil {
		return p, nil
	}
	return nil, domain.NewNotFoundError("paper", "doi:"+doi)
}

func (m memPapers) FindByArXivID(_ context.Context, arxivID string) (*domain.Paper, error) {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	if p := m.g.findBy(func(p *domain.Paper) bool { return p.ArXivID == arxivID }); p != nil {
		return p, nil
	}
	return nil, domain.NewNotFoundError("paper", "arxiv_id:"+arxivID)
}

func (m memPapers) List(_ context.Context, _ repository.PaperFilter) ([]*domain.Paper, error) {
	return nil, nil
}

func (m memPapers) Create(_ context.Context, doi, arxivID string) (*domain.Paper, repository.InsertOutcome, error) {
	if m.g.createFn != nil {
		if err := m.g.createFn(doi, arxivID); err != nil {
			return nil, repository.Created, err
		}
	}
	m.g.mu.Lock()
	if p := m.g.findBy(func(p *domain.Paper) bool {
		return (doi != "" && p.DOI == doi) || (arxivID != "" && p.ArXivID == arxivID)
	}); p != nil {
		m.g.mu.Unlock()
		return p, repository.AlreadyExists, nil
	}
	m.g.mu.Unlock()
	return m.g.addPaper(doi, arxivID), repository.Created, nil
}

func (m memPapers) Delete(_ context.Context, id int64) error {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	delete(m.g.papers, id)
	return nil
}

type memRelationships struct{ g *memGraph }

func (m memRelationships) EnsureRelationship(_ context.Context, name string) (*domain.Relationship, error) {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	id, ok := m.g.rels[name]
	if !ok {
		id = len(m.g.rels) + 1
		m.g.rels[name] = id
	}
	return &domain.Relationship{ID: id, Name: name}, nil
}

func (m memRelationships) GetRelationship(ctx context.Context, name string) (*domain.Relationship, error) {
	return m.EnsureRelationship(ctx, name)
}

func (m memRelationships) CreateEdge(_ context.Context, left, right int64, rel int) (repository.InsertOutcome, error) {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	key := [3]int64{left, right, int64(rel)}
	if _, ok := m.g.edges[key]; ok {
		return repository.AlreadyExists, nil
	}
	m.g.edges[key] = struct{}{}
	return repository.Created, nil
}

func (m memRelationships) DeleteEdge(_ context.Context, left, right int64, rel int) error {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	delete(m.g.edges, [3]int64{left, right, int64(rel)})
	return nil
}

func (m memRelationships) ListLinked(_ context.Context, _ int64, _ int, _ bool) ([]*domain.Paper, error) {
	return nil, nil
}

type memQueue struct{ g *memGraph }

func (m memQueue) Enqueue(_ context.Context, paperID int64) (repository.InsertOutcome, error) {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	if m.g.queued[paperID] {
		return repository.AlreadyExists, nil
	}
	m.g.queued[paperID] = true
	m.g.queue = append(m.g.queue, paperID)
	return repository.Created, nil
}

func (m memQueue) DequeueOne(_ context.Context) (*domain.QueueEntry, error) { return nil, nil }
func (m memQueue) RecordFailure(_ context.Context, _ int64) error           { return nil }
func (m memQueue) Delete(_ context.Context, _ int64) error                  { return nil }
func (m memQueue) Count(_ context.Context) (int64, error) {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	return int64(len(m.g.queue)), nil
}

type mockFetcher struct {
	fetchFn func(ctx context.Context, arxivID string) ([]string, error)
	calls   []string
}

func (m *mockFetcher) FetchBibliographies(ctx context.Context, arxivID string) ([]string, error) {
	m.calls = append(m.calls, arxivID)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, arxivID)
	}
	return nil, nil
}

type mockResolver struct {
	resolveFn func(ctx context.Context, documents []string) (citations.Resolution, error)
}

func (m *mockResolver) ResolveAll(ctx context.Context, documents []string) (citations.Resolution, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, documents)
	}
	return citations.Resolution{}, nil
}

type mockLookup struct {
	arxivFn func(ctx context.Context, doi string) (string, error)
	doiFn   func(ctx context.Context, arxivID string) (string, error)
}

func (m *mockLookup) LookupArXivID(ctx context.Context, doi string) (string, error) {
	if m.arxivFn != nil {
		return m.arxivFn(ctx, doi)
	}
	return "", nil
}

func (m *mockLookup) LookupDOI(ctx context.Context, arxivID string) (string, error) {
	if m.doiFn != nil {
		return m.doiFn(ctx, arxivID)
	}
	return "", nil
}
