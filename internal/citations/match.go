package citations

import (
	"context"
	"fmt"
	"strings"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
)

// MaxBatchSize is the largest number of citations sent in one matching request.
const MaxBatchSize = 10

// MatchResult is the matching service's answer for one citation. DOI is empty
// when the service found nothing.
type MatchResult struct {
	Text string
	DOI  string
}

// CitationMatcher queries an external fuzzy bibliographic matching service.
// Implementations return exactly one result per input citation, in order.
type CitationMatcher interface {
	MatchCitations(ctx context.Context, batch []string) ([]MatchResult, error)
}

// BatchMatcher resolves leftover citations through a CitationMatcher in
// bounded batches.
type BatchMatcher struct {
	matcher   CitationMatcher
	batchSize int
	metrics   *observability.Metrics
}

// NewBatchMatcher creates a BatchMatcher. batchSize is clamped to [1, MaxBatchSize].
func NewBatchMatcher(matcher CitationMatcher, batchSize int, metrics *observability.Metrics) *BatchMatcher {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &BatchMatcher{matcher: matcher, batchSize: batchSize, metrics: metrics}
}

// Match partitions citations into consecutive batches and returns an
// identifier for every citation, explicitly unresolved when the service had
// no match. Any failed batch fails the whole call.
func (m *BatchMatcher) Match(ctx context.Context, citations []string) (map[string]domain.ResolvedIdentifier, error) {
	out := make(map[string]domain.ResolvedIdentifier, len(citations))

	for start := 0; start < len(citations); start += m.batchSize {
		end := min(start+m.batchSize, len(citations))
		batch := citations[start:end]

		results, err := m.matcher.MatchCitations(ctx, batch)
		if err == nil && len(results) != len(batch) {
			err = fmt.Errorf("%w: %d results for %d citations", domain.ErrMalformedResponse, len(results), len(batch))
		}
		m.metrics.RecordMatchBatch(len(batch), err)
		if err != nil {
			return nil, fmt.Errorf("match batch %d-%d: %w", start, end, err)
		}

		for i, citation := range batch {
			out[citation] = matchedIdentifier(results[i].DOI)
		}
	}

	return out, nil
}

func matchedIdentifier(doi string) domain.ResolvedIdentifier {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return domain.Unresolved()
	}
	if domain.ClassifyIdentifier(doi) == domain.IdentifierDOI {
		return domain.DOIIdentifier(doi)
	}
	return domain.DOIIdentifier(domain.DOIResolverBase + domain.BareDOI(doi))
}
