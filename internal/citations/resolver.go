package citations

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
)

// Resolution maps cleaned citation text to its identifier. Every segmented
// citation appears exactly once; unmatched ones map to domain.Unresolved().
type Resolution map[string]domain.ResolvedIdentifier

// Merge copies other into r. Keys present in both take other's value.
func (r Resolution) Merge(other Resolution) {
	for k, v := range other {
		r[k] = v
	}
}

// Resolved returns the identifiers that carry a value.
func (r Resolution) Resolved() map[string]domain.ResolvedIdentifier {
	out := make(map[string]domain.ResolvedIdentifier, len(r))
	for k, v := range r {
		if v.IsResolved() {
			out[k] = v
		}
	}
	return out
}

// Resolver combines segmentation, extraction and batch matching.
type Resolver struct {
	segmenter *Segmenter
	extractor *Extractor
	matcher   *BatchMatcher
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewResolver creates a Resolver. A nil matcher leaves citations the
// extractor could not resolve as unresolved.
func NewResolver(segmenter *Segmenter, extractor *Extractor, matcher *BatchMatcher, logger zerolog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		segmenter: segmenter,
		extractor: extractor,
		matcher:   matcher,
		logger:    logger.With().Str("component", "resolver").Logger(),
		metrics:   metrics,
	}
}

// Resolve turns one raw bibliography document into a Resolution.
func (r *Resolver) Resolve(ctx context.Context, document string) (_ Resolution, err error) {
	ctx, span := observability.StartSpan(ctx, "citations.resolve")
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failed"
		}
		r.metrics.RecordResolution(outcome, time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	citations, err := r.segmenter.Segment(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("segment bibliography: %w", err)
	}
	span.SetAttributes(attribute.Int("citations.count", len(citations)))

	return r.ResolveCitations(ctx, citations)
}

// ResolveAll resolves several documents and merges the results.
func (r *Resolver) ResolveAll(ctx context.Context, documents []string) (Resolution, error) {
	out := make(Resolution)
	for i, doc := range documents {
		res, err := r.Resolve(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out.Merge(res)
	}
	return out, nil
}

// ResolveCitations resolves already segmented plaintext citations.
func (r *Resolver) ResolveCitations(ctx context.Context, citations []string) (Resolution, error) {
	out := make(Resolution, len(citations))
	counts := make(map[Strategy]int)

	var pending []string
	for _, citation := range citations {
		ext := r.extractor.Extract(citation)
		if ext.Strategy != StrategyUnresolved {
			out[ext.Entry.Text] = ext.Identifier
			counts[ext.Strategy]++
			continue
		}
		pending = append(pending, ext.Entry.Text)
	}

	leftovers := make([]string, 0, len(pending))
	seen := make(map[string]struct{}, len(pending))
	for _, text := range pending {
		if _, ok := out[text]; ok {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		leftovers = append(leftovers, text)
	}

	if len(leftovers) > 0 {
		if r.matcher == nil {
			for _, text := range leftovers {
				out[text] = domain.Unresolved()
			}
			counts[StrategyUnresolved] += len(leftovers)
		} else {
			matched, err := r.matcher.Match(ctx, leftovers)
			if err != nil {
				return nil, err
			}
			for text, id := range matched {
				out[text] = id
				if id.IsResolved() {
					counts[StrategyMatch]++
				} else {
					counts[StrategyUnresolved]++
				}
			}
		}
	}

	for strategy, n := range counts {
		r.metrics.RecordCitationsResolved(string(strategy), n)
	}
	r.logger.Debug().
		Int("citations", len(citations)).
		Int("link", counts[StrategyLink]).
		Int("pattern", counts[StrategyPattern]).
		Int("match", counts[StrategyMatch]).
		Int("unresolved", counts[StrategyUnresolved]).
		Msg("citations resolved")

	return out, nil
}
