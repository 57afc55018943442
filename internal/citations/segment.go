package citations

import (
	"context"
	"strings"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// MarkupStripper converts one bibliography entry from source markup to plain text.
type MarkupStripper interface {
	Strip(ctx context.Context, markup string) (string, error)
}

// MarkupStripperFunc adapts a function to MarkupStripper.
type MarkupStripperFunc func(ctx context.Context, markup string) (string, error)

// Strip calls f.
func (f MarkupStripperFunc) Strip(ctx context.Context, markup string) (string, error) {
	return f(ctx, markup)
}

// Segmenter splits a bibliography document into plaintext citation entries.
type Segmenter struct {
	patterns *Patterns
	stripper MarkupStripper
}

// NewSegmenter creates a Segmenter.
func NewSegmenter(patterns *Patterns, stripper MarkupStripper) *Segmenter {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &Segmenter{patterns: patterns, stripper: stripper}
}

// Split returns the raw markup of each entry in document order. Text before
// the first entry marker is dropped and the end-of-bibliography marker is
// removed.
func (s *Segmenter) Split(document string) []string {
	parts := s.patterns.EntryMarker.Split(document, -1)
	if len(parts) <= 1 {
		return nil
	}

	entries := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		entries = append(entries, strings.TrimSpace(s.patterns.EndMarker.ReplaceAllString(part, "")))
	}
	return entries
}

// Segment splits document into entries and converts each to normalized plain
// text. A conversion failure aborts the whole call with a
// *domain.ConversionError.
func (s *Segmenter) Segment(ctx context.Context, document string) ([]string, error) {
	entries := s.Split(document)
	citations := make([]string, 0, len(entries))

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plain, err := s.stripper.Strip(ctx, entry)
		if err != nil {
			return nil, domain.NewConversionError(i, err)
		}
		citations = append(citations, Normalize(plain))
	}

	return citations, nil
}
