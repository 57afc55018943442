package domain

import (
	"strconv"
	"strings"
	"time"
)

// Resolver and abstract-page prefixes used for identifier values produced by
// citation resolution.
const (
	DOIResolverBase   = "http://dx.doi.org/"
	ArXivAbstractBase = "http://arxiv.org/abs/"
)

// RelationshipCite is the relationship name recorded for citation edges.
const RelationshipCite = "cite"

// Paper is a durable paper record. At least one of DOI and ArXivID is set.
type Paper struct {
	ID        int64     `json:"id"`
	DOI       string    `json:"doi,omitempty"`
	ArXivID   string    `json:"arxiv_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasArXivID reports whether the paper carries a preprint identity and can
// therefore be expanded.
func (p *Paper) HasArXivID() bool {
	return p != nil && p.ArXivID != ""
}

// IDString returns the numeric id formatted for logs and JSON:API payloads.
func (p *Paper) IDString() string {
	return strconv.FormatInt(p.ID, 10)
}

// Relationship is a named kind of directed paper-to-paper link.
type Relationship struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Edge is a directed relationship between two papers.
type Edge struct {
	LeftPaperID  int64     `json:"left_paper_id"`
	RightPaperID int64     `json:"right_paper_id"`
	Kind         string    `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

// Tag labels papers.
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// QueueEntry records a paper whose outbound citations have not been walked yet.
// Attempts counts failed processing attempts.
type QueueEntry struct {
	ID            int64
	PaperID       int64
	EnqueuedAt    time.Time
	Attempts      int
	LastAttemptAt *time.Time
}

// BareDOI strips resolver URL prefixes and a "doi:" scheme from a DOI.
func BareDOI(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{
		"https://dx.doi.org/",
		"http://dx.doi.org/",
		"https://doi.org/",
		"http://doi.org/",
		"doi:",
	} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}

// BareArXivID reduces an arXiv abstract or PDF URL to the identifier itself.
// Plain identifiers and "arXiv:" prefixed ones are accepted too.
func BareArXivID(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if idx := strings.Index(lower, "arxiv.org/"); idx >= 0 {
		s = s[idx+len("arxiv.org/"):]
		lower = lower[idx+len("arxiv.org/"):]
		for _, section := range []string{"abs/", "pdf/", "e-print/"} {
			if strings.HasPrefix(lower, section) {
				s = s[len(section):]
				break
			}
		}
		s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".pdf")
		return s
	}
	if strings.HasPrefix(lower, "arxiv:") {
		return strings.TrimSpace(s[len("arxiv:"):])
	}
	return s
}
