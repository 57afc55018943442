package citations

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// Strategy names the step that produced an identifier.
type Strategy string

const (
	StrategyLink       Strategy = "link"
	StrategyPattern    Strategy = "pattern"
	StrategyMatch      Strategy = "match"
	StrategyUnresolved Strategy = "unresolved"
)

// Truncation thresholds applied to DOI candidates.
const (
	fasebDOILength = 20
	jcbDOILength   = 21
	maxDOILength   = 40
	doiPrefixRunes = 8
)

// CitationEntry is a plaintext citation with the links that were embedded in it.
// Text has the links removed.
type CitationEntry struct {
	Text string
	URLs []string
}

// Extraction is the outcome of running the extractor over one citation.
type Extraction struct {
	Entry      CitationEntry
	Identifier domain.ResolvedIdentifier
	Strategy   Strategy
}

// Extractor pulls canonical identifiers out of plaintext citations.
type Extractor struct {
	patterns *Patterns
}

// NewExtractor creates an Extractor.
func NewExtractor(patterns *Patterns) *Extractor {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &Extractor{patterns: patterns}
}

// Extract runs the link scan, then the pattern cascade. When neither yields
// an identifier the extraction is StrategyUnresolved and the caller should
// hand Entry.Text to the batch matcher.
func (e *Extractor) Extract(citation string) Extraction {
	entry := e.ScanURLs(citation)

	if id, ok := e.MatchLinks(entry.URLs); ok {
		return Extraction{Entry: entry, Identifier: id, Strategy: StrategyLink}
	}

	if id, matched, ok := e.MatchPattern(entry.Text); ok {
		entry.Text = Normalize(removeFold(entry.Text, matched))
		return Extraction{Entry: entry, Identifier: id, Strategy: StrategyPattern}
	}

	return Extraction{Entry: entry, Identifier: domain.Unresolved(), Strategy: StrategyUnresolved}
}

// ScanURLs collects the links in citation and removes them from its text.
// The returned URLs are lower-cased.
func (e *Extractor) ScanURLs(citation string) CitationEntry {
	raw := e.patterns.URL.FindAllString(citation, -1)
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		urls = append(urls, strings.ToLower(u))
		citation = strings.ReplaceAll(citation, u, "")
	}
	return CitationEntry{Text: Normalize(citation), URLs: urls}
}

// MatchLinks returns the identifier carried by the first DOI-resolver link,
// or failing that the first arXiv link.
func (e *Extractor) MatchLinks(urls []string) (domain.ResolvedIdentifier, bool) {
	for _, u := range urls {
		if idx := strings.Index(u, "/doi/"); idx >= 0 {
			return domain.DOIIdentifier("http://dx.doi.org" + u[idx+len("/doi"):]), true
		}
	}
	for _, u := range urls {
		if strings.Contains(u, "://arxiv.org") {
			return domain.ArXivIdentifier(u), true
		}
	}
	return domain.Unresolved(), false
}

// MatchPattern runs the DOI cascade and then the arXiv pattern over the
// lower-cased text. matched is the bare identifier that was found.
func (e *Extractor) MatchPattern(text string) (id domain.ResolvedIdentifier, matched string, ok bool) {
	lower := strings.ToLower(text)

	if doi, found := e.MatchDOI(lower); found {
		return domain.DOIIdentifier(domain.DOIResolverBase + doi), doi, true
	}

	if m := e.patterns.ArXiv.FindStringSubmatch(lower); m != nil {
		arxivID := strings.TrimRight(m[1], ".")
		if arxivID != "" {
			return domain.ArXivIdentifier(domain.ArXivAbstractBase + arxivID), arxivID, true
		}
	}

	return domain.Unresolved(), "", false
}

// MatchDOI runs the DOI pattern cascade over lower-cased text and returns the
// cleaned candidate.
func (e *Extractor) MatchDOI(lower string) (string, bool) {
	var candidate string

	if m := e.patterns.DOI.FindStringSubmatch(strings.ReplaceAll(lower, "&#338;", "-")); m != nil {
		candidate = m[1]
	} else if m := e.patterns.DOIPNAS.FindStringSubmatch(strings.ReplaceAll(lower, "pnas", "/pnas")); m != nil {
		candidate = m[1]
	} else if m := e.patterns.DOIJCB.FindString(lower); m != "" {
		candidate = m
	} else {
		return "", false
	}

	return e.cleanDOI(candidate), true
}

func (e *Extractor) cleanDOI(doi string) string {
	doi = strings.ReplaceAll(doi, ":", "")
	doi = strings.ReplaceAll(doi, " ", "")
	doi = strings.TrimPrefix(doi, "/")

	if e.patterns.FASEBPrefix.MatchString(doi) {
		doi = truncateRunes(doi, fasebDOILength)
	}
	if e.patterns.JCBPrefix.MatchString(doi) {
		doi = truncateRunes(doi, jcbDOILength)
	}
	if utf8.RuneCountInString(doi) > maxDOILength {
		doi = e.repairLength(doi)
	}
	return doi
}

// repairLength cuts an over-captured DOI at the first letter that immediately
// follows a digit in its suffix. Dots in the suffix count as letters and dashes as
// digits; digit-dot-digit runs are treated as digits. Without such a
// boundary the last character is dropped.
func (e *Extractor) repairLength(doi string) string {
	masked := []rune(e.patterns.DigitDotDigit.ReplaceAllString(doi, "000"))
	suffix := masked[doiPrefixRunes:]
	for i, r := range suffix {
		switch r {
		case '.':
			suffix[i] = 'A'
		case '-':
			suffix[i] = '0'
		}
	}

	cut := len(suffix) - 1
	afterDigit := false
	for i, r := range suffix {
		if afterDigit && unicode.IsLetter(r) {
			cut = i
			break
		}
		afterDigit = unicode.IsDigit(r)
	}

	return truncateRunes(doi, doiPrefixRunes+cut)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// removeFold deletes every case-insensitive occurrence of sub from s.
func removeFold(s, sub string) string {
	if sub == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if i+len(sub) <= len(s) && strings.EqualFold(s[i:i+len(sub)], sub) {
			i += len(sub)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
