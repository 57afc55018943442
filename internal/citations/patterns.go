package citations

import (
	"regexp"
	"sync"
)

// Patterns holds the compiled expressions used by the segmenter and the
// extractor. A Patterns value is immutable once built and safe to share.
type Patterns struct {
	// URL matches http(s) links embedded in a citation.
	URL *regexp.Regexp
	// EntryMarker matches the \bibitem{key} marker opening each entry, with
	// or without a natbib style [label] argument.
	EntryMarker *regexp.Regexp
	// EndMarker matches \end{thebibliography}.
	EndMarker *regexp.Regexp

	// DOI is the general pattern. Group 1 is the candidate following "doi".
	DOI *regexp.Regexp
	// DOIPNAS is the PNAS fallback, run after inserting a slash before "pnas".
	DOIPNAS *regexp.Regexp
	// DOIJCB is the Journal of Cell Biology fallback.
	DOIJCB *regexp.Regexp
	// FASEBPrefix and JCBPrefix select candidates truncated to a fixed length.
	FASEBPrefix *regexp.Regexp
	JCBPrefix   *regexp.Regexp
	// DigitDotDigit is collapsed during the length repair of over-long candidates.
	DigitDotDigit *regexp.Regexp

	// ArXiv matches "arXiv:" followed by an identifier in group 1.
	ArXiv *regexp.Regexp
}

// NewPatterns compiles the expression set.
func NewPatterns() *Patterns {
	return &Patterns{
		URL:         regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`),
		EntryMarker: regexp.MustCompile(`\\bibitem(?:\[[^\]]*\])?\{.+?\}`),
		EndMarker:   regexp.MustCompile(`\\end\{thebibliography\}`),

		DOI:           regexp.MustCompile(`(?i)doi(/?:?\s?[0-9.]{7}/\S*[0-9])`),
		DOIPNAS:       regexp.MustCompile(`(?i)doi(.?10.1073/pnas\.\d+)`),
		DOIJCB:        regexp.MustCompile(`(?i)10\.1083/jcb\.\d{9}`),
		FASEBPrefix:   regexp.MustCompile(`^10.1096`),
		JCBPrefix:     regexp.MustCompile(`^10.1083`),
		DigitDotDigit: regexp.MustCompile(`\d\.\d`),

		ArXiv: regexp.MustCompile(`(?i)arxiv:\s*([\w./\-]+)`),
	}
}

var defaultPatterns = sync.OnceValue(NewPatterns)

// DefaultPatterns returns a process-wide shared Patterns value.
func DefaultPatterns() *Patterns {
	return defaultPatterns()
}
