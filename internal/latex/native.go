package latex

import (
	"context"
	"regexp"
	"strings"

	"github.com/helixir/citation-graph-service/internal/citations"
)

var (
	commentRe   = regexp.MustCompile(`(?m)(^|[^\\])%.*$`)
	bibinfoRe   = regexp.MustCompile(`\\bib(?:info|field)\s*\{[^{}]*\}\s*`)
	hrefRe      = regexp.MustCompile(`\\(?:href|Eprint)\s*\{([^{}]*)\}\s*`)
	symAccentRe = regexp.MustCompile(`\\['"^` + "`" + `~=.]\{?\\?([A-Za-z])\}?`)
	letAccentRe = regexp.MustCompile(`\\[uvHcdbtk](?:\s+|\{)\\?([A-Za-z])\}?`)
	escapeRe    = regexp.MustCompile(`\\([&%_$#{}])`)
	shutRe      = regexp.MustCompile(`\\BibitemShut\s*\{[^{}]*\}`)
	commandRe   = regexp.MustCompile(`\\[a-zA-Z@]+\*?(?:\s*\[[^\]]*\])?`)
	breakRe     = regexp.MustCompile(`\\\\|\\newblock\b|\\ `)
	mathMarkRe  = regexp.MustCompile(`[{}$]`)
)

var escapePlaceholders = strings.NewReplacer(
	"\x00amp", "&", "\x00pct", "%", "\x00us", "_", "\x00dol", "$", "\x00hash", "#", "\x00lb", "{", "\x00rb", "}",
)

// NativeStripper is an in-process approximation of a LaTeX-to-text converter.
// It keeps the text of macro arguments and drops macro names, comments,
// braces and math delimiters. \doibase becomes "doi:" so revtex DOIs stay
// recognisable.
type NativeStripper struct{}

// NewNativeStripper creates a NativeStripper.
func NewNativeStripper() *NativeStripper {
	return &NativeStripper{}
}

var _ citations.MarkupStripper = (*NativeStripper)(nil)

// Strip converts markup. It never fails.
func (s *NativeStripper) Strip(_ context.Context, markup string) (string, error) {
	return StripString(markup), nil
}

// StripString is the conversion used by NativeStripper.
func StripString(markup string) string {
	text := commentRe.ReplaceAllString(markup, "$1")
	text = shutRe.ReplaceAllString(text, "")
	text = bibinfoRe.ReplaceAllString(text, "")
	text = hrefRe.ReplaceAllString(text, "$1 ")
	text = strings.ReplaceAll(text, `\doibase`, "doi:")
	text = symAccentRe.ReplaceAllString(text, "$1")
	text = letAccentRe.ReplaceAllString(text, "$1")
	text = escapeRe.ReplaceAllStringFunc(text, func(m string) string {
		switch m[1] {
		case '&':
			return "\x00amp"
		case '%':
			return "\x00pct"
		case '_':
			return "\x00us"
		case '$':
			return "\x00dol"
		case '#':
			return "\x00hash"
		case '{':
			return "\x00lb"
		default:
			return "\x00rb"
		}
	})
	text = breakRe.ReplaceAllString(text, " ")
	text = commandRe.ReplaceAllString(text, "")
	text = mathMarkRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "~", " ")
	text = strings.ReplaceAll(text, "--", "-")
	return escapePlaceholders.Replace(text)
}
