package domain

import (
	"encoding/json"
	"strings"
)

// IdentifierKind discriminates the variants of ResolvedIdentifier.
type IdentifierKind int

const (
	// IdentifierUnresolved marks a citation that was attempted and not matched.
	IdentifierUnresolved IdentifierKind = iota
	// IdentifierDOI marks a DOI resolver URL.
	IdentifierDOI
	// IdentifierArXiv marks an arXiv abstract-page URL.
	IdentifierArXiv
)

// String returns the kind name.
func (k IdentifierKind) String() string {
	switch k {
	case IdentifierDOI:
		return "doi"
	case IdentifierArXiv:
		return "arxiv"
	default:
		return "unresolved"
	}
}

// ResolvedIdentifier is the outcome of resolving one citation. Value holds the
// identifier in URL form ("http://dx.doi.org/..." or an arXiv abstract URL)
// and is empty when Kind is IdentifierUnresolved.
type ResolvedIdentifier struct {
	Kind  IdentifierKind
	Value string
}

// DOIIdentifier returns a resolved DOI identifier.
func DOIIdentifier(value string) ResolvedIdentifier {
	return ResolvedIdentifier{Kind: IdentifierDOI, Value: value}
}

// ArXivIdentifier returns a resolved arXiv identifier.
func ArXivIdentifier(value string) ResolvedIdentifier {
	return ResolvedIdentifier{Kind: IdentifierArXiv, Value: value}
}

// Unresolved returns the explicit "no match" identifier.
func Unresolved() ResolvedIdentifier {
	return ResolvedIdentifier{}
}

// IsResolved reports whether the identifier carries a value.
func (r ResolvedIdentifier) IsResolved() bool {
	return r.Kind != IdentifierUnresolved && r.Value != ""
}

// String returns the identifier value, or "none" when unresolved.
func (r ResolvedIdentifier) String() string {
	if !r.IsResolved() {
		return "none"
	}
	return r.Value
}

// MarshalJSON encodes the value, or null when unresolved.
func (r ResolvedIdentifier) MarshalJSON() ([]byte, error) {
	if !r.IsResolved() {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// ClassifyIdentifier determines the kind of an identifier from its literal
// form: a resolver-domain substring means DOI, an archive-domain substring
// means arXiv. Anything else is IdentifierUnresolved.
func ClassifyIdentifier(value string) IdentifierKind {
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "dx.doi.org"):
		return IdentifierDOI
	case strings.Contains(lower, "arxiv.org"):
		return IdentifierArXiv
	default:
		return IdentifierUnresolved
	}
}
