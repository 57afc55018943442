package crossref

// LinksResponse is the body returned by the citation matching endpoint.
// Results line up positionally with the submitted citations.
type LinksResponse struct {
	QueryOK *bool        `json:"query_ok,omitempty"`
	Results []LinkResult `json:"results"`
}

// LinkResult is the service's verdict for one citation.
type LinkResult struct {
	Text  string  `json:"text"`
	Match *bool   `json:"match,omitempty"`
	DOI   string  `json:"doi,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// matched reports whether the result carries a usable DOI.
func (r LinkResult) matched() bool {
	if r.Match != nil && !*r.Match {
		return false
	}
	return r.DOI != ""
}
