package arxiv

import "encoding/xml"

// Feed represents the Atom XML response from the arXiv export API.
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	Entries      []Entry  `xml:"entry"`
}

// Entry is a single result in the Atom feed. Only the identity fields are
// decoded.
type Entry struct {
	ID    string `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title string `xml:"title"`
	DOI   string `xml:"http://arxiv.org/schemas/atom doi"`
	Links []Link `xml:"link"`
}

// Link represents a link element in the Atom feed.
type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}
