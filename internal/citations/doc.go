// Package citations turns raw bibliography documents into a mapping from
// cleaned citation text to a resolved identifier.
//
// Resolution is layered. Each entry is first scanned for literal DOI or arXiv
// links, then matched against an ordered cascade of identifier patterns, and
// whatever is left is sent in bounded batches to an external citation
// matching service.
package citations
