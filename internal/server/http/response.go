package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/graph"
)

// contentTypeJSONAPI is the JSON:API media type.
const contentTypeJSONAPI = "application/vnd.api+json"

// JSON:API resource types.
const (
	resourcePapers = "papers"
	resourceTags   = "tags"
)

// resourceObject is a JSON:API resource.
type resourceObject struct {
	Type       string      `json:"type"`
	ID         string      `json:"id"`
	Attributes interface{} `json:"attributes,omitempty"`
}

// resourceIdentifier is a JSON:API resource linkage.
type resourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// document is a JSON:API top-level document.
type document struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// errorObject is a JSON:API error.
type errorObject struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

type errorDocument struct {
	Errors []errorObject `json:"errors"`
}

type paperAttributes struct {
	DOI       string    `json:"doi,omitempty"`
	ArXivID   string    `json:"arxiv_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type tagAttributes struct {
	Name string `json:"name"`
}

// Converter functions

func paperResource(p *domain.Paper) resourceObject {
	return resourceObject{
		Type: resourcePapers,
		ID:   p.IDString(),
		Attributes: paperAttributes{
			DOI:       p.DOI,
			ArXivID:   p.ArXivID,
			CreatedAt: p.CreatedAt,
		},
	}
}

func paperResources(papers []*domain.Paper) []resourceObject {
	out := make([]resourceObject, len(papers))
	for i, p := range papers {
		out[i] = paperResource(p)
	}
	return out
}

func tagResource(t *domain.Tag) resourceObject {
	return resourceObject{
		Type:       resourceTags,
		ID:         strconv.Itoa(t.ID),
		Attributes: tagAttributes{Name: t.Name},
	}
}

func tagResources(tags []*domain.Tag) []resourceObject {
	out := make([]resourceObject, len(tags))
	for i, t := range tags {
		out[i] = tagResource(t)
	}
	return out
}

func expandMeta(result *graph.ExpandResult) map[string]interface{} {
	return map[string]interface{}{
		"cited":      result.Resolved,
		"discovered": len(result.Discovered),
		"edges":      len(result.Edges),
		"skipped":    result.Skipped,
	}
}

// writeJSON writes a JSON response with the given status code. The content
// type set by middleware, if any, is kept.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	if w.Header().Get(headerContentType) == "" {
		w.Header().Set(headerContentType, "application/json")
	}
	w.WriteHeader(statusCode)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON:API error document.
func writeError(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, errorDocument{Errors: []errorObject{{
		Status: strconv.Itoa(statusCode),
		Title:  http.StatusText(statusCode),
		Detail: detail,
	}}})
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
		} else {
			writeError(w, http.StatusNotFound, "resource not found")
		}
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrConversionFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, "upstream returned a malformed response")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
