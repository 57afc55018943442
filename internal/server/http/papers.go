package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/graph"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// Pagination defaults for list endpoints.
const (
	defaultPageSize = 100
	maxPageSize     = 1000

	// maxBodyBytes bounds JSON request bodies.
	maxBodyBytes = 1 << 20
)

type createPaperRequest struct {
	Data *createPaperData `json:"data" validate:"required"`
}

type createPaperData struct {
	Type       string           `json:"type" validate:"required,eq=papers"`
	Attributes *paperAttributes `json:"attributes" validate:"required"`
}

// listPapers handles GET /papers. Filters on id, doi and arxiv_id are ANDed.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	limit, offset := parsePaginationParams(r)
	filter := repository.PaperFilter{
		DOI:     domain.BareDOI(query.Get("doi")),
		ArXivID: domain.BareArXivID(query.Get("arxiv_id")),
		Limit:   limit,
		Offset:  offset,
	}
	if idParam := query.Get("id"); idParam != "" {
		id, ok := parseID(w, idParam, "id")
		if !ok {
			return
		}
		filter.ID = &id
	}

	papers, err := s.deps.Store.Papers.List(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(papers) == 0 {
		writeError(w, http.StatusNotFound, "no paper matches the given filters")
		return
	}

	writeJSON(w, http.StatusOK, document{Data: paperResources(papers)})
}

// getPaper handles GET /papers/{paperID}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parseID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	paper, err := s.deps.Store.Papers.GetByID(r.Context(), paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, document{Data: paperResource(paper)})
}

// createPaper handles POST /papers. The body names the paper by exactly one
// of doi and arxiv_id; the other identifier is looked up upstream.
func (s *Server) createPaper(w http.ResponseWriter, r *http.Request) {
	var req createPaperRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	paper, outcome, err := s.deps.Intake.Submit(r.Context(), graph.SubmitRequest{
		DOI:     req.Data.Attributes.DOI,
		ArXivID: req.Data.Attributes.ArXivID,
		Origin:  graph.OriginAPI,
	})
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusForbidden, ve.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	if outcome == repository.AlreadyExists {
		w.Header().Set("Location", paperLocation(paper.ID))
		writeError(w, http.StatusConflict, fmt.Sprintf("paper %d already exists", paper.ID))
		return
	}

	w.Header().Set("Location", paperLocation(paper.ID))
	writeJSON(w, http.StatusCreated, document{Data: paperResource(paper)})
}

// deletePaper handles DELETE /papers/{paperID}.
func (s *Server) deletePaper(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parseID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	if err := s.deps.Store.Papers.Delete(r.Context(), paperID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// expandPaper handles POST /papers/{paperID}/expand. The expansion runs in
// one transaction and its events are published once it commits. A queue entry
// for the paper is left alone; the worker's later pass changes nothing.
func (s *Server) expandPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paperID, ok := parseID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	var result *graph.ExpandResult
	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		store := s.deps.Stores(tx)

		paper, err := store.Papers.GetByID(ctx, paperID)
		if err != nil {
			return err
		}
		result, err = s.deps.Expander.Expand(ctx, store, paper)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("paper_id", paperID).Msg("expand paper failed")
		writeDomainError(w, err)
		return
	}

	evs, err := result.Events()
	if err == nil {
		err = s.deps.Publisher.Publish(ctx, evs...)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("paper_id", paperID).Msg("failed to publish graph events")
	}

	writeJSON(w, http.StatusOK, document{
		Data: paperResource(result.Paper),
		Meta: expandMeta(result),
	})
}

// decodeBody decodes a JSON request body into v, writing 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// parseID parses a positive numeric path or query parameter.
func parseID(w http.ResponseWriter, s, fieldName string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", fieldName))
		return 0, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query parameters.
// It applies default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

func paperLocation(id int64) string {
	return "/papers/" + strconv.FormatInt(id, 10)
}
