package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// listTags handles GET /tags.
func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.deps.Store.Tags.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(tags) == 0 {
		writeError(w, http.StatusNotFound, "no tags")
		return
	}
	writeJSON(w, http.StatusOK, document{Data: tagResources(tags)})
}

// getTag handles GET /tags/{tagID}.
func (s *Server) getTag(w http.ResponseWriter, r *http.Request) {
	tagID, err := strconv.Atoi(chi.URLParam(r, "tagID"))
	if err != nil || tagID <= 0 {
		writeError(w, http.StatusBadRequest, "tag_id must be a positive integer")
		return
	}

	tag, err := s.deps.Store.Tags.GetByID(r.Context(), tagID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, document{Data: tagResource(tag)})
}

// listPaperTags handles GET /papers/{paperID}/tags.
func (s *Server) listPaperTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paperID, ok := parseID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	if _, err := s.deps.Store.Papers.GetByID(ctx, paperID); err != nil {
		writeDomainError(w, err)
		return
	}
	tags, err := s.deps.Store.Tags.ListForPaper(ctx, paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, document{Data: tagResources(tags)})
}
