package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// linkageRequest is a JSON:API to-many linkage body.
type linkageRequest struct {
	Data []resourceIdentifier `json:"data"`
}

// listRelationship handles GET /papers/{paperID}/relationships/{name}.
// With reverse=true it lists papers linking to paperID instead.
func (s *Server) listRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paperID, ok := parseID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	reverse := parseBoolParam(r.URL.Query().Get("reverse"))

	if _, err := s.deps.Store.Papers.GetByID(ctx, paperID); err != nil {
		writeDomainError(w, err)
		return
	}

	linkage := []resourceObject{}
	rel, err := s.deps.Store.Relationships.GetRelationship(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// No edge can use an unknown relationship.
	case err != nil:
		writeDomainError(w, err)
		return
	default:
		papers, err := s.deps.Store.Relationships.ListLinked(ctx, paperID, rel.ID, reverse)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		for _, p := range papers {
			linkage = append(linkage, resourceObject{Type: resourcePapers, ID: p.IDString()})
		}
	}

	writeJSON(w, http.StatusOK, document{Data: linkage})
}

// addRelationship handles POST /papers/{paperID}/relationships/{name}.
// Existing edges are ignored; the relationship is created on first use.
func (s *Server) addRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paperID, name, targets, ok := s.parseLinkage(w, r)
	if !ok {
		return
	}

	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		store := s.deps.Stores(tx)
		rel, err := store.Relationships.EnsureRelationship(ctx, name)
		if err != nil {
			return err
		}
		for _, target := range targets {
			if _, err := store.Relationships.CreateEdge(ctx, paperID, target, rel.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeLinkageError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// removeRelationship handles DELETE /papers/{paperID}/relationships/{name}.
func (s *Server) removeRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paperID, name, targets, ok := s.parseLinkage(w, r)
	if !ok {
		return
	}

	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		store := s.deps.Stores(tx)
		rel, err := store.Relationships.GetRelationship(ctx, name)
		if err != nil {
			return err
		}
		return deleteEdges(ctx, store, paperID, targets, rel.ID)
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeLinkageError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func deleteEdges(ctx context.Context, store *repository.Store, paperID int64, targets []int64, relationshipID int) error {
	for _, target := range targets {
		if err := store.Relationships.DeleteEdge(ctx, paperID, target, relationshipID); err != nil {
			return err
		}
	}
	return nil
}

// parseLinkage reads the path parameters and the linkage body. Entries of
// another type or without a numeric id are ignored; a body with no usable
// entry is rejected with 403.
func (s *Server) parseLinkage(w http.ResponseWriter, r *http.Request) (int64, string, []int64, bool) {
	paperID, ok := parseID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return 0, "", nil, false
	}
	name := chi.URLParam(r, "name")

	var req linkageRequest
	if !s.decodeBody(w, r, &req) {
		return 0, "", nil, false
	}

	targets := make([]int64, 0, len(req.Data))
	for _, ident := range req.Data {
		if ident.Type != resourcePapers && ident.Type != name {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(ident.ID), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		writeError(w, http.StatusForbidden, "data must list at least one paper")
		return 0, "", nil, false
	}
	return paperID, name, targets, true
}

// writeLinkageError reports a rejected linkage update. Missing papers and
// invalid relationship names are client errors on the linkage itself.
func writeLinkageError(w http.ResponseWriter, err error) {
	var (
		nf *domain.NotFoundError
		ve *domain.ValidationError
	)
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusForbidden, fmt.Sprintf("unknown %s %s", nf.Entity, nf.ID))
	case errors.As(err, &ve):
		writeError(w, http.StatusForbidden, ve.Error())
	default:
		writeDomainError(w, err)
	}
}

func parseBoolParam(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
