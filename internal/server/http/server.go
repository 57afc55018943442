// Package httpserver provides the JSON:API HTTP server for the citation graph.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/citations"
	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/events"
	"github.com/helixir/citation-graph-service/internal/graph"
	"github.com/helixir/citation-graph-service/internal/repository"
)

// Resolver resolves one raw bibliography document.
type Resolver interface {
	Resolve(ctx context.Context, document string) (citations.Resolution, error)
}

// Expander expands one paper within a store.
type Expander interface {
	Expand(ctx context.Context, store *repository.Store, paper *domain.Paper) (*graph.ExpandResult, error)
}

// Submitter creates papers from a single identifier.
type Submitter interface {
	Submit(ctx context.Context, req graph.SubmitRequest) (*domain.Paper, repository.InsertOutcome, error)
}

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Dependencies are the collaborators used by the handlers.
type Dependencies struct {
	// Store serves reads and single-statement writes outside transactions.
	Store *repository.Store
	// Tx and Stores run multi-statement writes in one transaction.
	Tx     database.TxRunner
	Stores repository.StoreFactory

	Intake    Submitter
	Resolver  Resolver
	Expander  Expander
	Publisher events.Publisher
	Health    HealthChecker
}

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Dependencies
	validate   *requestValidator
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}

	s := &Server{
		deps:     deps,
		validate: newRequestValidator(),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Post("/resolve", s.resolveBibliography)

	r.Group(func(r chi.Router) {
		r.Use(jsonAPIContentTypeMiddleware)

		r.Get("/papers", s.listPapers)
		r.Post("/papers", s.createPaper)
		r.Route("/papers/{paperID}", func(r chi.Router) {
			r.Get("/", s.getPaper)
			r.Delete("/", s.deletePaper)
			r.Post("/expand", s.expandPaper)
			r.Get("/tags", s.listPaperTags)
			r.Get("/relationships/{name}", s.listRelationship)
			r.Post("/relationships/{name}", s.addRelationship)
			r.Delete("/relationships/{name}", s.removeRelationship)
		})

		r.Get("/tags", s.listTags)
		r.Get("/tags/{tagID}", s.getTag)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready once the database answers.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.deps.Health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}
