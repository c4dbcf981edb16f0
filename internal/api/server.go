package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/doxnav/internal/config"
	"github.com/dgallion1/doxnav/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for doxnav.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/sites", s.handleUpload)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/stats", s.handleStats)

		r.Get("/api/sites", s.handleListSites)
		r.Route("/api/sites/{siteID}", func(r chi.Router) {
			r.Get("/", s.handleGetSite)
			r.Delete("/", s.handleDeleteSite)
			r.Get("/published", s.handlePublished)

			r.Get("/nav", s.handleNav)
			r.Get("/nav/path", s.handleNavPath)
			r.Get("/search", s.handleSearch)
			r.Get("/symbols/{key}", s.handleSymbol)
			r.Get("/validation", s.handleValidation)
			r.Get("/report", s.handleReport)
			r.Get("/export", s.handleExport)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
