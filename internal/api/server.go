package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/splinegest/internal/config"
	"github.com/dgallion1/splinegest/internal/metrics"
	"github.com/dgallion1/splinegest/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for splinegest.
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
	r.Handle("/metrics", metrics.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.SplinegestAPIKey, s.log))

		r.Post("/api/imports", s.handleImport)
		r.Post("/api/imports/batch", s.handleBatchImport)
		r.Get("/api/imports/{jobID}/status", s.handleImportStatus)
		r.Get("/api/imports/{jobID}/splines", s.handleJobSplines)
		r.Get("/api/imports/{jobID}/splines/{index}", s.handleJobSpline)
		r.Get("/api/imports/{jobID}/report", s.handleJobReport)
		r.Get("/api/imports/{jobID}/gltf", s.handleJobGLTF)

		r.Post("/api/parse", s.handleParse)
		r.Get("/api/stats/imports", s.handleImportStats)

		r.Get("/api/splines", s.handleListStored)
		r.Delete("/api/splines/{docID}", s.handleDeleteStored)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
