// Package server provides the HTTP API over the indexing engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tansa-search/tansa/internal/config"
	"github.com/tansa-search/tansa/internal/controller"
	"github.com/tansa-search/tansa/internal/query"
)

// Server hosts the engine's HTTP surface.
type Server struct {
	engine *query.Engine
	ctrl   *controller.Controller
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *query.Engine, ctrl *controller.Controller, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		engine: engine,
		ctrl:   ctrl,
		config: cfg,
		logger: logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// The SSE stream is long-lived; everything else gets a timeout.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/api/v1/search", s.handleSearch)

		r.Post("/api/v1/index/start", s.handleIndexStart)
		r.Post("/api/v1/index/pause", s.handleIndexPause)
		r.Post("/api/v1/index/resume", s.handleIndexResume)
		r.Post("/api/v1/index/cancel", s.handleIndexCancel)
		r.Get("/api/v1/index/stats", s.handleIndexStats)
		r.Get("/api/v1/index/progress", s.handleIndexProgress)

		r.Get("/api/v1/roots", s.handleRootsList)
		r.Post("/api/v1/roots", s.handleRootsAdd)
		r.Delete("/api/v1/roots", s.handleRootsRemove)

		r.Get("/api/v1/sessions", s.handleSessionsList)
		r.Get("/api/v1/sessions/{id}/errors", s.handleSessionErrors)

		r.Get("/health", s.handleHealth)
	})

	r.Get("/api/v1/events", s.handleEvents)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
