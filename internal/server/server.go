// Package server provides the HTTP API for doko.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dokoapp/doko/internal/assets"
	"github.com/dokoapp/doko/internal/config"
	"github.com/dokoapp/doko/internal/ingest"
	"github.com/dokoapp/doko/internal/inventory"
	"github.com/dokoapp/doko/internal/search"
	"github.com/dokoapp/doko/internal/storage"
)

// Server is the HTTP server for the doko API.
type Server struct {
	engine      *search.Engine
	service     *inventory.Service
	coordinator *ingest.Coordinator
	assets      assets.Store
	store       storage.Store
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	service *inventory.Service,
	coordinator *ingest.Coordinator,
	assetStore assets.Store,
	store storage.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:      engine,
		service:     service,
		coordinator: coordinator,
		assets:      assetStore,
		store:       store,
		config:      cfg,
		logger:      logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)

	r.Route("/api/v1/containers", func(r chi.Router) {
		r.Post("/", s.handleCreateContainer)
		r.Get("/", s.handleListContainers)
		r.Patch("/{id}", s.handleUpdateContainer)
		r.Delete("/{id}", s.handleDeleteContainer)
		r.Get("/{id}/items", s.handleListContainerItems)
		r.Post("/{id}/ingest", s.handleIngest)
	})

	r.Route("/api/v1/items", func(r chi.Router) {
		r.Get("/", s.handleBrowseItems)
		r.Get("/{id}", s.handleGetItem)
		r.Post("/{id}/move", s.handleMoveItem)
		r.Patch("/{id}/description", s.handleEditItem)
		r.Delete("/{id}", s.handleDeleteItem)
		r.Get("/{id}/image", s.handleGetItemImage)
	})

	r.Get("/api/v1/imports", s.handleListImports)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
