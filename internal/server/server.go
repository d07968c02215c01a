// Package server provides the HTTP API for Musubu.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/musubu/internal/catalog"
	"github.com/hyperjump/musubu/internal/config"
	"github.com/hyperjump/musubu/internal/hdql"
	"github.com/hyperjump/musubu/internal/store"
)

// Server is the HTTP server for the Musubu API.
type Server struct {
	engine  *hdql.Engine
	store   *store.Store
	catalog *catalog.Catalog
	sqlite  *store.SQLiteStore
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. catalog and sqlite
// may be nil; the corresponding endpoints then report not implemented or skip
// persistence.
func NewServer(
	engine *hdql.Engine,
	st *store.Store,
	cat *catalog.Catalog,
	sqlite *store.SQLiteStore,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		store:   st,
		catalog: cat,
		sqlite:  sqlite,
		config:  cfg,
		logger:  logger,
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/explain", s.handleExplain)
	r.Post("/api/v1/entities", s.handlePutEntity)
	r.Get("/api/v1/entities", s.handleListEntities)
	r.Get("/api/v1/entities/{key}", s.handleGetEntity)
	r.Delete("/api/v1/entities/{key}", s.handleDeleteEntity)
	r.Get("/api/v1/catalog/search", s.handleCatalogSearch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
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
