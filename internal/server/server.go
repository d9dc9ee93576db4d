// Package server provides the HTTP API for cursobot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/chat"
	"github.com/hyperjump/cursobot/internal/config"
	"github.com/hyperjump/cursobot/internal/ranking"
	"github.com/hyperjump/cursobot/internal/storage"
)

// ChatService processes one user message.
type ChatService interface {
	Process(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

// CatalogProvider exposes the catalog snapshot and reloads it.
type CatalogProvider interface {
	Get() (*catalog.Catalog, error)
	Reload() (*catalog.Catalog, error)
	Status() catalog.Status
}

// Ranker ranks a free-text query against a catalog.
type Ranker interface {
	RankVariant(variant ranking.Variant, query string, cat *catalog.Catalog, topK int, weight float64) (*ranking.Result, error)
}

// TaggerStatus reports whether user messages are tagged with topic clusters.
type TaggerStatus struct {
	Enabled  bool   `json:"enabled"`
	Ready    bool   `json:"ready"`
	Embedder string `json:"embedder,omitempty"`
	Clusters int    `json:"clusters,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Deps are the components the server routes to.
type Deps struct {
	Chat     ChatService
	Store    storage.Storage
	Catalogs CatalogProvider
	Ranker   Ranker
	Tagger   TaggerStatus
	Config   *config.Config
	Logger   *zap.Logger
}

// Server is the HTTP server for the cursobot API.
type Server struct {
	chat     ChatService
	store    storage.Storage
	catalogs CatalogProvider
	ranker   Ranker
	tagger   TaggerStatus
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chat:     d.Chat,
		store:    d.Store,
		catalogs: d.Catalogs,
		ranker:   d.Ranker,
		tagger:   d.Tagger,
		config:   d.Config,
		logger:   logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(observeRequests)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limit := s.config.Server.RateLimit; limit > 0 {
				r.Use(httprate.LimitByIP(limit, time.Minute))
			}
			r.Post("/chatbot/message", s.handleMessage)
		})

		r.Get("/conversations", s.handleListConversations)
		r.Post("/conversations", s.handleCreateConversation)
		r.Get("/conversations/{id}/messages", s.handleGetMessages)
		r.Delete("/conversations/{id}", s.handleDeleteConversation)

		r.Get("/recommendations", s.handleRecommendations)

		r.Get("/models/status", s.handleStatus)
		r.Post("/models/reload", s.handleReload)

		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.Handler())
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
