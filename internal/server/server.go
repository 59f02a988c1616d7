// Package server exposes the catalog cache over HTTP for the mobile app
// shell. It implements a REST query surface plus a WebSocket endpoint that
// pushes catalog-update notifications while a deep-load is running. Routing
// uses chi/v5 with CORS support for development.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/streamnest/go-vod-cache/internal/cache"
	"github.com/streamnest/go-vod-cache/pkg/config"
)

// Server is the HTTP facade over the catalog cache.
type Server struct {
	config     *config.ServerConfig
	logger     *slog.Logger
	cache      *cache.Cache
	httpServer *http.Server
	router     chi.Router

	wsClients map[*WebSocketClient]bool
	wsMutex   sync.RWMutex
}

// New creates a new HTTP server over the given cache. The server is
// configured with middleware for logging, CORS, and request recovery.
func New(cfg *config.ServerConfig, catalogCache *cache.Cache, logger *slog.Logger) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		cache:     catalogCache,
		wsClients: make(map[*WebSocketClient]bool),
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures the middleware stack for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware())
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCompression {
		s.router.Use(middleware.Compress(5))
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(middleware.Timeout(30 * time.Second))
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Get("/search", s.handleSearch)
		r.Route("/categories/{id}", func(r chi.Router) {
			r.Get("/", s.handleCategory)
			r.Post("/more", s.handleLoadMore)
		})
		r.Route("/loader", func(r chi.Router) {
			r.Post("/start", s.handleLoaderStart)
			r.Post("/stop", s.handleLoaderStop)
		})
		r.Delete("/cache", s.handleCacheClear)
	})

	// WebSocket endpoint for catalog-update notifications
	s.router.Get("/ws/updates", s.handleWebSocket)
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		"address", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Error shutting down HTTP server", "error", err)
		return err
	}

	return nil
}

// registerWSClient adds a connected WebSocket client to the broadcast set.
func (s *Server) registerWSClient(client *WebSocketClient) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	s.wsClients[client] = true
}

// unregisterWSClient removes a WebSocket client from the broadcast set.
func (s *Server) unregisterWSClient(client *WebSocketClient) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	delete(s.wsClients, client)
}

// loggingMiddleware creates a structured logging middleware for HTTP requests.
func (s *Server) loggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			s.logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"ip", r.RemoteAddr,
			)
		})
	}
}
