package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eshaffer321/ledger-reconcile/internal/api/handlers"
	"github.com/eshaffer321/ledger-reconcile/internal/api/middleware"
	"github.com/eshaffer321/ledger-reconcile/internal/application/service"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// ConfigFrom converts the api section of the application config.
func ConfigFrom(cfg config.APIConfig) Config {
	return Config{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

// Server is the HTTP API server.
type Server struct {
	config           Config
	router           chi.Router
	httpServer       *http.Server
	logger           *slog.Logger
	repo             storage.Repository
	reviewer         handlers.Reviewer
	reconcileService *service.ReconcileService
}

// NewServer creates a new API server.
// If reviewer is nil, accept, dismiss and unlink answer 501.
// If reconcileService is nil, reconcile job endpoints are not mounted.
func NewServer(cfg Config, repo storage.Repository, reviewer handlers.Reviewer, reconcileService *service.ReconcileService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:           cfg,
		router:           chi.NewRouter(),
		logger:           logger,
		repo:             repo,
		reviewer:         reviewer,
		reconcileService: reconcileService,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler(s.repo)
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		recordsHandler := handlers.NewRecordsHandler(s.repo)
		r.Get("/records", recordsHandler.List)
		r.Get("/records/{id}", recordsHandler.Get)

		runsHandler := handlers.NewRunsHandler(s.repo)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)

		matchesHandler := handlers.NewMatchesHandler(s.repo, s.reviewer)
		r.Get("/matches", matchesHandler.List)
		r.Get("/matches/{id}", matchesHandler.Get)
		r.Delete("/matches/{id}", matchesHandler.Unlink)

		suggestionsHandler := handlers.NewSuggestionsHandler(s.repo, s.reviewer)
		r.Get("/suggestions", suggestionsHandler.List)
		r.Post("/suggestions/{id}/accept", suggestionsHandler.Accept)
		r.Post("/suggestions/{id}/dismiss", suggestionsHandler.Dismiss)

		statsHandler := handlers.NewStatsHandler(s.repo)
		r.Get("/stats", statsHandler.Get)

		if s.reconcileService != nil {
			reconcileHandler := handlers.NewReconcileHandler(s.reconcileService)
			r.Post("/reconcile", reconcileHandler.StartRun)
			r.Get("/reconcile", reconcileHandler.ListAll)
			r.Get("/reconcile/active", reconcileHandler.ListActive)
			r.Get("/reconcile/{jobId}", reconcileHandler.GetStatus)
			r.Delete("/reconcile/{jobId}", reconcileHandler.Cancel)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
