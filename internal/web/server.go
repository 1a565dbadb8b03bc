// Package web provides the HTTP API for validation runs.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/metrics"
	"github.com/JonMunkholm/catalogimport/internal/web/middleware"
)

// Server is the HTTP server for validation runs.
type Server struct {
	runs    *core.RunManager
	types   *catalog.TypeCache
	metrics *metrics.Metrics
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance. m may be nil, which disables
// request metrics and the metrics endpoint.
func NewServer(runs *core.RunManager, types *catalog.TypeCache, m *metrics.Metrics, cfg *config.Config) *Server {
	s := &Server{
		runs:    runs,
		types:   types,
		metrics: m,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	if proxies := middleware.ParseTrustedProxies(s.cfg.Server.TrustedProxies); len(proxies) > 0 {
		s.router.Use(middleware.TrustedRealIP(proxies))
	} else {
		s.router.Use(chimw.RealIP)
	}
	s.router.Use(middleware.Logger)
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(chimw.Recoverer)

	timeout := s.cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s.router.Use(chimw.Timeout(timeout))

	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// Runs
		r.Get("/runs", s.handleListRuns)
		r.Post("/runs", s.handleStartRun)
		r.Get("/runs/{runID}", s.handleRunSummary)
		r.Delete("/runs/{runID}", s.handleFinishRun)

		// Row validation
		r.Post("/runs/{runID}/rows", s.handleValidateRows)
		r.Post("/runs/{runID}/feed", s.handleValidateFeed)

		// Catalog metadata
		r.Get("/product-types", s.handleListProductTypes)
		r.Delete("/product-types", s.handleClearProductTypes)
		r.Get("/product-types/{productType}/attributes", s.handleProductTypeAttributes)
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

type healthResponse struct {
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
	Available  int    `json:"available_slots"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.runs.LimiterStatus()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		ActiveRuns: s.runs.ActiveRuns(),
		Available:  status.Available,
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
