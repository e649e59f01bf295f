// Package web provides the HTTP API for counting sessions.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/stockcount/internal/config"
	"github.com/JonMunkholm/stockcount/internal/core"
	"github.com/JonMunkholm/stockcount/internal/metrics"
	mw "github.com/JonMunkholm/stockcount/internal/web/middleware"
)

// HealthCheck probes one dependency for /healthz.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators of a Server. Metrics and Checks are optional.
type Deps struct {
	Service *core.Service
	Metrics *metrics.Metrics
	Checks  map[string]HealthCheck
}

// Server is the HTTP server for the counting API.
type Server struct {
	service *core.Service
	metrics *metrics.Metrics
	checks  map[string]HealthCheck
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		service: deps.Service,
		metrics: deps.Metrics,
		checks:  deps.Checks,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	if s.metrics != nil {
		s.router.Use(mw.Metrics(s.metrics))
	}
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security))
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(requestContext)

		r.Get("/journal", s.handleJournal)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleRestart)

			setup := r.With(middleware.RequestSize(s.cfg.Upload.MaxFileSize * 2))
			if s.cfg.Rate.Enabled {
				setup = setup.With(mw.NewRateLimiter(s.cfg.Rate.UploadLimit).Middleware)
			}
			setup.Post("/setup", s.handleSetup)

			r.Post("/scan", s.handleScan)
			r.Post("/quantity", s.handleQuantity)
			r.Post("/cancel", s.handleCancel)
			r.Put("/accumulation", s.handleAccumulation)

			r.Post("/review", s.handleReview)
			r.Post("/resume", s.handleResume)
			r.Post("/recount", s.handleRecount)
			r.Get("/recount/pending", s.handleRecountPending)
			r.Post("/finalize", s.handleFinalize)

			r.Get("/stats", s.handleStats)
			r.Get("/products", s.handleSearchProducts)
			r.Get("/report", s.handleReport)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
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

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}
