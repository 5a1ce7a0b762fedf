// Package web provides the HTTP server and handlers for the table cleaner UI
// and JSON API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/cleaner/internal/config"
	"github.com/JonMunkholm/cleaner/internal/core"
	"github.com/JonMunkholm/cleaner/internal/telemetry"
	"github.com/JonMunkholm/cleaner/internal/web/middleware"
)

// rateLimitCleanup is how often idle rate limit buckets are dropped.
const rateLimitCleanup = time.Minute

// Server is the HTTP server for the cleaning service.
type Server struct {
	cfg       *config.Config
	service   *core.Service
	telemetry *telemetry.Telemetry
	validate  *validator.Validate
	limiter   *middleware.RateLimiter
	router    *chi.Mux
	server    *http.Server
}

// NewServer creates a new Server instance. tel may be nil.
func NewServer(cfg *config.Config, service *core.Service, tel *telemetry.Telemetry) *Server {
	s := &Server{
		cfg:       cfg,
		service:   service,
		telemetry: tel,
		validate:  newValidator(),
		router:    chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger(s.metrics()))
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.limiter != nil {
		s.router.Use(s.limiter.Handler(s.handleRateLimited))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errNotFound, http.StatusNotFound)
	})

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Post("/inspect", s.handleInspectForm)
	s.router.Post("/clean", s.handleCleanForm)

	// Probes and metrics
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.telemetry.MetricsHandler())

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/inspect", s.handleInspect)
		r.Post("/clean", s.handleCleanAPI)
		r.Post("/clean/file", s.handleCleanFile)
		r.Get("/download/{id}", s.handleDownload)
		r.Get("/capabilities", s.handleCapabilities)
		r.Get("/history", s.handleHistory)
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown. ctx only bounds background housekeeping; in-flight requests
// are drained by Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.StartCleanup(ctx, rateLimitCleanup)
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
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

func (s *Server) metrics() *telemetry.Metrics {
	if s.telemetry == nil {
		return nil
	}
	return s.telemetry.Metrics
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Pages carry their styles inline and load nothing else.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
			}

			next.ServeHTTP(w, r)
		})
	}
}
