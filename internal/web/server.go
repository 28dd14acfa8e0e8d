// Package web serves the reconciliation JSON API.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/rxstock/internal/config"
	"github.com/JonMunkholm/rxstock/internal/core"
	"github.com/JonMunkholm/rxstock/internal/web/middleware"
)

// Options configures a Server. Only Config is required.
type Options struct {
	Config *config.Config

	// Audit serves GET /api/audit; the route answers 404 when nil.
	Audit core.AuditReader

	// Gatherer backs /metrics (default: prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer

	// Health is probed by /healthz, typically a database ping.
	Health func(context.Context) error
}

// Server is the HTTP front of a core.Service.
type Server struct {
	service    *core.Service
	audit      core.AuditReader
	health     func(context.Context) error
	cfg        *config.Config
	validate   *validator.Validate
	limiter    *middleware.RateLimiter
	retryAfter time.Duration
	router     *chi.Mux
	server     *http.Server
}

func NewServer(service *core.Service, opts Options) *Server {
	cfg := opts.Config
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		service:    service,
		audit:      opts.Audit,
		health:     opts.Health,
		cfg:        cfg,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		retryAfter: max(cfg.Import.CommitWaitTime, time.Second),
		router:     chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst)
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.SecurityHeaders)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Use(middleware.APIKeyAuth(cfg.Security))
		r.Use(middleware.RequestIdentity)

		// Long-running routes: the progress stream stays open for the whole
		// commit and uploads are matched inline.
		r.Get("/imports/{sessionID}/commit/progress", s.handleCommitProgress)
		r.With(timeout(cfg.Import.CommitTimeout)).Post("/imports", s.handleCreateImport)

		r.Group(func(r chi.Router) {
			r.Use(timeout(cfg.Server.RequestTimeout))
			s.routes(r)
		})
	})
	return s
}

func (s *Server) routes(r chi.Router) {
	r.Get("/modes", s.handleListModes)
	r.Get("/categories", s.handleListCategories)
	r.Get("/audit", s.handleListAudit)

	r.Get("/imports/{sessionID}", s.handleGetImport)
	r.Delete("/imports/{sessionID}", s.handleDiscardImport)

	r.Post("/imports/{sessionID}/records", s.handleAddRecord)
	r.Put("/imports/{sessionID}/records/{recordID}", s.handleEditRecord)
	r.Delete("/imports/{sessionID}/records/{recordID}", s.handleRemoveRecord)
	r.Post("/imports/{sessionID}/records/{recordID}/resolve", s.handleResolve)
	r.Post("/imports/{sessionID}/records/{recordID}/undo", s.handleUndo)

	r.Get("/imports/{sessionID}/commit-plan", s.handleCommitPlan)
	r.Post("/imports/{sessionID}/commit", s.handleStartCommit)
	r.Get("/imports/{sessionID}/commit/result", s.handleCommitResult)
	r.Post("/imports/{sessionID}/commit/cancel", s.handleCancelCommit)
}

// timeout is chi's Timeout, skipped when d is not positive.
func timeout(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return chimw.Timeout(d)
}

// Start listens on the configured address until Shutdown. The write timeout
// is left at zero so SSE streams are not cut.
func (s *Server) Start(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:              sc.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: sc.ReadTimeout,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	slog.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree to tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
