package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhatia/commitcanvas/internal/api/handlers"
	"github.com/nikhilbhatia/commitcanvas/internal/api/middleware"
	"github.com/nikhilbhatia/commitcanvas/internal/config"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/metrics"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Commit    *handlers.CommitHandler
	Scheduler *handlers.SchedulerHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(metrics.Middleware)
	r.Use(middleware.RateLimit(50, 100)) // 50 req/sec, burst of 100

	// Health and metrics
	r.Get("/health", h.Health.Healthz)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Commit operations
	r.Route("/api/v1/commits", func(r chi.Router) {
		r.Get("/", h.Commit.List)
		r.Post("/trigger", h.Commit.Trigger)
		r.Post("/backfill", h.Commit.Backfill)
		r.Post("/streak", h.Commit.Streak)
		r.Post("/pattern", h.Commit.Pattern)
	})

	// Scheduler
	r.Get("/api/v1/scheduler/status", h.Scheduler.Status)

	return r
}
