package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Josue1991/Business-Report/internal/config"
	"github.com/Josue1991/Business-Report/internal/middleware"
	"github.com/Josue1991/Business-Report/internal/notify"
	"github.com/Josue1991/Business-Report/internal/service"
)

// NewRouter assembles the HTTP surface: the report API, queue introspection,
// the websocket event feed, health and metrics endpoints.
func NewRouter(
	cfg *config.Config,
	svc *service.ReportService,
	hub *notify.Hub,
	metricsHandler http.Handler,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Compress(5))

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
		r.Use(limiter.Handler)
	}

	reports := NewReportsHandler(svc, logger)
	health := NewHealthHandler()

	r.Route("/api", func(r chi.Router) {
		r.Mount("/reports", reports.Routes())
		r.Get("/queue/stats", reports.QueueStats)
		r.Get("/queue/dead", reports.DeadJobs)
		r.Get("/version", health.Version)
	})

	r.Get("/healthz", health.HealthCheck)

	if hub != nil {
		r.Get("/ws", hub.ServeHTTP)
	}
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	return r
}
