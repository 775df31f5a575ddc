// Package app wires the application together: configuration, logging,
// metrics, stores, queues, the report service and the HTTP server, with
// graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Josue1991/Business-Report/internal/config"
	"github.com/Josue1991/Business-Report/internal/dispatch"
	"github.com/Josue1991/Business-Report/internal/encoder"
	"github.com/Josue1991/Business-Report/internal/infrastructure"
	"github.com/Josue1991/Business-Report/internal/notify"
	"github.com/Josue1991/Business-Report/internal/report"
	"github.com/Josue1991/Business-Report/internal/service"
	"github.com/Josue1991/Business-Report/internal/suggest"
	transporthttp "github.com/Josue1991/Business-Report/internal/transport/http"
)

// Application holds the wired components
type Application struct {
	Config     *config.Config
	Logger     *slog.Logger
	Server     *http.Server
	Hub        *notify.Hub
	Dispatcher *dispatch.Dispatcher
	Service    *service.ReportService
	OTel       *infrastructure.OTelProviders
}

// NewApplication builds the full dependency graph from configuration
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := os.MkdirAll(cfg.Reports.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	queueMetrics, err := dispatch.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue metrics: %w", err)
	}

	reportStore := report.NewMemoryStore()
	jobStore := dispatch.NewMemoryJobStore()
	dispatcher := dispatch.NewDispatcher(jobStore, queueMetrics, logger)
	dispatcher.SetStallTimeout(cfg.Queue.StallTimeout)

	encoders := encoder.NewRegistry(
		&encoder.CSVEncoder{},
		&encoder.ExcelEncoder{},
	)

	hub := notify.NewHub(logger)

	app := &Application{
		Config:     cfg,
		Logger:     logger,
		Hub:        hub,
		Dispatcher: dispatcher,
		OTel:       otelProviders,
	}

	app.Service = service.NewReportService(
		service.Config{
			ArtifactDir:        cfg.Reports.ArtifactDir,
			BaseURL:            cfg.Server.BaseURL,
			MaxRecords:         cfg.Reports.MaxRecords,
			AnalysisMinRecords: cfg.Reports.AnalysisMinRecords,
		},
		reportStore,
		dispatcher,
		encoders,
		buildSuggester(cfg, logger),
		hub,
		notify.NewLogMailer(logger),
		logger,
	)

	retry := dispatch.RetryConfig{
		MaxAttempts:  cfg.Queue.MaxAttempts,
		InitialDelay: cfg.Queue.InitialBackoff,
		MaxDelay:     cfg.Queue.MaxBackoff,
		Multiplier:   2.0,
	}
	if err := dispatcher.RegisterQueue(dispatch.QueueRender, dispatch.QueueConfig{
		Workers: cfg.Queue.RenderWorkers,
		Buffer:  cfg.Queue.RenderBuffer,
		Retry:   retry,
	}, app.Service.HandleRender); err != nil {
		return nil, fmt.Errorf("failed to register render queue: %w", err)
	}
	if err := dispatcher.RegisterQueue(dispatch.QueueAnalysis, dispatch.QueueConfig{
		Workers:   cfg.Queue.AnalysisWorkers,
		Buffer:    cfg.Queue.AnalysisBuffer,
		Retry:     retry,
		RateLimit: rate.Limit(cfg.Queue.AnalysisRPS),
		RateBurst: cfg.Queue.AnalysisBurst,
	}, app.Service.HandleAnalysis); err != nil {
		return nil, fmt.Errorf("failed to register analysis queue: %w", err)
	}

	router := transporthttp.NewRouter(cfg, app.Service, hub, otelProviders.PrometheusHTTP, logger)
	app.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return app, nil
}

// buildSuggester selects the KPI suggestion backend. Without an API key the
// service degrades to the static fallback list.
func buildSuggester(cfg *config.Config, logger *slog.Logger) suggest.Service {
	if cfg.Suggestions.APIKey == "" {
		logger.Info("no suggestion api key configured, using static suggestions")
		return suggest.StaticService{}
	}

	cache := suggest.NewMemoryCache(cfg.Suggestions.CacheCapacity, cfg.Suggestions.CacheTTL)
	client := openai.NewClient(cfg.Suggestions.APIKey)
	return suggest.NewOpenAIService(client, cfg.Suggestions.Model, cache, cfg.Suggestions.Timeout, logger)
}

// Run starts everything and blocks until an interrupt or a fatal error
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Hub.Start()
	a.Dispatcher.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.String("base_url", a.Config.Server.BaseURL))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.sweepLoop(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// sweepLoop periodically removes expired reports and stale queue bookkeeping
func (a *Application) sweepLoop(ctx context.Context) error {
	interval := a.Config.Reports.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.Service.SweepExpired(ctx); err != nil {
				a.Logger.ErrorContext(ctx, "retention sweep failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// shutdown drains the server, the queues and the metrics pipeline
func (a *Application) shutdown() error {
	a.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.Dispatcher.Stop(a.Config.Server.ShutdownTimeout); err != nil {
		a.Logger.Error("dispatcher shutdown error", slog.String("error", err.Error()))
	}

	a.Hub.Stop()

	if err := a.OTel.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("metrics shutdown error", slog.String("error", err.Error()))
	}

	a.Logger.Info("shutdown complete")
	return nil
}
