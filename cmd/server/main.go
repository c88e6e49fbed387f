package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/streamtosite/internal"
	"github.com/DukeRupert/streamtosite/internal/billing"
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/handler"
	"github.com/DukeRupert/streamtosite/internal/jobs"
	"github.com/DukeRupert/streamtosite/internal/metrics"
	"github.com/DukeRupert/streamtosite/internal/middleware"
	"github.com/DukeRupert/streamtosite/internal/service"
	"github.com/DukeRupert/streamtosite/internal/usage"
	"github.com/DukeRupert/streamtosite/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Storage and application state
	backend, closeStorage, err := internal.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	defer closeStorage()

	st, err := internal.OpenStore(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	logger.Info("state loaded", "plan", st.Plan(ctx), "sites", st.SiteCount())

	// External collaborators
	channels, err := internal.NewChannelProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("channel provider initialization failed: %w", err)
	}
	copilot, err := internal.NewCopilot(cfg, logger)
	if err != nil {
		return fmt.Errorf("AI provider initialization failed: %w", err)
	}

	notifier, err := internal.NewNotifier(cfg, logger)
	if err != nil {
		return fmt.Errorf("email initialization failed: %w", err)
	}
	if notifier == nil {
		logger.Warn("SMTP is not configured, plan change emails are disabled")
	}

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			CreatorProMonthlyPriceID: cfg.StripeCreatorProMonthlyPriceID,
			CreatorProYearlyPriceID:  cfg.StripeCreatorProYearlyPriceID,
		})
		logger.Info("stripe billing enabled")
	} else {
		logger.Warn("stripe is not configured, plan changes apply immediately")
	}

	// Initialize services
	tracker := usage.NewTracker(st, time.Now, logger.With("component", "usage"))
	quotaService := service.NewQuotaService(st, tracker, logger)
	siteService := service.NewSiteService(st, quotaService, channels, backend, service.NewImagingProcessor(), logger)
	postService := service.NewPostService(st, quotaService, copilot, logger)
	planService := service.NewPlanService(st, billingService, notifier, logger)
	entitlements := gate.New(st, tracker, logger.With("component", "gate"))

	// Background work
	var queue worker.Enqueuer
	var w *worker.Worker
	if cfg.WorkerEnabled {
		wcfg := worker.DefaultConfig()
		wcfg.Concurrency = cfg.WorkerConcurrency
		wcfg.QueueSize = cfg.WorkerQueueSize
		wcfg.MaxAttempts = cfg.WorkerMaxAttempts
		wcfg.JobTimeout = cfg.WorkerJobTimeout
		w, err = worker.New(wcfg, logger.With("component", "worker"))
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewSyncSourcesHandler(siteService, logger))
		w.Start(ctx)
		queue = w

		scheduler := jobs.NewScheduler(st, w, cfg.SyncInterval, logger.With("component", "scheduler"))
		go scheduler.Run(ctx)
	}

	// Initialize middleware
	isSecure := !cfg.IsDevelopment()
	limiter := middleware.NewRateLimitMiddleware(
		middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow), logger)
	go limiter.RunCleanup(ctx.Done())

	var imageOrigins []string
	if u, err := url.Parse(cfg.R2PublicURL); err == nil && u.Host != "" {
		imageOrigins = append(imageOrigins, u.Scheme+"://"+u.Host)
	}
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure, imageOrigins...)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	if !metricsAuth.Enabled() {
		logger.Warn("metrics endpoint is not protected, set METRICS_USERNAME and METRICS_PASSWORD")
	}

	// Initialize handlers
	validate := handler.NewValidator()
	planHandler := handler.NewPlanHandler(entitlements, planService, st, logger)
	siteHandler := handler.NewSiteHandler(siteService, entitlements, queue, validate, logger)
	postHandler := handler.NewPostHandler(postService, entitlements, validate, logger)
	billingHandler := handler.NewBillingHandler(planService, cfg.BaseURL, validate, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, planService, logger)
	pageHandler := handler.NewPageHandler(entitlements, planService, st, siteService, cfg.BillingEnabled(), isSecure, cfg.BaseURL, cfg.SiteDomain, logger)
	fileHandler := handler.NewFileHandler(backend, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	fileHandler.RegisterRoutes(mux)
	planHandler.RegisterRoutes(mux)
	siteHandler.RegisterRoutes(mux, limiter.Limit)
	postHandler.RegisterRoutes(mux)
	billingHandler.RegisterRoutes(mux, limiter.Limit)
	webhookHandler.RegisterRoutes(mux)
	pageHandler.RegisterRoutes(mux, limiter.Limit)

	chain := middleware.Stack(securityMw.Handler, loggingMw.Handler, metrics.Middleware)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if w != nil {
		w.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
