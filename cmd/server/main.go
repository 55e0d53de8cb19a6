package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/bwg/internal"
	"github.com/DukeRupert/bwg/internal/detection"
	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/email"
	"github.com/DukeRupert/bwg/internal/handler"
	"github.com/DukeRupert/bwg/internal/jobs"
	"github.com/DukeRupert/bwg/internal/lock"
	"github.com/DukeRupert/bwg/internal/metrics"
	"github.com/DukeRupert/bwg/internal/middleware"
	"github.com/DukeRupert/bwg/internal/notify"
	"github.com/DukeRupert/bwg/internal/repository"
	"github.com/DukeRupert/bwg/internal/scheduler"
	"github.com/DukeRupert/bwg/internal/service"
	"github.com/DukeRupert/bwg/internal/store/memory"
	"github.com/DukeRupert/bwg/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Rebates are money; clients get JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ==========================================================================
	// Detection workflow
	// ==========================================================================

	var trigger detection.Trigger
	if cfg.DetectionEnabled() {
		client, err := detection.NewN8NClient(detection.N8NConfig{
			WebhookURL: cfg.N8NWebhookURL,
			Secret:     cfg.N8NWebhookSecret,
			Config: detection.Config{
				MaxRetries:     cfg.DetectionMaxRetries,
				RetryBaseDelay: cfg.DetectionRetryBaseDelay,
				RequestTimeout: cfg.DetectionTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("detection client initialization failed: %w", err)
		}
		trigger = client
		logger.Info("Detection workflow enabled", "url", cfg.N8NWebhookURL)
	} else {
		logger.Warn("N8N_WEBHOOK_URL not set, detection workflow disabled")
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	reportService := service.NewReportService(store, service.ReportServiceConfig{
		ExpiryDays:       cfg.ReportExpiryDays,
		DetectionEnabled: trigger != nil,
	}, logger, time.Now)
	reviewService := service.NewReviewService(store, logger, time.Now)
	leaderboardService := service.NewLeaderboardService(store, logger)
	reconciler := service.NewReconciler(store, trigger, cfg.DetectionApprovalMinimum, logger, time.Now)

	var mailer email.EmailService
	if cfg.SMTPEnabled {
		smtpService, err := email.NewSMTPEmailService(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			Timeout:  cfg.SMTPTimeout,
		}, cfg.BaseURL, logger)
		if err != nil {
			return fmt.Errorf("email service initialization failed: %w", err)
		}
		mailer = smtpService
		logger.Info("E-mail notifications enabled", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
	}

	dispatcher := notify.NewDispatcher(store, mailer, notify.Config{
		ReminderAfter: cfg.ReminderAfter,
	}, logger, time.Now)
	inbox := notify.NewInbox(store)

	// ==========================================================================
	// Background worker
	// ==========================================================================

	var w *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		w, err = worker.New(store, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewNotifyNewReportHandler(dispatcher, logger))
		w.Register(jobs.NewTriggerDetectionHandler(reconciler, logger))
		w.Start(ctx)
	} else {
		logger.Warn("Worker disabled, queued notifications and detection triggers will not run")
	}

	// ==========================================================================
	// Expiry scheduler
	// ==========================================================================

	var locker lock.Locker
	if cfg.RedisURL != "" {
		client, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client)
		logger.Info("Distributed sweep lock enabled")
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.Threshold = cfg.AutoApprovalThreshold
	schedCfg.Interval = cfg.ExpiryCheckInterval
	schedCfg.NotifyInterval = cfg.NotificationInterval
	schedCfg.Concurrency = cfg.SweepConcurrency
	schedCfg.ItemTimeout = cfg.SweepItemTimeout

	sched, err := scheduler.New(store, dispatcher, locker, schedCfg, logger)
	if err != nil {
		return fmt.Errorf("scheduler initialization failed: %w", err)
	}
	sched.Start(ctx)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := cfg.Env != "development"
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	webhookAuth := middleware.NewWebhookAuthMiddleware(cfg.N8NWebhookSecret, logger)
	adminAuth := middleware.NewBasicAuthMiddleware("BWG Admin", cfg.MetricsUsername, cfg.MetricsPassword)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer limiter.Stop()
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)

	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("METRICS_USERNAME/METRICS_PASSWORD not set, /metrics and admin endpoints are unprotected")
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("GET /metrics", adminAuth.Handler(promhttp.Handler()))

	handler.NewReportHandler(reportService, reviewService, leaderboardService, logger).RegisterRoutes(mux)
	handler.NewWebhookHandler(reconciler, logger).RegisterRoutes(mux, webhookAuth.Handler)
	handler.NewAdminHandler(sched, dispatcher, logger).RegisterRoutes(mux, adminAuth.Handler)
	handler.NewNotificationHandler(inbox, logger).RegisterRoutes(mux)

	var root http.Handler = mux
	root = rateLimitMw.Handler(root)
	root = metrics.Middleware(root)
	root = loggingMw.Handler(root)
	root = securityMw.Handler(root)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	sched.Stop()
	if w != nil {
		w.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// openStore returns the configured store and a function that releases it.
func openStore(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (domain.Store, func(), error) {
	if cfg.StoreDriver == internal.StoreDriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	return repository.NewStore(db), func() { db.Close() }, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
