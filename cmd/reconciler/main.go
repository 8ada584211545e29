package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application/services"
	"github.com/DanielPopoola/membership-reconciler/internal/config"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/audit"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/metrics"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/notify"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/webhook"
	"github.com/DanielPopoola/membership-reconciler/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/membership-reconciler/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting reconciler",
		"port", cfg.Server.Port,
		"gateway_env", cfg.Gateway.Environment,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	coordinator := postgres.NewTransactionCoordinator(db)
	repos := coordinator.Repositories()
	auditSink := audit.NewSink(postgres.NewAuditLogRepository(db.Pool), logger)
	recorder := metrics.NewRecorder()

	baseClient, err := gateway.NewClient(cfg.Gateway, logger, gateway.WithObserver(recorder))
	if err != nil {
		logger.Error("failed to build gateway client", "error", err)
		os.Exit(1)
	}
	gatewayClient := gateway.NewRetryClient(baseClient, cfg.Gateway.RetryBaseDelay, cfg.Gateway.MaxAttempts, logger)

	activator := services.NewMembershipActivator(
		coordinator,
		notify.NewOutbox(logger),
		auditSink,
		recorder,
		cfg.Membership.DefaultDays,
		logger,
	)
	engine := services.NewReconciliationEngine(coordinator, activator, auditSink, recorder, logger)
	requestService := services.NewPaymentRequestService(repos.PaymentRequests, engine, auditSink, cfg.Membership.Currency, logger)
	webhookService := services.NewWebhookService(
		webhook.NewAuthenticator(cfg.Gateway.EventsSecret(), cfg.Gateway.Environment, auditSink, logger),
		engine,
		requestService,
		auditSink,
		logger,
	)
	syncService := services.NewSyncService(gatewayClient, engine, requestService, auditSink, logger)
	planService := services.NewPlanQueryService(repos.PaymentPlans, repos.Accounts)

	h := handlers.NewHandlers(
		webhookService,
		syncService,
		requestService,
		planService,
		webhook.NewIntegritySigner(cfg.Gateway.IntegritySecret()),
		db,
		logger,
	)

	requestTimeout := cfg.Server.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = cfg.Server.ReadTimeout
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      h.Router(requestTimeout, recorder.Handler()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	staleSweeper := worker.NewStaleSweeper(
		repos.PaymentRequests,
		syncService,
		engine,
		recorder,
		cfg.Sweeper.Interval,
		cfg.Sweeper.StaleThreshold,
		cfg.Sweeper.BatchSize,
		logger,
	)

	approvedSweeper := worker.NewApprovedSweeper(
		gatewayClient,
		syncService,
		recorder,
		cfg.Sweeper.ApprovedInterval,
		cfg.Sweeper.ApprovedLookback,
		cfg.Sweeper.ApprovedPageSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go staleSweeper.Start(workerCtx)
	go approvedSweeper.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
