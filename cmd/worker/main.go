package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/bootstrap"
	"github.com/kirillkom/collateral-appraisal/internal/config"
	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/usecase"
	"github.com/kirillkom/collateral-appraisal/internal/observability/logging"
	"github.com/kirillkom/collateral-appraisal/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("appraisal-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("appraisal-worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:          logger,
		BreakerObserver: workerMetrics.ObserveBreakerState,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Events == nil {
		logger.Error("bootstrap_failed", "error", "NATS_URL is required for the worker")
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	ingest := usecase.NewAuditIngestUseCase(app.AuditSink, workerMetrics, nil)
	logger.Info("worker_subscribed", "subject_prefix", cfg.NATSSubjectPrefix, "metrics_port", cfg.WorkerMetricsPort)
	err = app.Events.SubscribeReportEvents(ctx, func(handlerCtx context.Context, event domain.ReportEvent) error {
		appendCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		return ingest.Handle(appendCtx, event)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
