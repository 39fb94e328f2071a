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

	httpadapter "github.com/kirillkom/collateral-appraisal/internal/adapters/http"
	"github.com/kirillkom/collateral-appraisal/internal/bootstrap"
	"github.com/kirillkom/collateral-appraisal/internal/config"
	"github.com/kirillkom/collateral-appraisal/internal/observability/logging"
	"github.com/kirillkom/collateral-appraisal/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("appraisal-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("appraisal-api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:          logger,
		ReportMetrics:   httpMetrics,
		BreakerObserver: httpMetrics.ObserveBreakerState,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Tokens == nil {
		logger.Error("bootstrap_failed", "error", "JWT_SECRET is required for the api")
		os.Exit(1)
	}

	router := httpadapter.NewRouter(httpadapter.RouterDeps{
		Reports:  app.Reports,
		Preview:  app.Preview,
		Register: app.Register,
		Users:    app.Directory,
		Tokens:   app.Tokens,
		Metrics:  httpMetrics,
	}, httpadapter.RouterConfig{
		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxInFlight:      cfg.APIMaxInFlight,
		BackpressureWait: cfg.APIBackpressureWait,
		MaxUploadBytes:   cfg.MaxUploadBytes,
	}).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "store", cfg.StoreBackend, "storage", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.APIShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
