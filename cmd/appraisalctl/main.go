package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/kirillkom/collateral-appraisal/internal/adapters/cli"
	"github.com/kirillkom/collateral-appraisal/internal/bootstrap"
	"github.com/kirillkom/collateral-appraisal/internal/config"
	"github.com/kirillkom/collateral-appraisal/internal/observability/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Schema changes only happen through the migrate command.
	cfg.AutoMigrate = false

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(os.Stderr, "appraisalctl", cfg.LogLevel)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer app.Close()

	deps := cli.Deps{
		Migrate: app.Migrate,
		Reports: app.Reports,
		Preview: app.Preview,
		Users:   app.Users,
		Audit:   app.AuditReader,
		NewID:   uuid.NewString,
	}
	if app.Tokens != nil {
		deps.Tokens = app.Tokens
	}
	return cli.NewRootCommand(deps).ExecuteContext(ctx)
}
