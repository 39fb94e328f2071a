package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/collateral-appraisal/internal/config"
	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/ports"
	"github.com/kirillkom/collateral-appraisal/internal/core/usecase"
	"github.com/kirillkom/collateral-appraisal/internal/core/valuation"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/auth"
	rediscache "github.com/kirillkom/collateral-appraisal/internal/infrastructure/cache/redis"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/inspect/pdfmeta"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/queue/nats"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/repository/memory"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/resilience"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/storage/minio"
)

// Options carries process-specific collaborators. All fields are optional.
type Options struct {
	Logger          *slog.Logger
	ReportMetrics   usecase.ReportMetrics
	BreakerObserver resilience.StateObserver
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Reports   *usecase.ReportService
	Preview   *usecase.ValuationPreviewUseCase
	Register  *usecase.RegisterExportUseCase
	Directory *usecase.UserDirectoryUseCase

	Users       ports.UserRepository
	AuditSink   ports.AuditSink
	AuditReader ports.AuditReader
	// Events is nil when NATS is not configured; report events then go
	// straight to the audit sink.
	Events ports.EventSubscriber
	// Tokens is nil when JWT_SECRET is empty.
	Tokens *auth.TokenManager
	// Migrate is nil for the memory backend.
	Migrate func(ctx context.Context) error

	closers []func()
}

type reportStore interface {
	ports.ReportRepository
	ports.ReportSequence
}

type auditStore interface {
	ports.AuditSink
	ports.AuditReader
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	if err := app.wire(ctx, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) wire(ctx context.Context, opts Options) error {
	cfg, logger := app.Config, app.Logger

	executor := resilience.NewExecutor(cfg.Resilience).WithLogger(logger)
	if opts.BreakerObserver != nil {
		executor = executor.WithStateObserver(opts.BreakerObserver)
	}

	var (
		reports reportStore
		audit   auditStore
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		reports = memory.NewReportRepository()
		app.Users = memory.NewUserRepository()
		audit = memory.NewAuditLog()
		logger.Warn("memory_store_enabled", "detail", "data is lost on restart")
	default:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		app.Migrate = func(ctx context.Context) error { return postgres.Migrate(ctx, db, logger) }
		if cfg.AutoMigrate {
			if err := app.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		reports, app.Users, audit = postgresStores(db, executor)
	}
	app.AuditSink = audit
	app.AuditReader = audit

	var reportRepo ports.ReportRepository = reports
	if cfg.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("init redis cache: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		reportRepo = rediscache.NewReportRepository(reports, client, cfg.RedisCacheTTL, logger)
	}

	files, err := newFileStorage(ctx, cfg, executor, logger)
	if err != nil {
		return fmt.Errorf("init attachment storage: %w", err)
	}

	var events ports.EventPublisher = auditRelay{sink: audit}
	if cfg.NATSURL != "" {
		retryOnFailedConnect := true
		bus, err := nats.New(cfg.NATSURL, nats.Options{
			SubjectPrefix:        cfg.NATSSubjectPrefix,
			RetryOnFailedConnect: &retryOnFailedConnect,
			ResilienceExecutor:   executor,
			Logger:               logger,
		})
		if err != nil {
			return fmt.Errorf("init event bus: %w", err)
		}
		app.closers = append(app.closers, bus.Close)
		events = bus
		app.Events = bus
	}

	if cfg.JWTSecret != "" {
		tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
		if err != nil {
			return fmt.Errorf("init token manager: %w", err)
		}
		app.Tokens = tokens
	}

	calc := valuation.NewCalculator(nil, nil, nil)
	app.Reports = usecase.NewReportService(usecase.ReportServiceDeps{
		Reports:    reportRepo,
		Sequence:   reports,
		Users:      app.Users,
		Files:      files,
		Events:     events,
		Inspector:  pdfmeta.New(),
		Calculator: calc,
		Metrics:    opts.ReportMetrics,
		Logger:     logger,
	}, usecase.ReportServiceConfig{
		NumberPrefix: cfg.ReportNumberPrefix,
		Defaults: valuation.Defaults{
			SafetyMarginPercent:      cfg.DefaultSafetyMarginPercent,
			LiquidationFactorPercent: cfg.DefaultLiquidationFactorPercent,
		},
	})
	app.Preview = usecase.NewValuationPreviewUseCase(calc)
	app.Register = usecase.NewRegisterExportUseCase(app.Reports, xlsx.NewRegisterWriter())
	app.Directory = usecase.NewUserDirectoryUseCase(app.Users)
	return nil
}

func postgresStores(db *sql.DB, executor *resilience.Executor) (reportStore, ports.UserRepository, auditStore) {
	return postgres.NewReportRepository(db, executor),
		postgres.NewUserRepository(db, executor),
		postgres.NewAuditRepository(db, executor)
}

func newFileStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (ports.FileStorage, error) {
	if cfg.StorageBackend == config.StorageBackendMinIO {
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, executor, logger)
	}
	return localfs.New(cfg.StoragePath)
}

// auditRelay appends report events to the audit sink in-process. It is used
// when no event bus is configured.
type auditRelay struct {
	sink ports.AuditSink
}

func (r auditRelay) PublishReportEvent(ctx context.Context, event domain.ReportEvent) error {
	return r.sink.Append(ctx, event.AuditRecord())
}

func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}
