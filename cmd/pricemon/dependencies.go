package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	authsvc "github.com/FACorreiaa/da-price-monitor/internal/domain/auth/service"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/discovery"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/handler"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/markets"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/repository"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/search"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/service"
	"github.com/FACorreiaa/da-price-monitor/pkg/config"
	"github.com/FACorreiaa/da-price-monitor/pkg/cron"
	"github.com/FACorreiaa/da-price-monitor/pkg/db"
	"github.com/FACorreiaa/da-price-monitor/pkg/metrics"
	"github.com/FACorreiaa/da-price-monitor/pkg/notify"
	"github.com/FACorreiaa/da-price-monitor/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	ReportRepo repository.ReportRepository

	// Services
	Catalog      *markets.Catalog
	Extractor    *service.Extractor
	Client       *discovery.Client
	Locator      *discovery.Locator
	Archive      storage.Archive
	Index        *search.Index
	Metrics      *metrics.Metrics
	Notifier     notify.Notifier
	TokenManager authsvc.TokenManager
	PriceService *service.Service
	Scheduler    *cron.Scheduler

	// Handlers
	PriceHandler *handler.PriceHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// openDatabase connects without running migrations.
func openDatabase(cfg *config.Config, logger *slog.Logger) (*db.DB, error) {
	return db.New(db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, logger)
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := openDatabase(d.Config, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.ReportRepo = repository.NewPostgresReportRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// newExtractor builds the text extractor and table parser from config. It
// needs no database, the parse command uses it on its own.
func newExtractor(cfg *config.Config) (*service.Extractor, *markets.Catalog, error) {
	catalog, err := markets.Load(cfg.Parser.MarketCatalog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load market catalog: %w", err)
	}

	p := parser.New(parser.Config{
		KnownMarkets:   catalog.Names(),
		CategoryWindow: cfg.Parser.CategoryWindow,
		CategoryMaxLen: cfg.Parser.CategoryMaxLen,
	})
	return service.NewExtractor(parser.NewPDFParser(), p), catalog, nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	extractor, catalog, err := newExtractor(d.Config)
	if err != nil {
		return err
	}
	d.Extractor = extractor
	d.Catalog = catalog

	src := d.Config.Source
	d.Client = discovery.NewClient(
		discovery.WithTimeout(src.Timeout),
		discovery.WithRetries(src.Retries, time.Second),
		discovery.WithUserAgent(src.UserAgent),
		discovery.WithRateLimit(src.RequestsPerSec, src.RequestsPerSec),
		discovery.WithMaxBodyBytes(src.MaxBodyBytes),
		discovery.WithLogger(d.Logger),
	)
	d.Locator = discovery.NewLocator(d.Client,
		discovery.WithStrategy(src.Strategy),
		discovery.WithListingURL(src.ListingURL),
		discovery.WithURLTemplate(src.URLTemplate),
		discovery.WithMaxDaysBack(src.MaxDaysBack),
		discovery.WithLocatorLogger(d.Logger),
	)

	storageType := storage.StorageTypeLocal
	if d.Config.Storage.ArchivePath == "" {
		storageType = storage.StorageTypeNone
	}
	archive, err := storage.New(&storage.Config{
		Type:      storageType,
		LocalPath: d.Config.Storage.ArchivePath,
	})
	if err != nil {
		return fmt.Errorf("failed to init bulletin archive: %w", err)
	}
	d.Archive = archive

	index, err := search.NewIndex(d.Config.Storage.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to init search index: %w", err)
	}
	d.Index = index

	if d.Config.Observability.MetricsEnabled {
		d.Metrics = metrics.New()
	}

	d.Notifier = notify.NewEmailNotifier(
		d.Config.Notify.ResendAPIKey,
		d.Config.Notify.FromEmail,
		d.Config.Auth.AdminEmail,
		d.Logger,
	)

	d.TokenManager = authsvc.NewTokenManager([]byte(d.Config.Auth.JWTSecret), d.Config.Auth.TokenTTL)

	opts := []service.Option{
		service.WithIndex(d.Index),
		service.WithMetrics(d.Metrics),
		service.WithNotifier(d.Notifier),
	}
	if d.Archive != nil {
		opts = append(opts, service.WithArchive(d.Archive))
	}
	d.PriceService = service.NewService(d.ReportRepo, d.Locator, d.Client, d.Extractor, d.Logger, opts...)

	d.Scheduler = cron.NewScheduler(
		d.PriceService,
		d.Config.Scheduler.IngestSpec,
		d.Config.Scheduler.IngestTimeout,
		d.Logger,
	)

	d.Logger.Info("services initialized",
		slog.Int("known_markets", d.Extractor.Parser().KnownMarkets()),
		slog.String("catalog_version", d.Catalog.Version),
	)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.PriceHandler = handler.NewPriceHandler(d.PriceService, d.Catalog, d.TokenManager, handler.Config{
		AllowedOrigins:     d.Config.Server.AllowedOrigins,
		RateLimitPerSecond: d.Config.Server.RateLimitPerSecond,
		RateLimitBurst:     d.Config.Server.RateLimitBurst,
	}, d.Logger).
		WithSearch(d.Index).
		WithMetrics(d.Metrics).
		WithHealthCheck(d.DB).
		WithScheduler(d.Scheduler).
		WithDocuments(d.Archive)

	d.Logger.Info("handlers initialized")
	return nil
}

// WarmUp loads the latest stored report into the search index.
func (d *Dependencies) WarmUp(ctx context.Context) {
	if err := d.PriceService.WarmIndex(ctx); err != nil {
		d.Logger.Warn("failed to warm search index", slog.Any("error", err))
	}
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Index != nil {
		if err := d.Index.Close(); err != nil {
			d.Logger.Warn("failed to close search index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
