// Package internal wires the tracker components into a runnable application.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"tracker/internal/cache"
	"tracker/internal/config"
	"tracker/internal/cruncher"
	"tracker/internal/database"
	"tracker/internal/http"
	"tracker/internal/jobs"
	"tracker/internal/metrics"
	"tracker/internal/views"
)

const shutdownTimeout = 10 * time.Second

// Application wraps cartridge.Application with the tracker components
type Application struct {
	*cartridge.Application
	Config    *config.Config
	DBManager *database.DBManager // nil when built over an existing connection
	DB        *gorm.DB
	Views     *views.Store
	Cache     cache.Store
	Cruncher  *cruncher.Cruncher
	Scheduler *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig opens and migrates the configured database and builds the application over it
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(cfg.GetDatabasePath()); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := dbManager.MigrateDatabase(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	app, err := NewAppWithDB(context.Background(), cfg, dbManager, logger)
	if err != nil {
		dbManager.Close()
		return nil, err
	}
	app.DBManager = dbManager
	return app, nil
}

// NewAppWithDB builds the application over the open, migrated connection of dbm
func NewAppWithDB(ctx context.Context, cfg *config.Config, dbm cartridge.DBManager, logger *slog.Logger) (*Application, error) {
	db := dbm.GetConnection()
	if db == nil {
		return nil, errors.New("database manager has no open connection")
	}

	store, err := NewCacheStore(ctx, cfg, db, logger)
	if err != nil {
		return nil, err
	}

	viewStore := views.NewStore(db, logger, cfg.TrackingEnabled)

	crunch := cruncher.New(viewStore.Query, store,
		cruncher.WithLocation(cfg.Location()),
		cruncher.WithTTL(cfg.CacheTTL()),
		cruncher.WithCaching(cfg.CacheEnabled),
		cruncher.WithConcurrency(cfg.CrunchConcurrency),
		cruncher.WithLogger(logger.With(slog.String("component", "cruncher"))),
		cruncher.WithMetrics(metrics.Prometheus{}),
	)

	interval := time.Duration(cfg.JobIntervalSeconds) * time.Second
	scheduler := jobs.NewScheduler(logger,
		jobs.Scheduled{Job: jobs.NewRetentionJob(viewStore, logger, cfg.ViewsRetentionDays), Interval: 24 * time.Hour},
		jobs.Scheduled{Job: jobs.NewCacheExpiryJob(store, logger), Interval: interval},
	)

	handlers := &http.Handlers{
		Views:    viewStore,
		Cruncher: crunch,
		Cache:    store,
		Logger:   logger,
		Location: cfg.Location(),
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbm,
		ServerConfig:      serverConfig(),
		RouteMountFunc:    MountRoutes(cfg, handlers),
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		if closer, ok := store.(io.Closer); ok {
			closer.Close()
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		Config:      cfg,
		DB:          db,
		Views:       viewStore,
		Cache:       store,
		Cruncher:    crunch,
		Scheduler:   scheduler,
	}, nil
}

// NewCacheStore returns the store of the configured cache driver. A disabled
// cache is the no-op store.
func NewCacheStore(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) (cache.Store, error) {
	if !cfg.CacheEnabled {
		return cache.None{}, nil
	}

	switch cfg.CacheDriver {
	case config.CacheDriverDatabase:
		return cache.NewDatabaseStore(db, logger), nil
	case config.CacheDriverMemory:
		return cache.NewMemoryStore(), nil
	case config.CacheDriverRedis:
		store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			KeyPattern: "tracker.between.*",
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		return store, nil
	case config.CacheDriverNone:
		return cache.None{}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver: %s", cfg.CacheDriver)
	}
}

// Run starts the background jobs and serves HTTP until ctx is cancelled, then
// shuts both down and releases the connections.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("Starting tracker", slog.String("env", a.Config.Environment))
		if err := a.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if closeErr := a.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// Close releases the cache and database connections.
func (a *Application) Close() error {
	var errs []error
	if closer, ok := a.Cache.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if a.DBManager != nil {
		errs = append(errs, a.DBManager.Close())
	}
	return errors.Join(errs...)
}
