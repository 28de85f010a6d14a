// Package bootstrap wires the companion's dependencies from config.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lca-companion/internal/backend"
	"lca-companion/internal/jobs"
	"lca-companion/internal/queue"
	"lca-companion/internal/router"
	"lca-companion/internal/services/health"
	"lca-companion/internal/settings"
	"lca-companion/internal/shared/config"
	"lca-companion/internal/shared/server"
	"lca-companion/internal/shared/storage/db"
	"lca-companion/internal/shared/storage/kv"
	"lca-companion/internal/shared/storage/object"
	localstore "lca-companion/internal/shared/storage/object/local"
	s3store "lca-companion/internal/shared/storage/object/s3"
	"lca-companion/internal/shared/telemetry"
)

const (
	dbConnectAttempts = 5
	dbConnectDelay    = 2 * time.Second
)

// App holds shared dependencies.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Slot        kv.Slot
	Archive     object.ObjectStore
	Events      queue.Client
	Settings    *settings.Service
	Coordinator *jobs.Coordinator
	Messages    *router.Router
	Health      *health.Service
}

// Build prepares every dependency and the HTTP router. Call Start before serving.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	app := &App{Config: cfg, Health: health.NewService()}

	if err := app.buildSlot(ctx); err != nil {
		return nil, err
	}

	archive, err := BuildArchive(ctx, cfg)
	if err != nil {
		app.closeStorage()
		return nil, err
	}
	app.Archive = archive

	events, err := buildEvents(ctx, cfg)
	if err != nil {
		app.closeStorage()
		return nil, err
	}
	app.Events = events

	app.Settings = settings.NewService(app.Slot, settings.Settings{
		BaseURL: cfg.SeedBackendURL,
		APIKey:  cfg.SeedAPIKey,
	})
	app.Coordinator = jobs.NewCoordinator(jobs.Deps{
		Store:   jobs.NewStore(app.Slot),
		Backend: backend.Factory(cfg.BackendTimeout),
		Events:  app.Events,
		Archive: app.Archive,
	}, jobs.ConfigFromPoll(cfg.Poll))
	app.Settings.OnChange(app.Coordinator.Reload)

	app.Messages = router.New(app.Coordinator, app.Settings, backend.PingFunc(cfg.BackendTimeout))

	app.Health.Register("store", func(ctx context.Context) error {
		_, err := app.Slot.Load(ctx, jobs.StorageKey)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	})
	if app.DB != nil {
		app.Health.Register("database", app.DB.PingContext)
	}

	app.Router = server.NewRouter(cfg, server.RouterDeps{
		Health: app.Health,
		Handlers: []server.RouteRegistrar{
			router.NewHandler(app.Messages),
			jobs.NewHandler(app.Coordinator, app.Archive),
			settings.NewHandler(app.Settings),
		},
	})

	return app, nil
}

// Start loads saved settings and resumes polling for jobs left in flight.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.Settings.Load(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	resumed, err := a.Coordinator.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume jobs: %w", err)
	}
	telemetry.Info("app.started", map[string]any{
		"store":    a.Config.StoreType,
		"archive":  a.Config.ObjectStoreType,
		"resumed":  resumed,
		"env":      a.Config.Env,
		"events":   a.Config.SQSQueueURL != "",
		"mock":     a.Settings.Current().MockMode,
		"backend":  a.Settings.Current().BaseURL,
		"attempts": a.Config.Poll.MaxAttempts,
	})
	return nil
}

// Close stops poll loops and releases storage.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Coordinator != nil {
		if err := a.Coordinator.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown coordinator: %w", err))
		}
	}
	if err := a.closeStorage(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStorage() error {
	var errs []error
	if a.Slot != nil {
		if err := a.Slot.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) buildSlot(ctx context.Context) error {
	switch a.Config.StoreType {
	case "memory":
		a.Slot = kv.NewMemorySlot()
		return nil
	case "postgres":
		if strings.TrimSpace(a.Config.DatabaseURL) == "" {
			return errors.New("LCA_STORE=postgres requires DATABASE_URL")
		}
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err := db.ConnectWithRetry(ctx, a.Config.DatabaseURL, opts, dbConnectAttempts, dbConnectDelay)
		if err != nil {
			return err
		}
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
		a.DB = sqlDB
		a.Slot = kv.NewPGSlot(sqlDB)
		return nil
	default:
		slot, err := kv.OpenBadger(a.Config.BadgerDir)
		if err != nil {
			return err
		}
		a.Slot = slot
		return nil
	}
}

// BuildArchive returns the configured object store, or nil when OBJECT_STORE=none.
func BuildArchive(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "none":
		return nil, nil
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildEvents(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.SQSQueueURL == "" {
		return queue.Nop{}, nil
	}
	return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
}
