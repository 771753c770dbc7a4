// Package app wires configuration into the stores, backends and services
// shared by the Vaultbox binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/config"
	"github.com/prn-tf/vaultbox/internal/lock"
	"github.com/prn-tf/vaultbox/internal/metrics"
	"github.com/prn-tf/vaultbox/internal/repository"
	"github.com/prn-tf/vaultbox/internal/repository/postgres"
	"github.com/prn-tf/vaultbox/internal/repository/sqlite"
	"github.com/prn-tf/vaultbox/internal/service"
	"github.com/prn-tf/vaultbox/internal/session"
	"github.com/prn-tf/vaultbox/internal/storage"
	"github.com/prn-tf/vaultbox/internal/storage/filesystem"
	"github.com/prn-tf/vaultbox/internal/storage/s3store"
)

// App holds every long-lived dependency of a Vaultbox process.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	DB       *repository.Database
	Redis    redis.UniversalClient
	Sessions session.Store
	Locker   lock.Locker
	Backend  storage.Backend

	SessionService *service.SessionService
	UserService    *service.UserService
	FileService    *service.FileService
	Reconciler     *service.Reconciler

	closers []func() error
}

// New builds an App from configuration. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := OpenDatabase(ctx, cfg.Database, a.Logger)
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if cfg.Redis.Enabled {
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = client
		a.closers = append(a.closers, client.Close)

		a.Sessions = session.NewRedisStore(client)
		a.Locker = lock.NewRedisLocker(client)
		a.Logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using redis for sessions and locks")
	} else {
		store := session.NewMemoryStore()
		locker := lock.NewMemoryLocker()
		a.Sessions = store
		a.Locker = locker
		a.closers = append(a.closers,
			func() error { store.Stop(); return nil },
			func() error { locker.Stop(); return nil },
		)
		a.Logger.Info().Msg("using in-memory sessions and locks")
	}

	backend, err := NewBackend(ctx, cfg.Storage, a.Logger)
	if err != nil {
		return err
	}
	a.Backend = backend

	a.SessionService = service.NewSessionService(db.Repos.User, a.Sessions, cfg.Session.TTL, a.Metrics, a.Logger)
	a.FileService = service.NewFileService(db.Repos.Object, backend, a.Metrics, a.Logger, service.FileServiceConfig{
		MaxFileSize: cfg.Upload.MaxFileSize,
	})
	a.UserService = service.NewUserService(db.Repos.User, a.FileService, a.Logger)
	a.Reconciler = service.NewReconciler(db.Repos.Object, a.FileService, a.Locker, a.Metrics, a.Logger, service.ReconcileConfig{
		Interval:  cfg.Reconcile.Interval,
		BatchSize: cfg.Reconcile.BatchSize,
		DryRun:    cfg.Reconcile.DryRun,
	})

	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenDatabase opens the configured database driver.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Database, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(ctx, cfg, logger)
	case "postgres":
		return postgres.Open(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnsupportedDriver, cfg.Driver)
	}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// NewBackend creates the configured blob storage backend.
func NewBackend(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case "", "filesystem":
		return filesystem.NewBackend(cfg.DataDir, cfg.TempDir, logger)
	case "s3":
		client, err := s3store.NewClient(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return s3store.NewBackend(client, cfg.S3, cfg.TempDir, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
