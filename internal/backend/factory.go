package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"apthere/internal/bucketlock"
	"apthere/internal/storage"
	"apthere/internal/storage/memory"
	"apthere/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store and the bucket locker. On error nothing is
// left open.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(config)
	case PostgresBackend:
		store, err = f.createPostgresStore(ctx, config)
	case MemoryBackend:
		store = memory.New()
		f.logger.Warn("Using in-memory store, cached deals are lost on restart")
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	locker, closeLocker, err := f.createLocker(ctx, config)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &BackendResult{
		Store:  store,
		Locker: locker,
		Cleanup: func() error {
			return errors.Join(closeLocker(), store.Close())
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (storage.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createPostgresStore(ctx context.Context, config Config) (storage.Store, error) {
	store, err := postgres.Open(ctx, postgres.Config{
		DatabaseURL: config.DatabaseURL,
		MaxConns:    config.DatabaseMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
	}
	f.logger.Info("Initialized PostgreSQL backend", "max_conns", config.DatabaseMaxConns)
	return store, nil
}

func (f *DefaultFactory) createLocker(ctx context.Context, config Config) (bucketlock.Locker, func() error, error) {
	noClose := func() error { return nil }

	switch config.Lock {
	case NoLock:
		f.logger.Warn("Bucket locking disabled, concurrent refreshes of one bucket may race")
		return bucketlock.Noop{}, noClose, nil
	case RedisLock:
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse Redis URL: %w", err)
		}
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to Redis: %w", err)
		}

		var lockOpts []bucketlock.RedisOption
		if config.LockTTL > 0 {
			lockOpts = append(lockOpts, bucketlock.WithTTL(config.LockTTL))
		}
		f.logger.Info("Using Redis bucket lock", "addr", opts.Addr, "ttl", config.LockTTL)
		return bucketlock.NewRedis(rdb, lockOpts...), rdb.Close, nil
	default:
		return bucketlock.NewLocal(), noClose, nil
	}
}
