package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/service/cleanup"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

const storagePingTimeout = 2 * time.Second

// runtimeDependencies держит хранилище сессий вместе с проверкой и закрытием.
type runtimeDependencies struct {
	kv             domain.KVStoreFactory
	staleDeleter   cleanup.StaleDeleter
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		logger.Info("session storage: in-memory")
		return &runtimeDependencies{
			kv:             memory.NewKVStoreFactory(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error { return nil }),
			closeFn:        func() error { return nil },
		}, nil

	case StorageDriverRedis:
		factory, err := redis.Open(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis storage: %w", err)
		}
		logger.WithField("addr", cfg.RedisAddr).Info("session storage: redis")
		return &runtimeDependencies{
			kv:             factory,
			storageChecker: healthcheck.NewPingChecker("storage", storagePingTimeout, factory.Ping),
			closeFn:        factory.Close,
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, fmt.Errorf("postgres dsn is required for storage driver %q", driver)
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}
		store.WithLogger(logger.WithField("component", "postgres"))

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		factory := postgres.NewKVStoreFactory(store)
		logger.Info("session storage: postgres")
		return &runtimeDependencies{
			kv:             factory,
			staleDeleter:   factory,
			storageChecker: healthcheck.NewPingChecker("storage", storagePingTimeout, store.Ping),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
