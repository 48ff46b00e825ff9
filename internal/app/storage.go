package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redisstore"
)

// runtimeDependencies: хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	products    domain.ProductRepository
	carts       domain.CartRepository
	orders      domain.OrderRepository
	users       domain.UserRepository
	timeline    domain.TimelineRepository
	outbox      domain.OutboxRepository
	idempotency domain.IdempotencyRepository
	placer      domain.CheckoutRepository

	checkers map[string]health.Checker
	closers  []func() error
}

// Close освобождает подключения в обратном порядке открытия.
func (d *runtimeDependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{checkers: make(map[string]health.Checker)}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		initMemoryStorage(deps)
	case StorageDriverPostgres:
		if err := initPostgresStorage(ctx, cfg, deps, logger); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.EffectiveCartDriver() == CartDriverRedis {
		if err := initRedisCarts(ctx, cfg, deps, logger); err != nil {
			_ = deps.Close()
			return nil, err
		}
	}

	logger.WithFields(log.Fields{
		"storage_driver": cfg.StorageDriver,
		"cart_driver":    cfg.EffectiveCartDriver(),
	}).Info("storage initialized")

	return deps, nil
}

func initMemoryStorage(deps *runtimeDependencies) {
	carts := memory.NewCartRepository()
	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()

	deps.products = memory.NewProductRepository()
	deps.carts = carts
	deps.orders = orders
	deps.users = memory.NewUserRepository()
	deps.timeline = memory.NewTimelineRepository()
	deps.outbox = outbox
	deps.idempotency = memory.NewIdempotencyRepository()
	deps.placer = memory.NewCheckoutRepository(carts, orders, outbox)
}

func initPostgresStorage(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("postgres dsn is required for postgres storage")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("apply postgres migrations: %w", err)
		}
		logger.Info("postgres migrations applied")
	}

	deps.products = postgres.NewProductRepository(store)
	deps.carts = postgres.NewCartRepository(store)
	deps.orders = postgres.NewOrderRepository(store)
	deps.users = postgres.NewUserRepository(store)
	deps.timeline = postgres.NewTimelineRepository(store)
	deps.outbox = postgres.NewOutboxRepository(store)
	deps.idempotency = postgres.NewIdempotencyRepository(store)
	deps.placer = postgres.NewCheckoutRepository(store)
	deps.checkers["postgres"] = health.NewPingChecker("postgres", store.Ping)
	deps.closers = append(deps.closers, store.Close)
	return nil
}

// initRedisCarts переносит корзины в Redis. Оформление в этом случае идёт
// компенсирующей последовательностью вместо транзакции.
func initRedisCarts(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}

	var opts []redisstore.Option
	if cfg.CartTTL > 0 {
		opts = append(opts, redisstore.WithTTL(cfg.CartTTL))
	}
	carts := redisstore.NewCartRepository(client, opts...)

	deps.carts = carts
	deps.placer = checkout.NewCompensatingPlacer(carts, deps.orders, deps.outbox, logger.WithField("component", "checkout-placer"))
	deps.checkers["redis"] = health.NewPingChecker("redis", carts.Ping)
	deps.closers = append(deps.closers, client.Close)
	return nil
}
