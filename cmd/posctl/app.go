package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/brewpos-backend/internal/employees"
	"github.com/angelmondragon/brewpos-backend/internal/inventory"
	"github.com/angelmondragon/brewpos-backend/internal/ledger"
	"github.com/angelmondragon/brewpos-backend/internal/menu"
	"github.com/angelmondragon/brewpos-backend/internal/orders"
	"github.com/angelmondragon/brewpos-backend/internal/promotions"
	"github.com/angelmondragon/brewpos-backend/internal/recipes"
	"github.com/angelmondragon/brewpos-backend/pkg/config"
	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
	"github.com/angelmondragon/brewpos-backend/pkg/metrics"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox"
	"github.com/angelmondragon/brewpos-backend/pkg/security"
)

// app holds the services the commands drive.
type app struct {
	ledger     ledger.Service
	inventory  inventory.Service
	menu       menu.Service
	recipes    recipes.Service
	orders     orders.Service
	staff      employees.Service
	promotions promotions.Service
}

type appParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Locker   ledger.Locker
	Registry prometheus.Registerer
}

func newApp(params appParams) (*app, error) {
	if params.Config == nil || params.DB == nil {
		return nil, fmt.Errorf("config and database required")
	}
	locker := params.Locker
	if locker == nil {
		locker = ledger.NewMutexLocker()
	}
	conn := params.DB.DB()

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), params.Config.Ledger.Key)
	if err != nil {
		return nil, err
	}
	writer, err := ledger.NewWriter(ledger.WriterParams{
		Tx:                 params.DB,
		Locker:             locker,
		MaxConflictRetries: params.Config.Ledger.MaxConflictRetries,
		Logger:             params.Logger,
		Metrics:            metrics.NewLedgerMetrics(params.Registry),
	})
	if err != nil {
		return nil, err
	}
	events := outbox.NewService(outbox.NewRepository(conn), params.Logger)

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repository:         inventory.NewRepository(conn),
		DB:                 params.DB,
		Writer:             writer,
		Ledger:             ledgerSvc,
		Outbox:             events,
		Logger:             params.Logger,
		AllowNegativeStock: params.Config.FeatureFlags.AllowNegativeStock,
	})
	if err != nil {
		return nil, err
	}
	menuSvc, err := menu.NewService(menu.NewRepository(conn), params.DB)
	if err != nil {
		return nil, err
	}
	recipeSvc, err := recipes.NewService(recipes.NewRepository(conn), params.DB)
	if err != nil {
		return nil, err
	}
	promotionSvc, err := promotions.NewService(promotions.NewRepository(conn), params.DB)
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn),
		Writer:     writer,
		Recipes:    recipeSvc,
		Inventory:  inventorySvc,
		Ledger:     ledgerSvc,
		Outbox:     events,
		Logger:     params.Logger,
		Metrics:    metrics.NewFulfillmentMetrics(params.Registry),
	})
	if err != nil {
		return nil, err
	}

	staffSvc, err := employees.NewService(employees.ServiceParams{
		Repository: employees.NewRepository(conn),
		DB:         params.DB,
		Hasher:     security.NewHasher(params.Config.Password),
		Logger:     params.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		ledger:     ledgerSvc,
		inventory:  inventorySvc,
		menu:       menuSvc,
		recipes:    recipeSvc,
		orders:     orderSvc,
		staff:      staffSvc,
		promotions: promotionSvc,
	}, nil
}

// lockerFor picks the ledger lock the config asks for. Redis locks let several
// posctl processes share one ledger.
func lockerFor(cfg config.LedgerConfig, store redisLockStore) (ledger.Locker, error) {
	if !cfg.UsesRedisLock() {
		return ledger.NewMutexLocker(), nil
	}
	if store == nil {
		return nil, fmt.Errorf("%s=%s needs redis settings", config.EnvLedgerLock, config.LedgerLockRedis)
	}
	return ledger.NewRedisLocker(store, store.LockKey("ledger:"+cfg.Key), cfg.LockTTL, cfg.LockPollInterval)
}

type redisLockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}
