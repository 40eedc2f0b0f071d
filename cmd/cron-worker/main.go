package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/brewpos-backend/api"
	"github.com/angelmondragon/brewpos-backend/api/controllers"
	"github.com/angelmondragon/brewpos-backend/api/routes"
	"github.com/angelmondragon/brewpos-backend/internal/cron"
	"github.com/angelmondragon/brewpos-backend/internal/ledger"
	"github.com/angelmondragon/brewpos-backend/pkg/config"
	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
	"github.com/angelmondragon/brewpos-backend/pkg/metrics"
	"github.com/angelmondragon/brewpos-backend/pkg/migrate"
	"github.com/angelmondragon/brewpos-backend/pkg/outbox"
	"github.com/angelmondragon/brewpos-backend/pkg/redis"
)

const (
	serviceName   = "cron-worker"
	lockKeyFormat = "maintenance:%s"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	checks := map[string]controllers.Pinger{"database": dbClient}
	var lock cron.Lock = &cron.MemoryLock{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.Interval)
		if err != nil {
			logg.Error(context.Background(), "failed to create maintenance lock", err)
			os.Exit(1)
		}
		lock = redisLock
		checks["redis"] = redisClient
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry, err := buildJobs(cfg, logg, dbClient, reg)
	if err != nil {
		logg.Error(context.Background(), "failed to register jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
	})

	opsRouter := routes.NewOpsRouter(routes.OpsParams{
		Env:      cfg.App.Env,
		Logger:   logg,
		Checks:   checks,
		Gatherer: reg,
	})
	go func() {
		if err := api.Serve(ctx, cfg.Ops.Port, opsRouter, logg); err != nil {
			logg.Error(ctx, "ops server stopped", err)
			stop()
		}
	}()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*cron.Registry, error) {
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), cfg.Ledger.Key)
	if err != nil {
		return nil, err
	}
	outboxRepo := outbox.NewRepository(dbClient.DB())

	verify, err := cron.NewLedgerVerifyJob(ledgerSvc, metrics.NewLedgerMetrics(reg))
	if err != nil {
		return nil, err
	}
	backlog, err := cron.NewOutboxBacklogJob(dbClient, outboxRepo, cfg.Outbox.MaxAttempts, metrics.NewOutboxMetrics(reg))
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(verify, backlog, retention)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
