package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/brewpos-backend/api/responses"
	"github.com/angelmondragon/brewpos-backend/pkg/config"
	"github.com/angelmondragon/brewpos-backend/pkg/db"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
	"github.com/angelmondragon/brewpos-backend/pkg/migrate"
	"github.com/angelmondragon/brewpos-backend/pkg/redis"
)

const serviceName = "posctl"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName, Output: os.Stderr})

	_ = godotenv.Load()

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
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to prepare schema", err)
		os.Exit(1)
	}

	var store redisLockStore
	if cfg.Ledger.UsesRedisLock() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		store = redisClient
	}
	locker, err := lockerFor(cfg.Ledger, store)
	if err != nil {
		logg.Error(ctx, "failed to build ledger lock", err)
		os.Exit(1)
	}

	a, err := newApp(appParams{Config: cfg, Logger: logg, DB: dbClient, Locker: locker})
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	if err := run(ctx, a, os.Args[1:], os.Stdout); err != nil {
		_, payload := responses.ErrorPayload(err)
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(payload); encErr != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(payload.Error.Retryable))
	}
}

// exitCode separates retryable failures so scripts can loop on them.
func exitCode(retryable bool) int {
	if retryable {
		return 75
	}
	return 1
}
