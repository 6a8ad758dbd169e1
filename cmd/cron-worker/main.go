package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netpoint-soft/cybercafe-backend/internal/audit"
	"github.com/netpoint-soft/cybercafe-backend/internal/cron"
	"github.com/netpoint-soft/cybercafe-backend/internal/intents"
	"github.com/netpoint-soft/cybercafe-backend/internal/transactions"
	"github.com/netpoint-soft/cybercafe-backend/pkg/config"
	"github.com/netpoint-soft/cybercafe-backend/pkg/daraja"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
	"github.com/netpoint-soft/cybercafe-backend/pkg/metrics"
	"github.com/netpoint-soft/cybercafe-backend/pkg/migrate"
	"github.com/netpoint-soft/cybercafe-backend/pkg/redis"
)

const lockKeyFormat = "cc:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
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

	darajaClient, err := daraja.NewClient(cfg.Daraja)
	if err != nil {
		logg.Error(context.Background(), "failed to create daraja client", err)
		os.Exit(1)
	}

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	intentsService, err := intents.NewService(
		intents.NewRepository(dbClient.DB()),
		transactions.NewRepository(dbClient.DB()),
		darajaClient,
		auditService,
		dbClient,
		cfg.Payments.IntentTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create intent service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewIntentExpiryJob(cron.IntentExpiryJobParams{
		Logger:  logg,
		Intents: intentsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create intent expiry job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.IntentExpiryInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
