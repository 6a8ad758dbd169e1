package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/netpoint-soft/cybercafe-backend/api/routes"
	"github.com/netpoint-soft/cybercafe-backend/internal/audit"
	"github.com/netpoint-soft/cybercafe-backend/internal/intents"
	"github.com/netpoint-soft/cybercafe-backend/internal/matcher"
	"github.com/netpoint-soft/cybercafe-backend/internal/payments"
	"github.com/netpoint-soft/cybercafe-backend/internal/reconciliation"
	"github.com/netpoint-soft/cybercafe-backend/internal/transactions"
	darajawebhook "github.com/netpoint-soft/cybercafe-backend/internal/webhooks/daraja"
	"github.com/netpoint-soft/cybercafe-backend/pkg/config"
	"github.com/netpoint-soft/cybercafe-backend/pkg/daraja"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
	"github.com/netpoint-soft/cybercafe-backend/pkg/metrics"
	"github.com/netpoint-soft/cybercafe-backend/pkg/migrate"
	"github.com/netpoint-soft/cybercafe-backend/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	transactionsRepo := transactions.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	intentsRepo := intents.NewRepository(dbClient.DB())

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	intentsService, err := intents.NewService(intentsRepo, transactionsRepo, darajaClient, auditService, dbClient, cfg.Payments.IntentTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create intent service", err)
		os.Exit(1)
	}

	matcherService, err := matcher.NewService(
		paymentsRepo,
		intentsRepo,
		transactionsRepo,
		auditService,
		dbClient,
		cfg.Payments.CandidateBand(),
		cfg.Payments.CandidateTimeWindow,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create matcher service", err)
		os.Exit(1)
	}

	reconciliationService, err := reconciliation.NewService(transactionsRepo, intentsRepo, paymentsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	darajaWebhookService, err := darajawebhook.NewService(darajawebhook.ServiceParams{
		IntentsRepo:       intentsRepo,
		Matcher:           matcherService,
		Audits:            auditService,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           metrics.NewCallbackMetrics(prometheus.DefaultRegisterer),
		AllowedCIDRs:      cfg.Payments.CallbackAllowedCIDRs,
		AmountTolerance:   cfg.Payments.Tolerance(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create daraja webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			intentsService,
			matcherService,
			reconciliationService,
			paymentsRepo,
			darajaWebhookService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
