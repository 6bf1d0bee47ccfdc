package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/rentpay-backend/api/routes"
	"github.com/angelmondragon/rentpay-backend/internal/billing"
	"github.com/angelmondragon/rentpay-backend/internal/checkout"
	"github.com/angelmondragon/rentpay-backend/internal/ledger"
	"github.com/angelmondragon/rentpay-backend/internal/settings"
	"github.com/angelmondragon/rentpay-backend/internal/tokens"
	payherewebhook "github.com/angelmondragon/rentpay-backend/internal/webhooks/payhere"
	"github.com/angelmondragon/rentpay-backend/pkg/config"
	"github.com/angelmondragon/rentpay-backend/pkg/db"
	"github.com/angelmondragon/rentpay-backend/pkg/instance"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
	"github.com/angelmondragon/rentpay-backend/pkg/metrics"
	"github.com/angelmondragon/rentpay-backend/pkg/migrate"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
	"github.com/angelmondragon/rentpay-backend/pkg/redis"
)

const ipnIdempotencyScope = "payhere-ipn"

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	settingsLoader, err := settings.NewLoader(settings.LoaderParams{
		Repository: settings.NewRepository(dbClient.DB()),
		PayHere:    cfg.PayHere,
		Billing:    cfg.Billing,
		FromDB:     cfg.FeatureFlags.SettingsFromDB,
	})
	requireResource(logg, "settings loader", err)

	tokenService, err := tokens.NewService(tokens.ServiceParams{
		Repo:     tokens.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Logger:   logg,
	})
	requireResource(logg, "token service", err)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:     ledger.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Logger:   logg,
	})
	requireResource(logg, "ledger service", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Repo:     checkout.NewRepository(dbClient.DB()),
		Settings: settingsLoader,
		Logger:   logg,
	})
	requireResource(logg, "checkout service", err)

	ipnGuard, err := payherewebhook.NewIdempotencyGuard(redisClient, cfg.Billing.WebhookIdempotency, ipnIdempotencyScope)
	requireResource(logg, "ipn idempotency guard", err)

	notificationService, err := payherewebhook.NewService(payherewebhook.ServiceParams{
		Settings: settingsLoader,
		Tokens:   tokenService,
		Ledger:   ledgerService,
		Repo:     payherewebhook.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Guard:    ipnGuard,
		Metrics:  paymentMetrics,
		Logger:   logg,
	})
	requireResource(logg, "payhere notification service", err)

	var periodLock billing.PeriodLock
	if cfg.FeatureFlags.BillingPeriodLck {
		redisPeriodLock, err := billing.NewRedisPeriodLock(redisClient, cfg.Billing.PeriodLockTTL)
		requireResource(logg, "billing period lock", err)
		periodLock = redisPeriodLock
	}

	sweep, err := billing.NewSweep(billing.SweepParams{
		Repo:          billing.NewRepository(dbClient.DB()),
		Tokens:        tokenService,
		Ledger:        ledgerService,
		Gateway:       payhere.NewClient(payhere.WithTimeout(cfg.PayHere.HTTPTimeout)),
		Settings:      settingsLoader,
		PeriodLock:    periodLock,
		Metrics:       paymentMetrics,
		Logger:        logg,
		ChargeTimeout: cfg.Billing.ChargeTimeout,
	})
	requireResource(logg, "billing sweep", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Gatherer:    registry,
		}, routes.Services{
			Checkout:      checkoutService,
			Tokens:        tokenService,
			Sweep:         sweep,
			Notifications: notificationService,
		}),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+resource, err)
	os.Exit(1)
}
