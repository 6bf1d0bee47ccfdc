package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/rentpay-backend/internal/billing"
	"github.com/angelmondragon/rentpay-backend/internal/cron"
	"github.com/angelmondragon/rentpay-backend/internal/ledger"
	"github.com/angelmondragon/rentpay-backend/internal/settings"
	"github.com/angelmondragon/rentpay-backend/internal/tokens"
	"github.com/angelmondragon/rentpay-backend/pkg/config"
	"github.com/angelmondragon/rentpay-backend/pkg/db"
	"github.com/angelmondragon/rentpay-backend/pkg/instance"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
	"github.com/angelmondragon/rentpay-backend/pkg/metrics"
	"github.com/angelmondragon/rentpay-backend/pkg/migrate"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
	"github.com/angelmondragon/rentpay-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cron cycle and exit (for an external scheduler)")
	flag.Parse()

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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

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

	rentBillingJob, err := cron.NewRentBillingJob(cron.RentBillingJobParams{Logger: logg, Sweep: sweep})
	requireResource(logg, "rent billing job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.LockName), 0)
	requireResource(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(rentBillingJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Billing.SweepInterval,
	})
	requireResource(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"once":        *once,
		"instance":    instance.ID(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Service.MetricsAddr != "" {
		go serveMetrics(ctx, logg, cfg.Service.MetricsAddr)
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics listener stopped", err)
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+resource, err)
	os.Exit(1)
}
