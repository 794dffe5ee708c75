package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homecook-backend/internal/cron"
	"github.com/angelmondragon/homecook-backend/internal/engine"
	"github.com/angelmondragon/homecook-backend/internal/notifications"
	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/metrics"
	"github.com/angelmondragon/homecook-backend/pkg/migrate"
	"github.com/angelmondragon/homecook-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma-separated job names to run (default: all)")
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
		Fields:      map[string]any{"env": cfg.App.Env},
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

	eng, err := engine.New(engine.Params{
		DB:         dbClient,
		Config:     cfg,
		Logger:     logg,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to assemble order engine", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, eng)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	if *only != "" {
		registry, err = registry.Select(strings.Split(*only, ",")...)
		if err != nil {
			logg.Error(context.Background(), "invalid -jobs selection", err)
			os.Exit(1)
		}
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LeaseKey("cron-worker:"+lockEnv(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"dryRun":      cfg.Cron.DryRun,
		"jobs":        registry.Names(),
	})

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, eng *engine.Engine) (*cron.Registry, error) {
	timeouts, err := cron.NewOrderTimeoutsJob(cron.OrderTimeoutsJobParams{
		Logger:     logg,
		Sweeper:    eng.SLA,
		MaxBatches: cfg.Cron.TimeoutBatches,
		DryRun:     cfg.Cron.DryRun,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: eng.OutboxRepo,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Retention:  cfg.Outbox.RetentionDays,
		StaleAfter: cfg.Outbox.StaleAfter,
		DryRun:     cfg.Cron.DryRun,
	})
	if err != nil {
		return nil, err
	}
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetentionDays,
		DryRun:     cfg.Cron.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(timeouts, retention, cleanup)
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
