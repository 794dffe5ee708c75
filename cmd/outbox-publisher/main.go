package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/metrics"
	"github.com/angelmondragon/homecook-backend/pkg/migrate"
	"github.com/angelmondragon/homecook-backend/pkg/outbox"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/dispatcher"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/registry"
	"github.com/angelmondragon/homecook-backend/pkg/pubsub"
)

func main() {
	once := flag.Bool("once", false, "drain due events once and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
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

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), pubsub.Params{
		GCP:    cfg.GCP,
		PubSub: cfg.PubSub,
		Topics: eventRegistry.Topics(),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()
	d, err := dispatcher.New(dispatcher.Params{
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Registry:    eventRegistry,
		Publisher:   pubsubClient,
		Logger:      logg,
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		RetryBase:   cfg.Outbox.RetryBase,
		RetryMax:    cfg.Outbox.RetryMax,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox dispatcher", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Logger:       logg,
		DB:           dbClient,
		Bus:          pubsubClient,
		Dispatcher:   d,
		PollInterval: time.Duration(cfg.Outbox.PollIntervalMS) * time.Millisecond,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
	})

	if *once {
		res, err := service.RunOnce(ctx)
		if err != nil {
			logg.Error(ctx, "outbox drain failed", err)
			os.Exit(1)
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"claimed":   res.Claimed,
			"published": res.Published,
			"retried":   res.Retried,
			"dead":      res.Dead,
		}), "outbox drain complete")
		return
	}

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
