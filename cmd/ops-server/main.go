package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homecook-backend/api/controllers"
	"github.com/angelmondragon/homecook-backend/api/routes"
	"github.com/angelmondragon/homecook-backend/internal/engine"
	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "ops-server"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "ops-server"

	logg = logger.New(logger.Options{
		ServiceName: "ops-server",
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

	handler := routes.NewRouter(routes.Params{
		Config: cfg,
		Logger: logg,
		Deps: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		SLA:      eng.SLA,
		Gatherer: prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Ops.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"addr":        srv.Addr,
	})

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "ops server shutdown failed", err)
		}
	}
	logg.Info(ctx, "ops server shutting down gracefully")
}
