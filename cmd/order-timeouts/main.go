package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/homecook-backend/internal/engine"
	"github.com/angelmondragon/homecook-backend/internal/sla"
	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

// order-timeouts runs one SLA sweep and prints a summary, for operators who
// want to inspect or force timeouts outside the cron cycle.
func main() {
	dryRun := flag.Bool("dry-run", false, "report overdue orders without cancelling them")
	verbose := flag.Bool("verbose", false, "log every order examined")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "order-timeouts"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = "order-timeouts"

	logg = logger.New(logger.Options{
		ServiceName: "order-timeouts",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Fields:      map[string]any{"env": cfg.App.Env},
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(context.Background(), logg, "database", err)
	defer dbClient.Close()

	eng, err := engine.New(engine.Params{DB: dbClient, Config: cfg, Logger: logg})
	requireResource(context.Background(), logg, "order engine", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"dryRun": *dryRun,
	})

	report, err := eng.SLA.ProcessOrderTimeouts(ctx, sla.Options{DryRun: *dryRun, Verbose: *verbose})
	printReport(report, *dryRun)
	if err != nil {
		logg.Error(ctx, "order timeout sweep finished with failures", err)
		os.Exit(1)
	}
}

func printReport(r sla.Report, dryRun bool) {
	verb := "cancelled"
	if dryRun {
		verb = "would cancel"
	}
	fmt.Printf("scanned=%d %s=%d skipped=%d failed=%d more=%t\n", r.Scanned, verb, r.Cancelled, r.Skipped, r.Failed, r.HasMore)
	for phase, n := range r.ByPhase {
		fmt.Printf("  %s: %d\n", phase, n)
	}
	for _, a := range r.Actions {
		line := fmt.Sprintf("  %s %s %s", a.OrderID, a.Phase, a.Outcome)
		if a.Err != nil {
			line += ": " + a.Err.Error()
		}
		fmt.Println(line)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("failed to initialize %s", name), err)
	os.Exit(1)
}
