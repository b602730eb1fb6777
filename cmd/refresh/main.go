// Package main runs the bar/EMA refresh against PostgreSQL and ClickHouse.
// Incremental mode resumes each unit from its checkpoint; full mode
// recomputes from raw prices and reports drift.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeframe-lab/internal/config"
	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/observability"
	"timeframe-lab/internal/refresh"
	chstore "timeframe-lab/internal/storage/clickhouse"
	"timeframe-lab/internal/storage/migrations"
	pgstore "timeframe-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	mode := flag.String("mode", "incremental", "Refresh mode: incremental or full")
	seed := flag.Bool("seed", false, "Seed the standard timeframe and alpha dimensions before running")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[refresh] ", log.LstdFlags|log.Lshortfile)

	var runMode refresh.Mode
	switch *mode {
	case "incremental":
		runMode = refresh.ModeIncremental
	case "full":
		runMode = refresh.ModeFull
	default:
		logger.Fatalf("Unknown mode: %s", *mode)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	metrics := observability.NewMetrics("")
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		logger.Fatalf("PostgreSQL connection error: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("PostgreSQL migration error: %v", err)
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
	if err != nil {
		logger.Fatalf("ClickHouse migration error: %v", err)
	}
	defer conn.Close()

	timeframeStore := pgstore.NewTimeframeStore(pool)
	alphaStore := pgstore.NewAlphaStore(pool)

	if *seed {
		if err := refresh.SeedDimensions(ctx, timeframeStore, alphaStore, domain.StandardTimeframes(), cfg.Periods); err != nil {
			logger.Fatalf("Seed error: %v", err)
		}
		logger.Printf("Seeded timeframe and alpha dimensions")
	}

	ctrl := refresh.New(refresh.Options{
		PriceStore:        pgstore.NewDailyPriceStore(pool),
		TimeframeStore:    timeframeStore,
		AlphaStore:        alphaStore,
		BarStore:          pgstore.NewBarStore(pool),
		EmaRowStore:       chstore.NewEmaRowStore(conn),
		RefreshStateStore: pgstore.NewRefreshStateStore(pool),
		RunLogStore:       pgstore.NewRunLogStore(pool),
		RecomputeCadence:  cfg.Recompute.Cadence,
		TimeframeLabels:   cfg.Timeframes,
		Periods:           cfg.Periods,
		AlphaMode:         cfg.AlphaMode,
		Workers:           cfg.Workers,
		OpenBars:          cfg.OpenBars,
		DriftTolerance:    cfg.Recompute.DriftTolerance,
		Metrics:           metrics,
		Verbose:           *verbose,
	})

	started := time.Now()
	result, err := ctrl.Run(ctx, runMode)
	if err != nil {
		logger.Fatalf("Run error: %v", err)
	}

	logger.Printf("Run (%s) completed in %s: %d assets, %d bars, %d EMA rows",
		result.Mode, time.Since(started).Round(time.Millisecond),
		result.AssetsProcessed, result.BarsWritten, result.RowsWritten)
	for _, e := range result.Errors {
		logger.Printf("  unit error: %s", e)
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}
