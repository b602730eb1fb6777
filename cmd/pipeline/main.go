// Package main runs the bar/EMA engine end to end over an in-memory
// fixture: a synthetic daily price series aggregated into rolling and
// calendar timeframes with both EMA families computed per period.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/refresh"
	"timeframe-lab/internal/storage/memory"
)

func main() {
	verbose := flag.Bool("verbose", false, "Verbose output")
	days := flag.Int("days", 40, "Length of the synthetic daily series")
	flag.Parse()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	prices := memory.NewDailyPriceStore()
	timeframes := memory.NewTimeframeStore()
	alphas := memory.NewAlphaStore()
	barStore := memory.NewBarStore()
	emaRows := memory.NewEmaRowStore()
	states := memory.NewRefreshStateStore()

	specs := fixtureTimeframes()
	periods := []int{2, 5, 10}
	if err := refresh.SeedDimensions(ctx, timeframes, alphas, specs, periods); err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding dimensions: %v\n", err)
		os.Exit(1)
	}
	if err := loadFixturePrices(ctx, prices, *days); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fixture prices: %v\n", err)
		os.Exit(1)
	}

	labels := make([]string, len(specs))
	for i, spec := range specs {
		labels[i] = spec.Label
	}

	fmt.Println("=== Timeframe Engine E2E ===")
	ctrl := refresh.New(refresh.Options{
		PriceStore:        prices,
		TimeframeStore:    timeframes,
		AlphaStore:        alphas,
		BarStore:          barStore,
		EmaRowStore:       emaRows,
		RefreshStateStore: states,
		TimeframeLabels:   labels,
		Periods:           periods,
		AlphaMode:         domain.AlphaModeBar,
		Workers:           2,
		OpenBars:          true,
		Verbose:           *verbose,
	})

	result, err := ctrl.Run(ctx, refresh.ModeFull)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run completed:\n")
	fmt.Printf("  Assets: %d\n", result.AssetsProcessed)
	fmt.Printf("  Bars written: %d\n", result.BarsWritten)
	fmt.Printf("  EMA rows written: %d\n", result.RowsWritten)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	for _, spec := range specs {
		bars, err := barStore.GetByAssetTimeframe(ctx, fixtureAssetID, spec.Label)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading bars: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n%s (%s):\n", spec.Label, spec.Policy)
		for _, b := range bars {
			flags := ""
			if b.PartialStart {
				flags += " partial-start"
			}
			if b.PartialEnd {
				flags += " partial-end"
			}
			fmt.Printf("  bar %2d  %s..%s  O=%.2f C=%.2f%s\n",
				b.BarSequence,
				b.TimeOpen.Format("2006-01-02"), b.TimeClose.Format("2006-01-02"),
				b.Open, b.Close, flags)
		}
	}

	rows, err := emaRows.GetByUnit(ctx, fixtureAssetID, "10D", 2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading EMA rows: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n10D period=2 close-day values:\n")
	for _, r := range rows {
		if r.Roll {
			continue
		}
		bar := "null"
		if r.EmaBar != nil {
			bar = fmt.Sprintf("%.4f", *r.EmaBar)
		}
		fmt.Printf("  %s  ema=%.4f  ema_bar=%s\n", r.Day.Format("2006-01-02"), r.Ema, bar)
	}

	fmt.Println("\nE2E run completed successfully")
}

const fixtureAssetID = "FIXTURE"

// fixtureTimeframes covers all three calendar policies.
func fixtureTimeframes() []domain.TimeframeSpec {
	return []domain.TimeframeSpec{
		domain.NewTimeframeSpec("10D", domain.UnitDay, 10, domain.PolicyRolling, domain.ConventionNone),
		domain.NewTimeframeSpec("1W", domain.UnitWeek, 1, domain.PolicyCalendarStrict, domain.ConventionISO),
		domain.NewTimeframeSpec("1M", domain.UnitMonth, 1, domain.PolicyCalendarStrict, domain.ConventionUS),
		domain.NewTimeframeSpec("1M-A", domain.UnitMonth, 1, domain.PolicyCalendarAnchor, domain.ConventionUS),
	}
}

// loadFixturePrices inserts a synthetic linear daily close series starting
// 2020-01-10 at 100.
func loadFixturePrices(ctx context.Context, store *memory.DailyPriceStore, days int) error {
	start := time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := make([]*domain.DailyPrice, 0, days)
	for i := 0; i < days; i++ {
		close := 100.0 + float64(i)
		rows = append(rows, &domain.DailyPrice{
			AssetID:   fixtureAssetID,
			Day:       start.AddDate(0, 0, i),
			Open:      close - 0.5,
			High:      close + 1,
			Low:       close - 1,
			Close:     close,
			Volume:    1_000_000,
			MarketCap: close * 10_000_000,
		})
	}
	return store.InsertBulk(ctx, rows)
}
