package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"timeframe-lab/internal/bars"
	"timeframe-lab/internal/calendar"
	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/ema"
	"timeframe-lab/internal/observability"
	"timeframe-lab/internal/storage"
)

// Mode selects between incremental continuation and full recomputation.
type Mode string

const (
	// ModeIncremental resumes each unit from its checkpoint and appends
	// only new rows.
	ModeIncremental Mode = "incremental"

	// ModeFull ignores checkpoints, recomputes every unit from raw prices
	// and overwrites persisted values. Bounds drift accumulated by the
	// incremental path.
	ModeFull Mode = "full"
)

// Controller coordinates bar aggregation and both EMA recursions across
// all (asset, timeframe, period) units.
type Controller struct {
	prices     storage.DailyPriceStore
	timeframes storage.TimeframeStore
	alphas     storage.AlphaStore
	barStore   storage.BarStore
	emaRows    storage.EmaRowStore
	states     storage.RefreshStateStore
	runLog     storage.RunLogStore

	labels         []string
	periods        []int
	alphaMode      domain.AlphaMode
	workers        int
	openBars       bool
	driftTolerance float64
	cadence        time.Duration

	metrics *observability.Metrics
	verbose bool
}

// Options for creating a Controller.
type Options struct {
	// Required stores
	PriceStore        storage.DailyPriceStore
	TimeframeStore    storage.TimeframeStore
	AlphaStore        storage.AlphaStore
	BarStore          storage.BarStore
	EmaRowStore       storage.EmaRowStore
	RefreshStateStore storage.RefreshStateStore

	// TimeframeLabels selects the timeframes to compute; empty means all
	// specs in the dimension.
	TimeframeLabels []string

	// Periods is the EMA period set per timeframe.
	Periods []int

	// AlphaMode selects the continuous family's intrabar constant.
	AlphaMode domain.AlphaMode

	// Workers bounds per-asset parallelism. Should not exceed the
	// database pool size.
	Workers int

	// OpenBars aggregates the in-progress period as a partial-end bar.
	OpenBars bool

	// DriftTolerance is the absolute tolerance for incremental-vs-full
	// comparison during full recomputes.
	DriftTolerance float64

	// RunLogStore persists run completion markers. Optional; without it
	// no cadence escalation happens.
	RunLogStore storage.RunLogStore

	// RecomputeCadence escalates an incremental run to a full recompute
	// when the last completed full run is older than this. Zero disables
	// escalation.
	RecomputeCadence time.Duration

	Metrics *observability.Metrics
	Verbose bool
}

// New creates a new Controller.
func New(opts Options) *Controller {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	alphaMode := opts.AlphaMode
	if alphaMode == "" {
		alphaMode = domain.AlphaModeBar
	}
	tolerance := opts.DriftTolerance
	if tolerance <= 0 {
		tolerance = 1e-6
	}
	return &Controller{
		prices:         opts.PriceStore,
		timeframes:     opts.TimeframeStore,
		alphas:         opts.AlphaStore,
		barStore:       opts.BarStore,
		emaRows:        opts.EmaRowStore,
		states:         opts.RefreshStateStore,
		runLog:         opts.RunLogStore,
		cadence:        opts.RecomputeCadence,
		labels:         opts.TimeframeLabels,
		periods:        opts.Periods,
		alphaMode:      alphaMode,
		workers:        workers,
		openBars:       opts.OpenBars,
		driftTolerance: tolerance,
		metrics:        opts.Metrics,
		verbose:        opts.Verbose,
	}
}

// RunResult contains results from a controller run.
type RunResult struct {
	Mode            Mode
	AssetsProcessed int
	BarsWritten     int
	RowsWritten     int
	Results         []domain.UnitResult
	Errors          []string
}

// Run executes one refresh over every asset. Assets are independent work
// units mapped over a bounded worker pool; a failed unit never blocks
// other units. The returned error is reserved for whole-run failures
// (listing assets, resolving timeframes, cancellation).
func (c *Controller) Run(ctx context.Context, mode Mode) (*RunResult, error) {
	started := time.Now()
	mode = c.effectiveMode(ctx, mode)
	result := &RunResult{Mode: mode}

	specs, err := c.loadSpecs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load timeframe specs: %w", err)
	}

	assets, err := c.prices.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	c.log("refresh (%s): %d assets, %d timeframes, %d periods", mode, len(assets), len(specs), len(c.periods))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, assetID := range assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unitResults, barsWritten, rowsWritten := c.runAsset(gctx, mode, assetID, specs)

			mu.Lock()
			defer mu.Unlock()
			result.AssetsProcessed++
			result.BarsWritten += barsWritten
			result.RowsWritten += rowsWritten
			result.Results = append(result.Results, unitResults...)
			for _, ur := range unitResults {
				if ur.Status == domain.UnitFailed {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", ur.Key, ur.Detail))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].Key.String() < result.Results[j].Key.String()
	})

	if c.metrics != nil {
		status := "success"
		if len(result.Errors) > 0 {
			status = "partial"
		}
		c.metrics.RunsTotal.WithLabelValues(string(mode), status).Inc()
		c.metrics.RunDuration.WithLabelValues(string(mode)).Observe(time.Since(started).Seconds())
		c.metrics.LastSuccessfulRun.Set(float64(time.Now().Unix()))
		if mode == ModeFull {
			c.metrics.LastFullRecompute.Set(float64(time.Now().Unix()))
		}
	}
	if c.runLog != nil && len(result.Errors) == 0 {
		if err := c.runLog.RecordRun(ctx, string(mode), time.Now()); err != nil {
			c.log("record run marker: %v", err)
		}
	}
	return result, nil
}

// effectiveMode escalates an incremental run to a full recompute when the
// last completed full run is missing or older than the configured cadence.
// Failed runs never move the marker, so a broken full recompute keeps the
// escalation pending.
func (c *Controller) effectiveMode(ctx context.Context, mode Mode) Mode {
	if mode != ModeIncremental || c.runLog == nil || c.cadence <= 0 {
		return mode
	}
	last, err := c.runLog.LastRun(ctx, string(ModeFull))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.log("no completed full recompute on record, escalating to full")
		return ModeFull
	case err != nil:
		c.log("read run marker: %v", err)
		return mode
	case time.Since(last) >= c.cadence:
		c.log("last full recompute at %s exceeds cadence %s, escalating to full",
			last.Format(time.RFC3339), c.cadence)
		return ModeFull
	}
	return mode
}

// loadSpecs resolves the configured timeframe labels against the
// dimension. Empty label selection means every spec.
func (c *Controller) loadSpecs(ctx context.Context) ([]*domain.TimeframeSpec, error) {
	if len(c.labels) == 0 {
		return c.timeframes.List(ctx)
	}
	specs := make([]*domain.TimeframeSpec, 0, len(c.labels))
	for _, label := range c.labels {
		spec, err := c.timeframes.GetByLabel(ctx, label)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Missing dimension row: the affected units are reported
				// as skipped per asset, not here.
				specs = append(specs, &domain.TimeframeSpec{Label: label})
				continue
			}
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// runAsset processes every (timeframe, period) unit of one asset. The
// asset's writes are batched so cancellation between assets leaves no
// mixed old/new state.
func (c *Controller) runAsset(ctx context.Context, mode Mode, assetID string, specs []*domain.TimeframeSpec) ([]domain.UnitResult, int, int) {
	var results []domain.UnitResult
	barsWritten, rowsWritten := 0, 0

	if c.metrics != nil {
		defer c.metrics.AssetsProcessed.Inc()
	}

	for _, spec := range specs {
		unitResults, nBars, nRows := c.runTimeframe(ctx, mode, assetID, spec)
		results = append(results, unitResults...)
		barsWritten += nBars
		rowsWritten += nRows
	}

	if c.metrics != nil {
		for _, r := range results {
			c.metrics.UnitsProcessed.WithLabelValues(string(r.Status)).Inc()
		}
	}
	return results, barsWritten, rowsWritten
}

// runTimeframe aggregates bars once per (asset, timeframe) and fans the
// result out to every configured period.
func (c *Controller) runTimeframe(ctx context.Context, mode Mode, assetID string, spec *domain.TimeframeSpec) ([]domain.UnitResult, int, int) {
	if err := spec.Validate(); err != nil {
		// Configuration error: every period of this timeframe is skipped.
		return c.skipAll(assetID, spec.Label, fmt.Sprintf("timeframe spec unavailable: %v", err)), 0, 0
	}

	switch mode {
	case ModeFull:
		return c.runTimeframeFull(ctx, assetID, spec)
	default:
		return c.runTimeframeIncremental(ctx, assetID, spec)
	}
}

func (c *Controller) skipAll(assetID, label, detail string) []domain.UnitResult {
	results := make([]domain.UnitResult, 0, len(c.periods))
	for _, period := range c.periods {
		results = append(results, domain.UnitResult{
			Key:    domain.UnitKey{AssetID: assetID, TimeframeLabel: label, Period: period},
			Status: domain.UnitSkipped,
			Detail: detail,
		})
	}
	return results
}

func (c *Controller) failAll(assetID, label, detail string) []domain.UnitResult {
	results := make([]domain.UnitResult, 0, len(c.periods))
	for _, period := range c.periods {
		results = append(results, domain.UnitResult{
			Key:    domain.UnitKey{AssetID: assetID, TimeframeLabel: label, Period: period},
			Status: domain.UnitFailed,
			Detail: detail,
		})
	}
	return results
}

// runTimeframeFull recomputes the whole history of one (asset, timeframe)
// from raw prices and overwrites persisted values. Existing EMA rows are
// compared first so incremental drift is reported before it is repaired.
func (c *Controller) runTimeframeFull(ctx context.Context, assetID string, spec *domain.TimeframeSpec) ([]domain.UnitResult, int, int) {
	rowPtrs, err := c.prices.GetByAssetID(ctx, assetID)
	if err != nil {
		return c.failAll(assetID, spec.Label, fmt.Sprintf("load prices: %v", err)), 0, 0
	}
	if len(rowPtrs) == 0 {
		return c.skipAll(assetID, spec.Label, "no price history"), 0, 0
	}
	rows := derefPrices(rowPtrs)
	firstDay := domain.DayUTC(rows[0].Day)
	lastDay := domain.DayUTC(rows[len(rows)-1].Day)

	closed, open, err := c.resolveWindows(spec, firstDay, lastDay)
	if err != nil {
		return c.failAll(assetID, spec.Label, fmt.Sprintf("resolve windows: %v", err)), 0, 0
	}

	allBars, closedBars, err := c.aggregate(assetID, *spec, rows, closed, open, 0, firstDay, lastDay)
	if err != nil {
		return c.failAll(assetID, spec.Label, fmt.Sprintf("aggregate: %v", err)), 0, 0
	}

	// Overwrite semantics: stale tail sequences from a previous, longer
	// history must not survive the rebuild.
	if err := c.barStore.DeleteByAssetTimeframe(ctx, assetID, spec.Label); err != nil {
		return c.failAll(assetID, spec.Label, fmt.Sprintf("clear bars: %v", err)), 0, 0
	}
	if err := c.writeBars(ctx, allBars); err != nil {
		return c.failAll(assetID, spec.Label, fmt.Sprintf("write bars: %v", err)), 0, 0
	}

	results := make([]domain.UnitResult, 0, len(c.periods))
	rowsWritten := 0
	for _, period := range c.periods {
		ur := c.runPeriodFull(ctx, assetID, spec, period, rows, closedBars, lastDay)
		rowsWritten += ur.RowCount
		results = append(results, ur)
	}
	return results, len(allBars), rowsWritten
}

func (c *Controller) runPeriodFull(ctx context.Context, assetID string, spec *domain.TimeframeSpec, period int, rows []domain.DailyPrice, closedBars []domain.Bar, lastDay time.Time) domain.UnitResult {
	key := domain.UnitKey{AssetID: assetID, TimeframeLabel: spec.Label, Period: period}

	entry, err := c.alphas.Get(ctx, spec.Label, period)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.UnitResult{Key: key, Status: domain.UnitSkipped, Detail: "no alpha entry"}
		}
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("load alpha: %v", err)}
	}

	emaRows, resume, err := ema.BuildRows(assetID, spec.Label, rows, closedBars, period, *entry, c.alphaMode, nil)
	if err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("build ema rows: %v", err)}
	}

	// Drift check against what the incremental path persisted.
	driftWarn := false
	stored, err := c.emaRows.GetByUnit(ctx, assetID, spec.Label, period)
	if err == nil && len(stored) > 0 {
		report := CompareEmaRows(key, stored, ptrRows(emaRows), c.driftTolerance)
		if report.Exceeded() {
			driftWarn = true
			c.log("drift warning %s: %d/%d rows diverged, max delta %.3g",
				key, report.DivergentRows, report.RowsCompared, report.MaxAbsDelta)
			if c.metrics != nil {
				c.metrics.DriftWarnings.Inc()
			}
		}
	}

	if err := c.writeEmaRows(ctx, emaRows); err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("write ema rows: %v", err)}
	}
	if err := c.writeCheckpoints(ctx, key, resume, lastDay); err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("write checkpoints: %v", err)}
	}

	return domain.UnitResult{Key: key, Status: domain.UnitSuccess, RowCount: len(emaRows), DriftWarn: driftWarn}
}

// runTimeframeIncremental resumes each period of one (asset, timeframe)
// from its checkpoint, loading only the price tail the new windows need.
// Units without a checkpoint fall back to a full computation.
func (c *Controller) runTimeframeIncremental(ctx context.Context, assetID string, spec *domain.TimeframeSpec) ([]domain.UnitResult, int, int) {
	firstDay, lastDay, err := c.prices.DayRange(ctx, assetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.skipAll(assetID, spec.Label, "no price history"), 0, 0
		}
		return c.failAll(assetID, spec.Label, fmt.Sprintf("day range: %v", err)), 0, 0
	}

	closed, open, err := c.resolveWindows(spec, firstDay, lastDay)
	if err != nil {
		return c.failAll(assetID, spec.Label, fmt.Sprintf("resolve windows: %v", err)), 0, 0
	}

	results := make([]domain.UnitResult, 0, len(c.periods))
	barsWritten, rowsWritten := 0, 0
	wroteBarsFor := -1 // bar writes are shared across periods with the same checkpoint sequence

	for _, period := range c.periods {
		key := domain.UnitKey{AssetID: assetID, TimeframeLabel: spec.Label, Period: period}

		contState, errCont := c.states.Get(ctx, assetID, spec.Label, period, domain.VariantContinuous)
		barState, errBar := c.states.Get(ctx, assetID, spec.Label, period, domain.VariantBarSpace)
		if errors.Is(errCont, storage.ErrNotFound) || errors.Is(errBar, storage.ErrNotFound) {
			// First run for this unit: compute the whole history.
			ur, nBars := c.firstRunUnit(ctx, assetID, spec, period, closed, open, firstDay, lastDay)
			if nBars > 0 {
				barsWritten = nBars
			}
			rowsWritten += ur.RowCount
			results = append(results, ur)
			continue
		}
		if errCont != nil || errBar != nil {
			results = append(results, domain.UnitResult{Key: key, Status: domain.UnitFailed,
				Detail: fmt.Sprintf("load checkpoint: %v", firstErr(errCont, errBar))})
			continue
		}

		ur, nBars := c.resumeUnit(ctx, key, spec, contState, barState, closed, open, firstDay, lastDay, wroteBarsFor)
		if nBars > 0 {
			wroteBarsFor = barState.LastBarSequence
			barsWritten += nBars
		}
		rowsWritten += ur.RowCount
		results = append(results, ur)
	}
	return results, barsWritten, rowsWritten
}

// firstRunUnit computes a unit with no checkpoint from scratch, sharing
// the full-history path.
func (c *Controller) firstRunUnit(ctx context.Context, assetID string, spec *domain.TimeframeSpec, period int, closed []calendar.Period, open *calendar.Period, firstDay, lastDay time.Time) (domain.UnitResult, int) {
	key := domain.UnitKey{AssetID: assetID, TimeframeLabel: spec.Label, Period: period}

	rowPtrs, err := c.prices.GetByAssetID(ctx, assetID)
	if err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("load prices: %v", err)}, 0
	}
	rows := derefPrices(rowPtrs)

	allBars, closedBars, err := c.aggregate(assetID, *spec, rows, closed, open, 0, firstDay, lastDay)
	if err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("aggregate: %v", err)}, 0
	}
	if err := c.writeBars(ctx, allBars); err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("write bars: %v", err)}, 0
	}

	ur := c.runPeriodFull(ctx, assetID, spec, period, rows, closedBars, lastDay)
	return ur, len(allBars)
}

// resumeUnit continues one unit from its checkpoints. barsOffset is the
// checkpoint sequence bars were already written for in this run, avoiding
// duplicate bar writes across periods that share a sequence position.
func (c *Controller) resumeUnit(ctx context.Context, key domain.UnitKey, spec *domain.TimeframeSpec, contState, barState *domain.RefreshState, closed []calendar.Period, open *calendar.Period, firstDay, lastDay time.Time, wroteBarsFor int) (domain.UnitResult, int) {
	entry, err := c.alphas.Get(ctx, spec.Label, key.Period)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.UnitResult{Key: key, Status: domain.UnitSkipped, Detail: "no alpha entry"}, 0
		}
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("load alpha: %v", err)}, 0
	}

	lastSeq := barState.LastBarSequence
	if lastSeq > len(closed) {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed,
			Detail: fmt.Sprintf("checkpoint at bar %d beyond %d resolved windows; full recompute required", lastSeq, len(closed))}, 0
	}
	newClosed := closed[lastSeq:]

	// Load the tail: the new windows need rows from the first new window
	// start; the EMA tail starts right after the checkpointed day.
	loadFrom := contState.LastSeedDay
	if len(newClosed) > 0 && newClosed[0].Start.AddDate(0, 0, -1).Before(loadFrom) {
		loadFrom = newClosed[0].Start.AddDate(0, 0, -1)
	} else if open != nil && open.Start.AddDate(0, 0, -1).Before(loadFrom) {
		loadFrom = open.Start.AddDate(0, 0, -1)
	}
	tailPtrs, err := c.prices.GetSince(ctx, key.AssetID, loadFrom)
	if err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("load price tail: %v", err)}, 0
	}
	tail := derefPrices(tailPtrs)

	allBars, closedBars, err := c.aggregate(key.AssetID, *spec, tail, newClosed, open, lastSeq, firstDay, lastDay)
	if err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("aggregate tail: %v", err)}, 0
	}

	barsWritten := 0
	if wroteBarsFor != lastSeq {
		if err := c.writeBars(ctx, allBars); err != nil {
			return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("write bars: %v", err)}, 0
		}
		barsWritten = len(allBars)
	}

	// EMA rows continue strictly after the checkpointed day.
	emaTail := pricesAfter(tail, contState.LastSeedDay)
	resume := resumeFromStates(contState, barState)
	emaRowSlice, updated, err := ema.BuildRows(key.AssetID, spec.Label, emaTail, closedBars, key.Period, *entry, c.alphaMode, resume)
	if err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("build ema tail: %v", err)}, 0
	}
	if len(emaRowSlice) == 0 {
		return domain.UnitResult{Key: key, Status: domain.UnitSuccess, BarCount: barsWritten}, barsWritten
	}

	if err := c.writeEmaRows(ctx, emaRowSlice); err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("write ema rows: %v", err)}, 0
	}
	if err := c.writeCheckpoints(ctx, key, updated, lastDay); err != nil {
		return domain.UnitResult{Key: key, Status: domain.UnitFailed, Detail: fmt.Sprintf("write checkpoints: %v", err)}, 0
	}

	return domain.UnitResult{Key: key, Status: domain.UnitSuccess, BarCount: barsWritten, RowCount: len(emaRowSlice)}, barsWritten
}

// resolveWindows enumerates closed windows plus, when configured, the
// in-progress one.
func (c *Controller) resolveWindows(spec *domain.TimeframeSpec, firstDay, lastDay time.Time) ([]calendar.Period, *calendar.Period, error) {
	closed, err := calendar.Resolve(*spec, firstDay, lastDay)
	if err != nil {
		return nil, nil, err
	}
	if !c.openBars {
		return closed, nil, nil
	}
	if p, ok := calendar.CurrentPeriod(*spec, firstDay, lastDay); ok {
		return closed, &p, nil
	}
	return closed, nil, nil
}

// aggregate builds bars over the given windows, renumbering sequences to
// continue after seqOffset, and splits off the closed subset the EMA
// engines may consume.
func (c *Controller) aggregate(assetID string, spec domain.TimeframeSpec, rows []domain.DailyPrice, closed []calendar.Period, open *calendar.Period, seqOffset int, firstDay, lastDay time.Time) (all, closedOnly []domain.Bar, err error) {
	windows := closed
	if open != nil {
		windows = append(append([]calendar.Period{}, closed...), *open)
	}
	barSlice, err := bars.AggregateSpan(assetID, spec, rows, windows, firstDay, lastDay)
	if err != nil {
		return nil, nil, err
	}
	for i := range barSlice {
		barSlice[i].BarSequence += seqOffset
	}

	closedOnly = barSlice
	if open != nil && len(barSlice) > 0 && barSlice[len(barSlice)-1].PartialEnd {
		closedOnly = barSlice[:len(barSlice)-1]
	}
	return barSlice, closedOnly, nil
}

// writeBars upserts a bar batch with retry. Transient write failures are
// retried with exponential backoff before the unit is failed.
func (c *Controller) writeBars(ctx context.Context, barSlice []domain.Bar) error {
	if len(barSlice) == 0 {
		return nil
	}
	ptrs := make([]*domain.Bar, len(barSlice))
	for i := range barSlice {
		ptrs[i] = &barSlice[i]
	}
	err := c.retryWrite(ctx, "bars", func() error {
		return c.barStore.UpsertBulk(ctx, ptrs)
	})
	if err == nil && c.metrics != nil {
		c.metrics.BarsWritten.Add(float64(len(ptrs)))
	}
	return err
}

func (c *Controller) writeEmaRows(ctx context.Context, rows []domain.EmaRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := c.retryWrite(ctx, "ema_rows", func() error {
		return c.emaRows.UpsertBulk(ctx, ptrRows(rows))
	})
	if err == nil && c.metrics != nil {
		c.metrics.EmaRowsWritten.Add(float64(len(rows)))
	}
	return err
}

func (c *Controller) retryWrite(ctx context.Context, table string, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	started := time.Now()
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return op()
	}, policy)
	if c.metrics != nil {
		db := "postgres"
		if table == "ema_rows" {
			db = "clickhouse"
		}
		c.metrics.DBWriteDuration.WithLabelValues(db, table).Observe(time.Since(started).Seconds())
		if attempts > 1 {
			c.metrics.WriteRetries.Add(float64(attempts - 1))
		}
		if err != nil {
			c.metrics.DBWriteErrors.WithLabelValues(db, table).Inc()
		}
	}
	return err
}

// writeCheckpoints persists both variants' recursion state.
func (c *Controller) writeCheckpoints(ctx context.Context, key domain.UnitKey, resume *ema.Resume, lastDay time.Time) error {
	if resume == nil {
		return nil
	}
	cont, bar := statesFromResume(key, resume, lastDay)
	if err := c.states.Upsert(ctx, cont); err != nil {
		return err
	}
	if err := c.states.Upsert(ctx, bar); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.CheckpointsPersisted.Add(2)
	}
	return nil
}

func (c *Controller) log(format string, args ...interface{}) {
	if c.verbose {
		log.Printf(format, args...)
	}
}

func derefPrices(rows []*domain.DailyPrice) []domain.DailyPrice {
	out := make([]domain.DailyPrice, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out
}

func pricesAfter(rows []domain.DailyPrice, day time.Time) []domain.DailyPrice {
	day = domain.DayUTC(day)
	for i, r := range rows {
		if domain.DayUTC(r.Day).After(day) {
			return rows[i:]
		}
	}
	return nil
}

func ptrRows(rows []domain.EmaRow) []*domain.EmaRow {
	out := make([]*domain.EmaRow, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
