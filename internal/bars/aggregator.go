// Package bars aggregates daily price rows into timeframe bars with
// completeness metadata.
package bars

import (
	"errors"
	"fmt"
	"time"

	"timeframe-lab/internal/calendar"
	"timeframe-lab/internal/domain"
)

// Data-integrity errors. The feed is the caller's responsibility; the
// aggregator surfaces problems instead of repairing them, since a silently
// repaired feed would corrupt downstream EMA seeding.
var (
	ErrUnsortedRows = errors.New("bars: daily rows not sorted by day")
	ErrDuplicateDay = errors.New("bars: duplicate day in daily rows")
	ErrEmptyWindow  = errors.New("bars: window contains no rows")
)

// Aggregate windows rows into one Bar per period, in order, numbering
// sequences from 1. Periods come from calendar.Resolve (optionally with
// the in-progress period appended for an open bar). Pure transform: no
// side effects. The observed span is taken from the rows themselves; an
// incremental caller holding only a tail of the feed should use
// AggregateSpan with the asset's true day range instead.
//
// Open/High/Low/Close are true extremes over the window; Volume and
// MarketCap are point-in-time snapshots from the window's last row, not
// sums.
func Aggregate(assetID string, spec domain.TimeframeSpec, rows []domain.DailyPrice, periods []calendar.Period) ([]domain.Bar, error) {
	if len(rows) == 0 {
		if err := validateRows(assetID, rows); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return AggregateSpan(assetID, spec, rows, periods, rows[0].Day, rows[len(rows)-1].Day)
}

// AggregateSpan is Aggregate with an explicit observed day range for the
// asset. Partial-coverage flags are judged against [observedFirst,
// observedLast] rather than the supplied rows, so a tail-only feed does
// not misreport leading windows as partial.
func AggregateSpan(assetID string, spec domain.TimeframeSpec, rows []domain.DailyPrice, periods []calendar.Period, observedFirst, observedLast time.Time) ([]domain.Bar, error) {
	if err := validateRows(assetID, rows); err != nil {
		return nil, err
	}
	if len(periods) == 0 || len(rows) == 0 {
		return nil, nil
	}

	globalFirst := domain.DayUTC(observedFirst)
	globalLast := domain.DayUTC(observedLast)

	bars := make([]domain.Bar, 0, len(periods))
	idx := 0
	for i, p := range periods {
		// Advance to the first row inside the window.
		for idx < len(rows) && domain.DayUTC(rows[idx].Day).Before(p.Start) {
			idx++
		}
		start := idx
		for idx < len(rows) && !domain.DayUTC(rows[idx].Day).After(p.End) {
			idx++
		}
		window := rows[start:idx]
		if len(window) == 0 {
			return nil, fmt.Errorf("aggregate %s/%s bar %d (%s..%s): %w",
				assetID, spec.Label, i+1,
				p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"), ErrEmptyWindow)
		}

		bar := buildBar(assetID, spec, i+1, p, window, globalFirst, globalLast)
		bars = append(bars, bar)
	}
	return bars, nil
}

// validateRows checks the feed is strictly ordered with no duplicate days.
func validateRows(assetID string, rows []domain.DailyPrice) error {
	for i := 1; i < len(rows); i++ {
		prev := domain.DayUTC(rows[i-1].Day)
		cur := domain.DayUTC(rows[i].Day)
		if cur.Equal(prev) {
			return fmt.Errorf("asset %s at %s: %w", assetID, cur.Format("2006-01-02"), ErrDuplicateDay)
		}
		if cur.Before(prev) {
			return fmt.Errorf("asset %s at %s: %w", assetID, cur.Format("2006-01-02"), ErrUnsortedRows)
		}
	}
	return nil
}

func buildBar(assetID string, spec domain.TimeframeSpec, seq int, p calendar.Period, window []domain.DailyPrice, globalFirst, globalLast time.Time) domain.Bar {
	first := window[0]
	last := window[len(window)-1]

	bar := domain.Bar{
		AssetID:        assetID,
		TimeframeLabel: spec.Label,
		BarSequence:    seq,
		TimeOpen:       domain.DayUTC(first.Day),
		TimeClose:      domain.DayUTC(last.Day),
		Open:           first.Open,
		Close:          last.Close,
		Volume:         last.Volume,
		MarketCap:      last.MarketCap,
		PartialStart:   globalFirst.After(p.Start),
		PartialEnd:     globalLast.Before(p.End),
	}

	bar.High = first.High
	bar.Low = first.Low
	bar.TimeHigh = domain.DayUTC(first.Day)
	bar.TimeLow = domain.DayUTC(first.Day)
	for _, r := range window {
		if r.High > bar.High {
			bar.High = r.High
			bar.TimeHigh = domain.DayUTC(r.Day)
		}
		if r.Low < bar.Low {
			bar.Low = r.Low
			bar.TimeLow = domain.DayUTC(r.Day)
		}
	}

	countMissing(&bar, p, window, globalFirst, globalLast)

	if spec.Policy == domain.PolicyCalendarAnchor && seq == 1 && bar.PartialStart {
		offset := domain.DaysBetween(p.Start, domain.DayUTC(first.Day))
		bar.BarAnchorOffset = &offset
	}
	return bar
}

// countMissing classifies cadence gaps inside the window as leading,
// trailing or interior. Days outside the asset's observed span are partial
// coverage, not missing days, so the expected span is clipped to it.
func countMissing(bar *domain.Bar, p calendar.Period, window []domain.DailyPrice, globalFirst, globalLast time.Time) {
	expectedStart := p.Start
	if globalFirst.After(expectedStart) {
		expectedStart = globalFirst
	}
	expectedEnd := p.End
	if globalLast.Before(expectedEnd) {
		expectedEnd = globalLast
	}

	firstDay := domain.DayUTC(window[0].Day)
	lastDay := domain.DayUTC(window[len(window)-1].Day)

	bar.MissingDaysStart = domain.DaysBetween(expectedStart, firstDay)
	bar.MissingDaysEnd = domain.DaysBetween(lastDay, expectedEnd)

	for i := 1; i < len(window); i++ {
		gap := domain.DaysBetween(window[i-1].Day, window[i].Day) - 1
		if gap > 0 {
			bar.MissingDaysInterior += gap
		}
	}

	bar.MissingDaysTotal = bar.MissingDaysStart + bar.MissingDaysEnd + bar.MissingDaysInterior
	bar.MissingDays = bar.MissingDaysTotal > 0
}
