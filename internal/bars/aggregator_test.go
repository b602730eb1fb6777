package bars

import (
	"errors"
	"testing"
	"time"

	"timeframe-lab/internal/calendar"
	"timeframe-lab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// linearSeries builds days consecutive rows starting at start with closes
// base, base+1, ...
func linearSeries(assetID string, start time.Time, days int, base float64) []domain.DailyPrice {
	rows := make([]domain.DailyPrice, 0, days)
	for i := 0; i < days; i++ {
		close := base + float64(i)
		rows = append(rows, domain.DailyPrice{
			AssetID:   assetID,
			Day:       start.AddDate(0, 0, i),
			Open:      close - 0.5,
			High:      close + 1,
			Low:       close - 1,
			Close:     close,
			Volume:    float64(1000 + i),
			MarketCap: close * 1e6,
		})
	}
	return rows
}

func rolling10D() domain.TimeframeSpec {
	return domain.NewTimeframeSpec("10D", domain.UnitDay, 10, domain.PolicyRolling, domain.ConventionNone)
}

func resolve(t *testing.T, spec domain.TimeframeSpec, first, last time.Time) []calendar.Period {
	t.Helper()
	periods, err := calendar.Resolve(spec, first, last)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return periods
}

func TestAggregate_Rolling10DCloses(t *testing.T) {
	start := day(2020, 1, 10)
	rows := linearSeries("A", start, 40, 100)
	spec := rolling10D()
	periods := resolve(t, spec, start, rows[39].Day)

	bars, err := Aggregate("A", spec, rows, periods)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(bars) != 4 {
		t.Fatalf("expected 4 bars, got %d", len(bars))
	}

	wantCloses := []float64{109, 119, 129, 139}
	for i, b := range bars {
		if b.BarSequence != i+1 {
			t.Errorf("bar %d: sequence = %d", i, b.BarSequence)
		}
		if b.Close != wantCloses[i] {
			t.Errorf("bar %d: close = %v, want %v", i+1, b.Close, wantCloses[i])
		}
		if b.PartialStart || b.PartialEnd || b.MissingDays {
			t.Errorf("bar %d: unexpected completeness flags %+v", i+1, b)
		}
	}

	// OHLC semantics on the first bar: open from the first row, extremes
	// over the whole window, volume snapshot from the last row.
	b := bars[0]
	if b.Open != 99.5 {
		t.Errorf("open = %v, want 99.5", b.Open)
	}
	if b.High != 110 || !b.TimeHigh.Equal(day(2020, 1, 19)) {
		t.Errorf("high = %v at %s, want 110 at 2020-01-19", b.High, b.TimeHigh.Format("2006-01-02"))
	}
	if b.Low != 99 || !b.TimeLow.Equal(day(2020, 1, 10)) {
		t.Errorf("low = %v at %s, want 99 at 2020-01-10", b.Low, b.TimeLow.Format("2006-01-02"))
	}
	if b.Volume != 1009 {
		t.Errorf("volume = %v, want last-day snapshot 1009", b.Volume)
	}
	if b.MarketCap != 109e6 {
		t.Errorf("market cap = %v, want last-day snapshot", b.MarketCap)
	}
	if !b.TimeOpen.Equal(day(2020, 1, 10)) || !b.TimeClose.Equal(day(2020, 1, 19)) {
		t.Errorf("bar span = %s..%s", b.TimeOpen.Format("2006-01-02"), b.TimeClose.Format("2006-01-02"))
	}
}

func TestAggregate_OpenBarPartialEnd(t *testing.T) {
	start := day(2020, 1, 10)
	rows := linearSeries("A", start, 45, 100)
	spec := rolling10D()
	last := rows[44].Day

	periods := resolve(t, spec, start, last)
	current, ok := calendar.CurrentPeriod(spec, start, last)
	if !ok {
		t.Fatal("expected an in-progress window")
	}
	periods = append(periods, current)

	bars, err := Aggregate("A", spec, rows, periods)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(bars) != 5 {
		t.Fatalf("expected 4 closed + 1 open bar, got %d", len(bars))
	}
	open := bars[4]
	if !open.PartialEnd {
		t.Error("open bar must be partial-end")
	}
	if open.Close != 144 {
		t.Errorf("open bar close = %v, want 144", open.Close)
	}
	if !open.TimeClose.Equal(day(2020, 2, 23)) {
		t.Errorf("open bar time_close = %s, want the last observed day", open.TimeClose.Format("2006-01-02"))
	}
}

func TestAggregate_CalendarAnchorOffset(t *testing.T) {
	spec := domain.NewTimeframeSpec("1M", domain.UnitMonth, 1, domain.PolicyCalendarAnchor, domain.ConventionUS)
	start := day(2020, 1, 10)
	rows := linearSeries("A", start, 40, 100)
	periods := resolve(t, spec, start, rows[39].Day)

	bars, err := Aggregate("A", spec, rows, periods)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected the partial January bar, got %d bars", len(bars))
	}

	jan := bars[0]
	if !jan.PartialStart {
		t.Error("January bar must be partial-start")
	}
	if jan.BarAnchorOffset == nil || *jan.BarAnchorOffset != 9 {
		t.Errorf("anchor offset = %v, want 9 (Jan 1 to Jan 10)", jan.BarAnchorOffset)
	}
	if jan.MissingDays {
		t.Error("partial coverage must not count as missing days")
	}
	if jan.Close != 121 { // Jan 31 is the 22nd row
		t.Errorf("January close = %v, want 121", jan.Close)
	}
}

func TestAggregate_CalendarStrictNoOffset(t *testing.T) {
	spec := domain.NewTimeframeSpec("1M", domain.UnitMonth, 1, domain.PolicyCalendarStrict, domain.ConventionUS)
	start := day(2020, 1, 10)
	rows := linearSeries("A", start, 60, 100)
	periods := resolve(t, spec, start, rows[59].Day)

	bars, err := Aggregate("A", spec, rows, periods)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected only February, got %d bars", len(bars))
	}
	feb := bars[0]
	if feb.PartialStart || feb.BarAnchorOffset != nil {
		t.Errorf("strict February bar must be complete: %+v", feb)
	}
	if !feb.TimeOpen.Equal(day(2020, 2, 1)) || !feb.TimeClose.Equal(day(2020, 2, 29)) {
		t.Errorf("February span = %s..%s", feb.TimeOpen.Format("2006-01-02"), feb.TimeClose.Format("2006-01-02"))
	}
}

func TestAggregate_InteriorGapCounted(t *testing.T) {
	start := day(2020, 1, 10)
	rows := linearSeries("A", start, 20, 100)
	// Remove days 3 and 4 of the first window.
	gapped := append(append([]domain.DailyPrice{}, rows[:2]...), rows[4:]...)

	spec := rolling10D()
	periods := resolve(t, spec, start, rows[19].Day)

	bars, err := Aggregate("A", spec, gapped, periods)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	b := bars[0]
	if !b.MissingDays || b.MissingDaysInterior != 2 || b.MissingDaysTotal != 2 {
		t.Errorf("gap classification wrong: %+v", b)
	}
	if b.MissingDaysStart != 0 || b.MissingDaysEnd != 0 {
		t.Errorf("interior gap misclassified as leading/trailing: %+v", b)
	}
	if bars[1].MissingDays {
		t.Errorf("second window has no gaps: %+v", bars[1])
	}
}

func TestAggregate_LeadingAndTrailingGaps(t *testing.T) {
	start := day(2020, 1, 10)
	rows := linearSeries("A", start, 20, 100)
	// Drop the first and last day of the second window.
	gapped := append(append([]domain.DailyPrice{}, rows[:10]...), rows[11:19]...)

	spec := rolling10D()
	periods := resolve(t, spec, start, rows[19].Day)

	bars, err := AggregateSpan("A", spec, gapped, periods, start, rows[19].Day)
	if err != nil {
		t.Fatalf("AggregateSpan failed: %v", err)
	}
	b := bars[1]
	if b.MissingDaysStart != 1 || b.MissingDaysEnd != 1 || b.MissingDaysInterior != 0 {
		t.Errorf("gap classification wrong: start=%d end=%d interior=%d",
			b.MissingDaysStart, b.MissingDaysEnd, b.MissingDaysInterior)
	}
}

func TestAggregateSpan_TailFeedNotPartial(t *testing.T) {
	start := day(2020, 1, 10)
	full := linearSeries("A", start, 40, 100)
	spec := rolling10D()
	all := resolve(t, spec, start, full[39].Day)

	// Feed only the rows of the last two windows, but declare the true
	// observed span.
	tail := full[20:]
	bars, err := AggregateSpan("A", spec, tail, all[2:], start, full[39].Day)
	if err != nil {
		t.Fatalf("AggregateSpan failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	for _, b := range bars {
		if b.PartialStart || b.PartialEnd || b.MissingDays {
			t.Errorf("tail bar misflagged: %+v", b)
		}
	}
	if bars[0].Close != 129 || bars[1].Close != 139 {
		t.Errorf("tail closes = %v, %v, want 129, 139", bars[0].Close, bars[1].Close)
	}
}

func TestAggregate_ErrEmptyWindow(t *testing.T) {
	start := day(2020, 1, 10)
	rows := linearSeries("A", start, 20, 100)
	// Remove the entire second window.
	gapped := rows[:10]

	spec := rolling10D()
	periods := resolve(t, spec, start, rows[19].Day)

	_, err := AggregateSpan("A", spec, gapped, periods, start, rows[19].Day)
	if !errors.Is(err, ErrEmptyWindow) {
		t.Fatalf("expected ErrEmptyWindow, got %v", err)
	}
}

func TestAggregate_FeedValidation(t *testing.T) {
	start := day(2020, 1, 10)
	rows := linearSeries("A", start, 10, 100)
	spec := rolling10D()
	periods := resolve(t, spec, start, rows[9].Day)

	dup := append(append([]domain.DailyPrice{}, rows...), rows[9])
	if _, err := Aggregate("A", spec, dup, periods); !errors.Is(err, ErrDuplicateDay) {
		t.Errorf("expected ErrDuplicateDay, got %v", err)
	}

	unsorted := append([]domain.DailyPrice{rows[5]}, rows...)
	if _, err := Aggregate("A", spec, unsorted, periods); !errors.Is(err, ErrUnsortedRows) {
		t.Errorf("expected ErrUnsortedRows, got %v", err)
	}
}

func TestAggregate_EmptyInputs(t *testing.T) {
	spec := rolling10D()
	bars, err := Aggregate("A", spec, nil, nil)
	if err != nil || bars != nil {
		t.Fatalf("empty feed: bars=%v err=%v", bars, err)
	}
}
