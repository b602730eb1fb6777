package ema

import (
	"errors"
	"math"
	"testing"

	"timeframe-lab/internal/domain"
)

// fixture returns the 40-day linear series starting 2020-01-10 with closes
// 100..139, plus its four closed 10-day bars.
func fixture() ([]domain.DailyPrice, []domain.Bar) {
	start := day(2020, 1, 10)
	rows := make([]domain.DailyPrice, 0, 40)
	for i := 0; i < 40; i++ {
		rows = append(rows, domain.DailyPrice{
			AssetID: "A",
			Day:     start.AddDate(0, 0, i),
			Close:   100 + float64(i),
		})
	}
	return rows, closedBars(109, 119, 129, 139)
}

func alpha10D(t *testing.T, period int) domain.AlphaEntry {
	t.Helper()
	entry, err := domain.NewAlphaEntry("10D", period, 10)
	if err != nil {
		t.Fatalf("NewAlphaEntry failed: %v", err)
	}
	return entry
}

func ptrEqual(a, b *float64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || math.Abs(*a-*b) < 1e-9
}

func TestBuildRows_RollMarksCloseDays(t *testing.T) {
	rows, bars := fixture()
	out, _, err := BuildRows("A", "10D", rows, bars, 2, alpha10D(t, 2), domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("BuildRows failed: %v", err)
	}
	if len(out) != 40 {
		t.Fatalf("expected one row per day, got %d", len(out))
	}

	closes := map[string]bool{
		"2020-01-19": true, "2020-01-29": true, "2020-02-08": true, "2020-02-18": true,
	}
	for _, r := range out {
		isClose := closes[r.Day.Format("2006-01-02")]
		if r.Roll == isClose {
			t.Errorf("%s: roll = %v, close day = %v", r.Day.Format("2006-01-02"), r.Roll, isClose)
		}
		if r.RollBar != (r.EmaBar == nil) {
			t.Errorf("%s: roll_bar = %v with ema_bar = %v", r.Day.Format("2006-01-02"), r.RollBar, r.EmaBar)
		}
	}
}

func TestBuildRows_BarFamilySeedAndRecursion(t *testing.T) {
	rows, bars := fixture()
	out, _, err := BuildRows("A", "10D", rows, bars, 2, alpha10D(t, 2), domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("BuildRows failed: %v", err)
	}

	byDay := make(map[string]domain.EmaRow, len(out))
	for _, r := range out {
		byDay[r.Day.Format("2006-01-02")] = r
	}

	if r := byDay["2020-01-19"]; r.EmaBar != nil {
		t.Errorf("first close: ema_bar = %v, want null during warm-up", *r.EmaBar)
	}
	if r := byDay["2020-01-29"]; r.EmaBar == nil || math.Abs(*r.EmaBar-114) > 1e-9 {
		t.Errorf("second close: ema_bar = %v, want SMA seed 114", r.EmaBar)
	}
	want3 := 2.0/3.0*129 + 1.0/3.0*114
	if r := byDay["2020-02-08"]; r.EmaBar == nil || math.Abs(*r.EmaBar-want3) > 1e-9 {
		t.Errorf("third close: ema_bar = %v, want %v", r.EmaBar, want3)
	}

	// Closing-only differences over the bar family.
	if r := byDay["2020-01-29"]; r.D1Bar != nil {
		t.Errorf("d1_bar at the seed = %v, want null", *r.D1Bar)
	}
	if r := byDay["2020-02-08"]; r.D1Bar == nil || math.Abs(*r.D1Bar-(want3-114)) > 1e-9 {
		t.Errorf("d1_bar at third close = %v, want %v", r.D1Bar, want3-114)
	}
}

func TestBuildRows_ContinuousSeedDriftSnap(t *testing.T) {
	rows, bars := fixture()
	entry := alpha10D(t, 2)
	out, _, err := BuildRows("A", "10D", rows, bars, 2, entry, domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("BuildRows failed: %v", err)
	}

	alpha := entry.AlphaBar
	if out[0].Ema != 100 {
		t.Errorf("day 1 seeds from the first close: ema = %v, want 100", out[0].Ema)
	}
	if want := 100 + alpha*(101-100); math.Abs(out[1].Ema-want) > 1e-9 {
		t.Errorf("day 2 drift: ema = %v, want %v", out[1].Ema, want)
	}

	// Replay the drift by hand to the second close and check the snap.
	state := 100.0
	for i := 1; i < 40; i++ {
		state += alpha * (rows[i].Close - state)
		d := rows[i].Day.Format("2006-01-02")
		switch d {
		case "2020-01-19":
			// Bar family still warming up: no snap.
			if math.Abs(out[i].Ema-state) > 1e-9 {
				t.Errorf("first close: ema = %v, want pure drift %v", out[i].Ema, state)
			}
		case "2020-01-29":
			if math.Abs(out[i].Ema-114) > 1e-9 {
				t.Errorf("second close: ema = %v, want snap to 114", out[i].Ema)
			}
			state = 114
		case "2020-02-08", "2020-02-18":
			if out[i].EmaBar == nil {
				t.Fatalf("%s: missing ema_bar", d)
			}
			if math.Abs(out[i].Ema-*out[i].EmaBar) > 1e-9 {
				t.Errorf("%s: ema = %v, want snap to %v", d, out[i].Ema, *out[i].EmaBar)
			}
			state = *out[i].EmaBar
		default:
			if math.Abs(out[i].Ema-state) > 1e-9 {
				t.Errorf("%s: ema = %v, want drift %v", d, out[i].Ema, state)
			}
		}
	}
}

func TestBuildRows_DiffConventions(t *testing.T) {
	rows, bars := fixture()
	out, _, err := BuildRows("A", "10D", rows, bars, 2, alpha10D(t, 2), domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("BuildRows failed: %v", err)
	}

	// Forward-filled continuous chain: defined from day 2 onward.
	if out[0].D1Roll != nil {
		t.Error("d1_roll on day 1 must be null")
	}
	if out[1].D1Roll == nil || out[1].D2Roll != nil {
		t.Error("day 2 must have d1_roll and no d2_roll")
	}
	if out[2].D2Roll == nil {
		t.Error("day 3 must have d2_roll")
	}

	// Closing-only continuous chain: only set on close days, differencing
	// consecutive close values.
	var closeVals []float64
	for _, r := range out {
		if r.Roll {
			if r.D1 != nil || r.D2 != nil {
				t.Errorf("%s: closing-only diffs set on a roll day", r.Day.Format("2006-01-02"))
			}
			continue
		}
		closeVals = append(closeVals, r.Ema)
		switch len(closeVals) {
		case 1:
			if r.D1 != nil {
				t.Error("first close must have null d1")
			}
		case 2:
			want := closeVals[1] - closeVals[0]
			if r.D1 == nil || math.Abs(*r.D1-want) > 1e-9 {
				t.Errorf("second close d1 = %v, want %v", r.D1, want)
			}
			if r.D2 != nil {
				t.Error("second close must have null d2")
			}
		default:
			n := len(closeVals)
			want := closeVals[n-1] - closeVals[n-2]
			if r.D1 == nil || math.Abs(*r.D1-want) > 1e-9 {
				t.Errorf("close %d d1 = %v, want %v", n, r.D1, want)
			}
		}
	}

	// Forward-filled bar chain: null until the bar family has a value,
	// zero while the fill is flat between closes.
	byDay := make(map[string]domain.EmaRow, len(out))
	for _, r := range out {
		byDay[r.Day.Format("2006-01-02")] = r
	}
	if r := byDay["2020-01-28"]; r.D1RollBar != nil {
		t.Error("d1_roll_bar must be null before the bar family seeds")
	}
	if r := byDay["2020-01-29"]; r.D1RollBar != nil {
		t.Error("d1_roll_bar at the seed must be null (no prior fill value)")
	}
	if r := byDay["2020-01-30"]; r.D1RollBar == nil || *r.D1RollBar != 0 {
		t.Errorf("d1_roll_bar the day after the seed = %v, want 0 (flat fill)", r.D1RollBar)
	}
	if r := byDay["2020-02-08"]; r.D1RollBar == nil || *r.D1RollBar == 0 {
		t.Errorf("d1_roll_bar at the third close = %v, want the bar step", r.D1RollBar)
	}
}

func TestBuildRows_FillCarriesOnlyPastValues(t *testing.T) {
	rows, bars := fixture()
	entry := alpha10D(t, 2)

	out, _, err := BuildRows("A", "10D", rows, bars, 2, entry, domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("BuildRows failed: %v", err)
	}

	// No fill can exist before the seed close: every day up to and
	// including 2020-01-29 must leave the forward-filled bar chain null.
	seedClose := day(2020, 1, 29)
	for _, r := range out {
		if r.Day.After(seedClose) {
			break
		}
		if r.D1RollBar != nil || r.D2RollBar != nil {
			t.Errorf("%s: forward-filled bar diffs set before any fill exists (d1=%v d2=%v)",
				r.Day.Format("2006-01-02"), r.D1RollBar, r.D2RollBar)
		}
	}

	// A resumed run holds the checkpointed value across the tail's first
	// days, so the chain continues flat until the next close prints.
	_, resume, err := BuildRows("A", "10D", rows[:25], bars[:2], 2, entry, domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("head BuildRows failed: %v", err)
	}
	tail, _, err := BuildRows("A", "10D", rows[25:], bars[2:], 2, entry, domain.AlphaModeBar, resume)
	if err != nil {
		t.Fatalf("tail BuildRows failed: %v", err)
	}
	if r := tail[0]; r.D1RollBar == nil || *r.D1RollBar != 0 {
		t.Errorf("first resumed day d1_roll_bar = %v, want 0 (fill held at the checkpointed value)", r.D1RollBar)
	}
}

func TestBuildRows_ResumeMatchesFullComputation(t *testing.T) {
	rows, bars := fixture()
	entry := alpha10D(t, 2)

	full, _, err := BuildRows("A", "10D", rows, bars, 2, entry, domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("full BuildRows failed: %v", err)
	}

	// Split after day 25 (2020-02-03): bars 1-2 are closed in the head.
	head, resume, err := BuildRows("A", "10D", rows[:25], bars[:2], 2, entry, domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("head BuildRows failed: %v", err)
	}
	tail, _, err := BuildRows("A", "10D", rows[25:], bars[2:], 2, entry, domain.AlphaModeBar, resume)
	if err != nil {
		t.Fatalf("tail BuildRows failed: %v", err)
	}

	combined := append(append([]domain.EmaRow{}, head...), tail...)
	if len(combined) != len(full) {
		t.Fatalf("row count %d != %d", len(combined), len(full))
	}
	for i := range full {
		a, b := full[i], combined[i]
		if !a.Day.Equal(b.Day) || a.Roll != b.Roll || a.RollBar != b.RollBar {
			t.Fatalf("row %d flags differ: %+v vs %+v", i, a, b)
		}
		if math.Abs(a.Ema-b.Ema) > 1e-9 {
			t.Errorf("row %d ema %v != %v", i, a.Ema, b.Ema)
		}
		pairs := [][2]*float64{
			{a.D1, b.D1}, {a.D2, b.D2},
			{a.D1Roll, b.D1Roll}, {a.D2Roll, b.D2Roll},
			{a.EmaBar, b.EmaBar}, {a.D1Bar, b.D1Bar}, {a.D2Bar, b.D2Bar},
			{a.D1RollBar, b.D1RollBar}, {a.D2RollBar, b.D2RollBar},
		}
		for j, p := range pairs {
			if !ptrEqual(p[0], p[1]) {
				t.Errorf("row %d field %d: %v != %v", i, j, p[0], p[1])
			}
		}
	}
}

func TestBuildRows_ResumeGapRejected(t *testing.T) {
	rows, bars := fixture()
	entry := alpha10D(t, 2)

	_, resume, err := BuildRows("A", "10D", rows[:25], bars[:2], 2, entry, domain.AlphaModeBar, nil)
	if err != nil {
		t.Fatalf("head BuildRows failed: %v", err)
	}

	// Skip bar 3: the tail no longer continues the checkpoint.
	_, _, err = BuildRows("A", "10D", rows[25:], bars[3:], 2, entry, domain.AlphaModeBar, resume)
	if !errors.Is(err, ErrResumeGap) {
		t.Fatalf("expected ErrResumeGap, got %v", err)
	}
}

func TestBuildRows_DailyEquivalentMode(t *testing.T) {
	rows, bars := fixture()
	entry := alpha10D(t, 2)

	out, _, err := BuildRows("A", "10D", rows, bars, 2, entry, domain.AlphaModeDailyEquivalent, nil)
	if err != nil {
		t.Fatalf("BuildRows failed: %v", err)
	}

	// The drift uses the daily-equivalent constant; the snap is unchanged.
	if want := 100 + entry.AlphaDailyEquivalent*(101-100); math.Abs(out[1].Ema-want) > 1e-9 {
		t.Errorf("day 2 drift = %v, want %v", out[1].Ema, want)
	}
	var secondClose *domain.EmaRow
	for i := range out {
		if out[i].Day.Equal(day(2020, 1, 29)) {
			secondClose = &out[i]
		}
	}
	if secondClose == nil || math.Abs(secondClose.Ema-114) > 1e-9 {
		t.Errorf("snap at the second close must hold in both modes: %+v", secondClose)
	}
}

func TestBuildRows_InvalidPeriod(t *testing.T) {
	rows, bars := fixture()
	if _, _, err := BuildRows("A", "10D", rows, bars, 0, domain.AlphaEntry{}, domain.AlphaModeBar, nil); err == nil {
		t.Fatal("expected error for period 0")
	}
}
