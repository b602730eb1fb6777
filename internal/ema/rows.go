package ema

import (
	"errors"
	"fmt"

	"timeframe-lab/internal/domain"
)

// ErrResumeGap is returned when the bars handed to a resumed run do not
// continue directly after the checkpointed bar sequence.
var ErrResumeGap = errors.New("ema: bars do not continue from checkpoint")

// Resume carries the full recursion state of both families across
// incremental runs. A nil Resume means a fresh computation.
type Resume struct {
	ContinuousValue  float64
	ContinuousSeeded bool

	BarCount   int
	BarSum     float64
	BarCurrent float64

	LastBarSequence int

	ContClose DiffChain // continuous closing-only d1/d2
	ContFill  DiffChain // continuous daily d1_roll/d2_roll
	BarClose  DiffChain // bar-space closing-only d1_bar/d2_bar
	BarFill   DiffChain // bar-space forward-filled d1_roll_bar/d2_roll_bar
}

// DiffChain carries first- and second-difference anchors across steps.
type DiffChain struct {
	Prev   *float64
	PrevD1 *float64
}

// next folds value v into the chain and returns the first and second
// differences, nil while the chain lacks history.
func (c *DiffChain) next(v float64) (d1, d2 *float64) {
	if c.Prev != nil {
		d := v - *c.Prev
		d1 = &d
		if c.PrevD1 != nil {
			dd := d - *c.PrevD1
			d2 = &dd
		}
		c.PrevD1 = d1
	}
	val := v
	c.Prev = &val
	return d1, d2
}

// BuildRows computes both EMA families over the daily rows and closed bars
// of one (asset, timeframe, period) unit and returns one EmaRow per day,
// in day order, plus the updated recursion state for checkpointing.
//
// rows must be sorted ascending with no duplicates (the bar aggregator
// validates the same feed). bars must be closed (not partial-end) and
// gapless ascending; under a resume they must continue directly after
// resume.LastBarSequence, and rows must start after the checkpointed day.
func BuildRows(assetID, timeframeLabel string, rows []domain.DailyPrice, bars []domain.Bar, period int, entry domain.AlphaEntry, mode domain.AlphaMode, resume *Resume) ([]domain.EmaRow, *Resume, error) {
	if period < 1 {
		return nil, nil, fmt.Errorf("ema: period must be >= 1, got %d", period)
	}
	if err := validateBars(bars); err != nil {
		return nil, nil, err
	}

	state := Resume{}
	if resume != nil {
		state = *resume
		if len(bars) > 0 && bars[0].BarSequence != state.LastBarSequence+1 {
			return nil, nil, fmt.Errorf("bar %d after checkpoint %d: %w",
				bars[0].BarSequence, state.LastBarSequence, ErrResumeGap)
		}
	}

	// Bar-space recursion over the closed bars. closeValues tracks every
	// canonical close day in range; the value stays nil during warm-up.
	eng := NewBarSpaceEMA(period, entry.AlphaBar)
	eng.Restore(state.BarCount, state.BarSum, state.BarCurrent)

	// Forward-fill cache for the bar-space family: last known value,
	// updated only on canonical closes, read on every day. Must be
	// captured before the new bars are folded in: nil on a fresh run or
	// an un-warmed checkpoint, the checkpointed value when resuming a
	// ready engine. Values from bars in range reach the cache through
	// the daily loop's close-day update, never earlier.
	var lastFill *float64
	if eng.Ready() {
		v := eng.Value()
		lastFill = &v
	}

	closeValues := make(map[int64]*float64, len(bars))
	for _, b := range bars {
		v, ok := eng.Update(b.Close)
		key := domain.DayUTC(b.TimeClose).Unix()
		if ok {
			val := v
			closeValues[key] = &val
		} else {
			closeValues[key] = nil
		}
		state.LastBarSequence = b.BarSequence
	}
	state.BarCount, state.BarSum, state.BarCurrent = eng.Snapshot()

	cont := contState{value: state.ContinuousValue, seeded: state.ContinuousSeeded}
	alpha := entry.Alpha(mode)

	out := make([]domain.EmaRow, 0, len(rows))
	for _, r := range rows {
		day := domain.DayUTC(r.Day)
		key := day.Unix()
		barValue, isClose := closeValues[key]

		kind := betweenBars
		if isClose {
			kind = atClose
		}
		var v float64
		cont, v = contStep(cont, kind, r.Close, barValue, alpha)

		row := domain.EmaRow{
			AssetID:        assetID,
			TimeframeLabel: timeframeLabel,
			Period:         period,
			Day:            day,
			Ema:            v,
			Roll:           !isClose,
			RollBar:        true,
		}

		row.D1Roll, row.D2Roll = state.ContFill.next(v)
		if isClose {
			row.D1, row.D2 = state.ContClose.next(v)
		}

		if isClose && barValue != nil {
			bv := *barValue
			row.EmaBar = &bv
			row.RollBar = false
			row.D1Bar, row.D2Bar = state.BarClose.next(bv)
			fill := bv
			lastFill = &fill
		}
		if lastFill != nil {
			row.D1RollBar, row.D2RollBar = state.BarFill.next(*lastFill)
		}

		out = append(out, row)
	}

	state.ContinuousValue = cont.value
	state.ContinuousSeeded = cont.seeded
	return out, &state, nil
}
