// Package ema computes the two EMA families over timeframe bars: the
// bar-space family seeded by an N-bar simple average, and the continuous
// family that drifts daily and snaps to the bar-space value on closes.
package ema

import (
	"errors"
	"fmt"
	"time"

	"timeframe-lab/internal/domain"
)

// ErrBarSequence is returned when the bar list is not gapless ascending.
var ErrBarSequence = errors.New("ema: bar sequence not gapless ascending")

// BarSpaceEMA is the bar-space recursion state. O(1) per bar.
//
// The first period-1 bars produce no value. The period-th bar seeds the
// recursion with the simple average of the first period closes; a
// recursive warm-up would converge earlier and produce systematically
// different values, so it is not used. From bar period+1 onward the
// standard recursion applies.
type BarSpaceEMA struct {
	period  int
	alpha   float64
	count   int
	sum     float64
	current float64
}

// NewBarSpaceEMA creates a bar-space EMA with the given period and
// bar-space smoothing constant.
func NewBarSpaceEMA(period int, alpha float64) *BarSpaceEMA {
	return &BarSpaceEMA{period: period, alpha: alpha}
}

// Update folds one bar close into the recursion. ok is false during the
// SMA warm-up, before the period-th bar.
func (e *BarSpaceEMA) Update(close float64) (value float64, ok bool) {
	e.count++

	if e.count < e.period {
		e.sum += close
		return 0, false
	}
	if e.count == e.period {
		e.sum += close
		e.current = e.sum / float64(e.period)
		return e.current, true
	}

	e.current = e.alpha*close + (1-e.alpha)*e.current
	return e.current, true
}

// Ready reports whether the seed has been produced.
func (e *BarSpaceEMA) Ready() bool { return e.count >= e.period }

// Value returns the current EMA. Meaningless before Ready.
func (e *BarSpaceEMA) Value() float64 { return e.current }

// Snapshot returns the recursion state for checkpoint persistence.
func (e *BarSpaceEMA) Snapshot() (count int, sum, current float64) {
	return e.count, e.sum, e.current
}

// Restore resets the recursion state from a checkpoint.
func (e *BarSpaceEMA) Restore(count int, sum, current float64) {
	e.count = count
	e.sum = sum
	e.current = current
}

// BarPoint is the sparse bar-space EMA value at one bar close.
type BarPoint struct {
	BarSequence int
	Day         time.Time // canonical close day
	Value       float64
}

// ComputeBarSpace runs the bar-space recursion over closed bars and
// returns the sparse value series. Bars must be gapless ascending by
// sequence; partial-end (still open) bars must not be passed.
func ComputeBarSpace(bars []domain.Bar, period int, alphaBar float64) ([]BarPoint, error) {
	if err := validateBars(bars); err != nil {
		return nil, err
	}

	eng := NewBarSpaceEMA(period, alphaBar)
	var points []BarPoint
	for _, b := range bars {
		v, ok := eng.Update(b.Close)
		if !ok {
			continue
		}
		points = append(points, BarPoint{
			BarSequence: b.BarSequence,
			Day:         b.TimeClose,
			Value:       v,
		})
	}
	return points, nil
}

func validateBars(bars []domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].BarSequence != bars[i-1].BarSequence+1 {
			return fmt.Errorf("bar %d follows bar %d: %w",
				bars[i].BarSequence, bars[i-1].BarSequence, ErrBarSequence)
		}
	}
	return nil
}
