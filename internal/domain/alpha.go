package domain

import (
	"fmt"
	"math"
)

// AlphaEntry holds the smoothing constants for one (timeframe, period).
// Corresponds to alpha_entries table in PostgreSQL.
//
// AlphaBar is the standard 2/(period+1) bar-space constant.
// AlphaDailyEquivalent solves (1-ad)^nominal_days = 1-alpha_bar so that
// nominal_days daily steps carry the same decay as one bar step.
type AlphaEntry struct {
	TimeframeLabel       string
	Period               int
	AlphaBar             float64
	AlphaDailyEquivalent float64
	EffectiveDays        int // nominal_days * period
}

// NewAlphaEntry derives the smoothing constants for a timeframe/period pair.
func NewAlphaEntry(label string, period, nominalDays int) (AlphaEntry, error) {
	if period < 1 {
		return AlphaEntry{}, fmt.Errorf("alpha entry %s: period must be >= 1, got %d", label, period)
	}
	if nominalDays < 1 {
		return AlphaEntry{}, fmt.Errorf("alpha entry %s: nominal days must be >= 1, got %d", label, nominalDays)
	}

	alphaBar := 2.0 / float64(period+1)
	alphaDaily := 1.0 - math.Pow(1.0-alphaBar, 1.0/float64(nominalDays))

	return AlphaEntry{
		TimeframeLabel:       label,
		Period:               period,
		AlphaBar:             alphaBar,
		AlphaDailyEquivalent: alphaDaily,
		EffectiveDays:        nominalDays * period,
	}, nil
}

// Alpha returns the intrabar smoothing constant for the given mode.
func (e AlphaEntry) Alpha(mode AlphaMode) float64 {
	if mode == AlphaModeDailyEquivalent {
		return e.AlphaDailyEquivalent
	}
	return e.AlphaBar
}
