// Package refresh orchestrates incremental and full-recompute runs over
// all (asset, timeframe, period) units and owns the idempotent write
// contract to the persistence stores.
package refresh

import (
	"math"
	"time"

	"timeframe-lab/internal/domain"
)

// maxDivergenceSample bounds the divergences kept in a report; past that
// the counters still accumulate.
const maxDivergenceSample = 20

// FieldDivergence records one stored-vs-recomputed mismatch.
type FieldDivergence struct {
	Day        time.Time
	Field      string
	Stored     *float64
	Recomputed *float64
}

// DriftReport summarizes the comparison of persisted EMA rows against a
// fresh recomputation. Persisted values are derived, disposable artifacts;
// drift beyond tolerance means the incremental path has diverged and the
// recomputed values win.
type DriftReport struct {
	Key           domain.UnitKey
	RowsCompared  int
	DivergentRows int
	MaxAbsDelta   float64
	Divergences   []FieldDivergence // bounded sample
}

// Exceeded reports whether any field diverged beyond tolerance.
func (r *DriftReport) Exceeded() bool {
	return r.DivergentRows > 0
}

// CompareEmaRows compares stored rows against recomputed ones, field by
// field with the given absolute tolerance. Rows are matched by day; days
// present on only one side are ignored (an incremental run legitimately
// appends days the stored set lacks).
func CompareEmaRows(key domain.UnitKey, stored, recomputed []*domain.EmaRow, tolerance float64) *DriftReport {
	report := &DriftReport{Key: key}

	byDay := make(map[int64]*domain.EmaRow, len(stored))
	for _, r := range stored {
		byDay[domain.DayUTC(r.Day).Unix()] = r
	}

	for _, rec := range recomputed {
		st, ok := byDay[domain.DayUTC(rec.Day).Unix()]
		if !ok {
			continue
		}
		report.RowsCompared++

		divergent := false
		ema := st.Ema
		recEma := rec.Ema
		divergent = report.compareField(rec.Day, "ema", &ema, &recEma, tolerance) || divergent
		divergent = report.compareField(rec.Day, "d1", st.D1, rec.D1, tolerance) || divergent
		divergent = report.compareField(rec.Day, "d2", st.D2, rec.D2, tolerance) || divergent
		divergent = report.compareField(rec.Day, "d1_roll", st.D1Roll, rec.D1Roll, tolerance) || divergent
		divergent = report.compareField(rec.Day, "d2_roll", st.D2Roll, rec.D2Roll, tolerance) || divergent
		divergent = report.compareField(rec.Day, "ema_bar", st.EmaBar, rec.EmaBar, tolerance) || divergent
		divergent = report.compareField(rec.Day, "d1_bar", st.D1Bar, rec.D1Bar, tolerance) || divergent
		divergent = report.compareField(rec.Day, "d2_bar", st.D2Bar, rec.D2Bar, tolerance) || divergent
		divergent = report.compareField(rec.Day, "d1_roll_bar", st.D1RollBar, rec.D1RollBar, tolerance) || divergent
		divergent = report.compareField(rec.Day, "d2_roll_bar", st.D2RollBar, rec.D2RollBar, tolerance) || divergent

		if divergent {
			report.DivergentRows++
		}
	}
	return report
}

// compareField records a divergence when the two nullable values differ
// beyond tolerance, or when exactly one side is null.
func (r *DriftReport) compareField(day time.Time, field string, stored, recomputed *float64, tolerance float64) bool {
	if stored == nil && recomputed == nil {
		return false
	}
	if stored != nil && recomputed != nil {
		delta := math.Abs(*stored - *recomputed)
		if delta <= tolerance {
			return false
		}
		if delta > r.MaxAbsDelta {
			r.MaxAbsDelta = delta
		}
	}
	if len(r.Divergences) < maxDivergenceSample {
		r.Divergences = append(r.Divergences, FieldDivergence{
			Day:        domain.DayUTC(day),
			Field:      field,
			Stored:     stored,
			Recomputed: recomputed,
		})
	}
	return true
}
