// Package calendar enumerates bar boundary periods for a timeframe under
// the three calendar policies (rolling, calendar-strict, calendar-anchor)
// and the ISO/US conventions.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"timeframe-lab/internal/domain"
)

// ErrInvalidRange is returned when lastDay precedes firstDay.
var ErrInvalidRange = errors.New("calendar: last day precedes first day")

// Resolve enumerates the ideal aggregation windows for spec over the
// observed day range [firstDay, lastDay], in increasing order. A window is
// only emitted once its End is at or before lastDay; the in-progress tail
// period is never included (see CurrentPeriod).
//
// ROLLING windows are spaced exactly NominalDays apart from firstDay.
// CALENDAR_STRICT drops a partially covered leading period;
// CALENDAR_ANCHOR keeps it.
func Resolve(spec domain.TimeframeSpec, firstDay, lastDay time.Time) ([]Period, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("resolve boundaries: %w", err)
	}

	firstDay = domain.DayUTC(firstDay)
	lastDay = domain.DayUTC(lastDay)
	if lastDay.Before(firstDay) {
		return nil, ErrInvalidRange
	}

	if spec.Policy == domain.PolicyRolling {
		return resolveRolling(spec, firstDay, lastDay), nil
	}
	return resolveCalendar(spec, firstDay, lastDay), nil
}

// resolveRolling emits consecutive NominalDays windows anchored at firstDay.
func resolveRolling(spec domain.TimeframeSpec, firstDay, lastDay time.Time) []Period {
	var periods []Period
	start := firstDay
	for {
		end := start.AddDate(0, 0, spec.NominalDays-1)
		if end.After(lastDay) {
			break
		}
		periods = append(periods, Period{Start: start, End: end})
		start = end.AddDate(0, 0, 1)
	}
	return periods
}

// resolveCalendar emits true calendar periods under the spec's convention.
func resolveCalendar(spec domain.TimeframeSpec, firstDay, lastDay time.Time) []Period {
	first := periodContaining(spec, firstDay, firstDay)

	if spec.Policy == domain.PolicyCalendarStrict && first.Start.Before(firstDay) {
		// Leading period is only partially covered: drop it.
		first = nextPeriod(spec, first)
	}

	var periods []Period
	for p := first; !p.End.After(lastDay); p = nextPeriod(spec, p) {
		periods = append(periods, p)
	}
	return periods
}

// CurrentPeriod returns the in-progress period at lastDay, whose End lies
// beyond the observed range. The caller may append it to the resolved
// windows to aggregate an open (partial-end) bar. ok is false when the
// period would duplicate a resolved window (its End is within range) or
// the range is invalid.
func CurrentPeriod(spec domain.TimeframeSpec, firstDay, lastDay time.Time) (Period, bool) {
	firstDay = domain.DayUTC(firstDay)
	lastDay = domain.DayUTC(lastDay)
	if lastDay.Before(firstDay) || spec.Validate() != nil {
		return Period{}, false
	}

	var p Period
	if spec.Policy == domain.PolicyRolling {
		days := domain.DaysBetween(firstDay, lastDay)
		k := days / spec.NominalDays
		start := firstDay.AddDate(0, 0, k*spec.NominalDays)
		p = Period{Start: start, End: start.AddDate(0, 0, spec.NominalDays-1)}
	} else {
		p = periodContaining(spec, lastDay, firstDay)
		if spec.Policy == domain.PolicyCalendarStrict && p.Start.Before(firstDay) {
			// The partial leading period is dropped under strict, open or
			// not.
			return Period{}, false
		}
	}

	if !p.End.After(lastDay) {
		return Period{}, false
	}
	return p, true
}
