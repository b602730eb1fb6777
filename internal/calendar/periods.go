package calendar

import (
	"time"

	"timeframe-lab/internal/domain"
)

// Period is one ideal aggregation window. Start and End are inclusive
// UTC-midnight days. End is the canonical bar boundary.
type Period struct {
	Start time.Time
	End   time.Time
}

// Days returns the nominal length of the period in days.
func (p Period) Days() int {
	return domain.DaysBetween(p.Start, p.End) + 1
}

// Contains reports whether day falls inside the period.
func (p Period) Contains(day time.Time) bool {
	d := domain.DayUTC(day)
	return !d.Before(p.Start) && !d.After(p.End)
}

// weekStart returns the first day of the week containing d.
// ISO weeks start Monday; US weeks start Sunday.
func weekStart(d time.Time, conv domain.CalendarConvention) time.Time {
	d = domain.DayUTC(d)
	wd := int(d.Weekday()) // Sunday=0
	var back int
	if conv == domain.ConventionUS {
		back = wd
	} else {
		back = (wd + 6) % 7
	}
	return d.AddDate(0, 0, -back)
}

// monthGroupStart returns the first day of the q-month group containing d.
// Groups are anchored to January: quarters are Jan/Apr/Jul/Oct, half-years
// Jan/Jul, years Jan.
func monthGroupStart(d time.Time, q int) time.Time {
	d = domain.DayUTC(d)
	m := int(d.Month()) - 1 // 0-based
	start := (m / q) * q
	return time.Date(d.Year(), time.Month(start+1), 1, 0, 0, 0, 0, time.UTC)
}

// monthPeriod returns the q-month period starting at start (which must be
// the first of a month).
func monthPeriod(start time.Time, q int) Period {
	end := start.AddDate(0, q, -1) // last day of the final month
	return Period{Start: start, End: end}
}

// weekPeriod returns the q-week period starting at start (a week start).
func weekPeriod(start time.Time, q int) Period {
	return Period{Start: start, End: start.AddDate(0, 0, 7*q-1)}
}

// dayPeriod returns the q-day period starting at start.
func dayPeriod(start time.Time, q int) Period {
	return Period{Start: start, End: start.AddDate(0, 0, q-1)}
}

// periodContaining returns the calendar period of the spec that contains d.
func periodContaining(spec domain.TimeframeSpec, d time.Time, origin time.Time) Period {
	switch spec.BaseUnit {
	case domain.UnitWeek:
		// Align multi-week periods to whole weeks counted from the week
		// containing the origin day.
		ws := weekStart(origin, spec.Convention)
		weeks := domain.DaysBetween(ws, weekStart(d, spec.Convention)) / 7
		groupStart := ws.AddDate(0, 0, (weeks/spec.Quantity)*spec.Quantity*7)
		return weekPeriod(groupStart, spec.Quantity)
	case domain.UnitMonth:
		return monthPeriod(monthGroupStart(d, spec.Quantity), spec.Quantity)
	default:
		// Day-based calendar periods chain from the origin day.
		days := domain.DaysBetween(origin, d)
		groupStart := domain.DayUTC(origin).AddDate(0, 0, (days/spec.Quantity)*spec.Quantity)
		return dayPeriod(groupStart, spec.Quantity)
	}
}

// nextPeriod returns the calendar period immediately following p.
func nextPeriod(spec domain.TimeframeSpec, p Period) Period {
	start := p.End.AddDate(0, 0, 1)
	switch spec.BaseUnit {
	case domain.UnitWeek:
		return weekPeriod(start, spec.Quantity)
	case domain.UnitMonth:
		return monthPeriod(start, spec.Quantity)
	default:
		return dayPeriod(start, spec.Quantity)
	}
}
