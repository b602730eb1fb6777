package domain

import "fmt"

// CalendarPolicy determines how bar boundaries relate to the calendar.
type CalendarPolicy string

const (
	// PolicyRolling anchors boundaries to the asset's first observed day,
	// spaced exactly NominalDays apart.
	PolicyRolling CalendarPolicy = "ROLLING"

	// PolicyCalendarStrict uses true calendar period ends and drops any
	// partially covered leading period.
	PolicyCalendarStrict CalendarPolicy = "CALENDAR_STRICT"

	// PolicyCalendarAnchor uses the same calendar period ends but keeps
	// the partially covered first period as bar #1.
	PolicyCalendarAnchor CalendarPolicy = "CALENDAR_ANCHOR"
)

// IsValid checks if the policy is a valid value.
func (p CalendarPolicy) IsValid() bool {
	return p == PolicyRolling || p == PolicyCalendarStrict || p == PolicyCalendarAnchor
}

// CalendarConvention selects week/quarter numbering for calendar policies.
type CalendarConvention string

const (
	ConventionISO  CalendarConvention = "ISO"  // Monday-start weeks, Sunday end
	ConventionUS   CalendarConvention = "US"   // Sunday-start weeks, Saturday end
	ConventionNone CalendarConvention = "NONE" // rolling timeframes only
)

// IsValid checks if the convention is a valid value.
func (c CalendarConvention) IsValid() bool {
	return c == ConventionISO || c == ConventionUS || c == ConventionNone
}

// BaseUnit is the calendar unit a timeframe is built from.
type BaseUnit string

const (
	UnitDay   BaseUnit = "day"
	UnitWeek  BaseUnit = "week"
	UnitMonth BaseUnit = "month"
)

// IsValid checks if the unit is a valid value.
func (u BaseUnit) IsValid() bool {
	return u == UnitDay || u == UnitWeek || u == UnitMonth
}

// TimeframeSpec describes one timeframe of the timeframe dimension.
// Corresponds to timeframes table in PostgreSQL. Immutable reference data.
type TimeframeSpec struct {
	Label       string // PRIMARY KEY, e.g. "10D", "1W", "3M", "1Y"
	NominalDays int    // nominal window length in days
	BaseUnit    BaseUnit
	Quantity    int // number of base units per bar
	Policy      CalendarPolicy
	Convention  CalendarConvention
}

// nominalDaysFor returns the conventional day count for (unit, quantity).
// Month multiples use the charting conventions: 1M=30, 3M=91, 6M=182, 12M=365.
func nominalDaysFor(unit BaseUnit, quantity int) int {
	switch unit {
	case UnitDay:
		return quantity
	case UnitWeek:
		return quantity * 7
	case UnitMonth:
		switch quantity {
		case 3:
			return 91
		case 6:
			return 182
		case 12:
			return 365
		default:
			return quantity * 30
		}
	}
	return 0
}

// NewTimeframeSpec builds a spec with the conventional nominal day count
// for its base unit and quantity.
func NewTimeframeSpec(label string, unit BaseUnit, quantity int, policy CalendarPolicy, convention CalendarConvention) TimeframeSpec {
	return TimeframeSpec{
		Label:       label,
		NominalDays: nominalDaysFor(unit, quantity),
		BaseUnit:    unit,
		Quantity:    quantity,
		Policy:      policy,
		Convention:  convention,
	}
}

// StandardTimeframes is the default timeframe catalog seeded into the
// dimension. Rolling timeframes carry no calendar convention; calendar
// timeframes default to ISO with a strict first bar.
func StandardTimeframes() []TimeframeSpec {
	return []TimeframeSpec{
		NewTimeframeSpec("10D", UnitDay, 10, PolicyRolling, ConventionNone),
		NewTimeframeSpec("21D", UnitDay, 21, PolicyRolling, ConventionNone),
		NewTimeframeSpec("1W", UnitWeek, 1, PolicyCalendarStrict, ConventionISO),
		NewTimeframeSpec("2W", UnitWeek, 2, PolicyCalendarStrict, ConventionISO),
		NewTimeframeSpec("1M", UnitMonth, 1, PolicyCalendarStrict, ConventionISO),
		NewTimeframeSpec("3M", UnitMonth, 3, PolicyCalendarStrict, ConventionISO),
		NewTimeframeSpec("6M", UnitMonth, 6, PolicyCalendarStrict, ConventionISO),
		NewTimeframeSpec("1Y", UnitMonth, 12, PolicyCalendarAnchor, ConventionISO),
	}
}

// Validate checks internal consistency of the spec.
func (s TimeframeSpec) Validate() error {
	if s.Label == "" {
		return fmt.Errorf("timeframe spec: empty label")
	}
	if !s.BaseUnit.IsValid() {
		return fmt.Errorf("timeframe %s: invalid base unit %q", s.Label, s.BaseUnit)
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("timeframe %s: quantity must be positive, got %d", s.Label, s.Quantity)
	}
	if !s.Policy.IsValid() {
		return fmt.Errorf("timeframe %s: invalid calendar policy %q", s.Label, s.Policy)
	}
	if !s.Convention.IsValid() {
		return fmt.Errorf("timeframe %s: invalid calendar convention %q", s.Label, s.Convention)
	}
	if s.Policy != PolicyRolling && s.Convention == ConventionNone {
		return fmt.Errorf("timeframe %s: calendar policy %s requires ISO or US convention", s.Label, s.Policy)
	}
	if want := nominalDaysFor(s.BaseUnit, s.Quantity); s.NominalDays != want {
		return fmt.Errorf("timeframe %s: nominal_days %d inconsistent with %d %s (want %d)",
			s.Label, s.NominalDays, s.Quantity, s.BaseUnit, want)
	}
	return nil
}
