package domain

import "time"

// EmaVariant distinguishes the two EMA value families sharing an EmaRow.
type EmaVariant string

const (
	// VariantContinuous is updated every day via bar-alpha smoothing.
	VariantContinuous EmaVariant = "continuous"

	// VariantBarSpace is defined only on bar closes, seeded by an N-bar
	// simple average, then held between closes for reporting.
	VariantBarSpace EmaVariant = "bar"
)

// IsValid checks if the variant is a valid value.
func (v EmaVariant) IsValid() bool {
	return v == VariantContinuous || v == VariantBarSpace
}

// AlphaMode selects the smoothing constant the continuous family applies
// between bar closes.
type AlphaMode string

const (
	// AlphaModeBar drifts with the bar-space alpha. Favors visual
	// continuity with the bar-space seed on close days.
	AlphaModeBar AlphaMode = "bar"

	// AlphaModeDailyEquivalent drifts with the daily-equivalent alpha so
	// that NominalDays daily steps decay exactly as one bar step.
	AlphaModeDailyEquivalent AlphaMode = "daily_equivalent"
)

// IsValid checks if the mode is a valid value.
func (m AlphaMode) IsValid() bool {
	return m == AlphaModeBar || m == AlphaModeDailyEquivalent
}

// EmaRow holds both EMA families for one (asset, timeframe, period) on one
// calendar day. Corresponds to ema_rows table in ClickHouse.
//
// Continuous family: Ema is defined on every row. D1/D2 are closing-only
// differences, defined only where Roll is false; D1Roll/D2Roll are the
// same quantity over the forward-filled daily series. Roll is false
// exactly on canonical bar-close days.
//
// Bar-space family: EmaBar/D1Bar/D2Bar are defined only on bar-close rows
// from the period-th close onward; D1RollBar/D2RollBar use the held
// (forward-filled) bar value. RollBar is false iff EmaBar is non-nil.
type EmaRow struct {
	AssetID        string
	TimeframeLabel string
	Period         int
	Day            time.Time

	Ema    float64
	D1     *float64
	D2     *float64
	Roll   bool
	D1Roll *float64
	D2Roll *float64

	EmaBar    *float64
	D1Bar     *float64
	D2Bar     *float64
	RollBar   bool
	D1RollBar *float64
	D2RollBar *float64
}

// Float64Ptr returns a pointer to v. Helper for nullable EMA columns.
func Float64Ptr(v float64) *float64 { return &v }
