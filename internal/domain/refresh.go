package domain

import (
	"fmt"
	"time"
)

// RefreshState is the minimal checkpoint enabling incremental continuation
// of one EMA recursion. Corresponds to refresh_state table in PostgreSQL.
// Read before an incremental run, written after.
type RefreshState struct {
	AssetID        string
	TimeframeLabel string
	Period         int
	Variant        EmaVariant

	LastSeedDay     time.Time // day of the last persisted EMA value
	LastSeedValue   float64   // EMA value to resume from
	LastBarSequence int       // last bar folded into the recursion

	// Warm-up accumulator for the bar-space family so a run interrupted
	// before the period-th bar resumes the SMA seed correctly.
	WarmupCount int
	WarmupSum   float64

	// Difference-chain anchors. The closing-only chain (d1/d2) and the
	// forward-filled chain (d1_roll/d2_roll) each need their previous
	// value and previous first difference to continue without reloading
	// history. Nil until the chain has produced one value.
	PrevCloseValue *float64
	PrevCloseD1    *float64
	PrevFillValue  *float64
	PrevFillD1     *float64
}

// UnitKey identifies one independently computable work unit.
type UnitKey struct {
	AssetID        string
	TimeframeLabel string
	Period         int
}

// String returns the canonical unit identifier used in logs and reports.
func (k UnitKey) String() string {
	return fmt.Sprintf("%s/%s/p%d", k.AssetID, k.TimeframeLabel, k.Period)
}

// UnitStatus is the per-unit outcome of a controller run.
type UnitStatus string

const (
	UnitSuccess UnitStatus = "success"
	UnitSkipped UnitStatus = "skipped" // configuration missing for the unit
	UnitFailed  UnitStatus = "failed"  // data-integrity or persistence error
)

// UnitResult reports the outcome of one work unit.
type UnitResult struct {
	Key       UnitKey
	Status    UnitStatus
	BarCount  int    // bars written
	RowCount  int    // EMA rows written
	DriftWarn bool   // incremental values drifted beyond tolerance
	Detail    string // error or skip reason, empty on clean success
}
