package domain

import "time"

// Bar represents one aggregated OHLCV window for an (asset, timeframe).
// Corresponds to bars table in PostgreSQL. BarSequence is strictly
// increasing and gapless within an (asset, timeframe). A bar is immutable
// once PartialEnd is false; a partial-end bar may be recomputed until its
// window closes.
type Bar struct {
	AssetID        string
	TimeframeLabel string
	BarSequence    int // 1-based, gapless

	TimeOpen  time.Time // first day covered by the window
	TimeClose time.Time // last day with data at or before the boundary
	TimeHigh  time.Time // day the high printed
	TimeLow   time.Time // day the low printed

	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64 // point-in-time snapshot from the last day, not summed
	MarketCap float64 // point-in-time snapshot from the last day, not summed

	PartialStart bool // window opens after its ideal start
	PartialEnd   bool // window closes before its ideal end
	MissingDays  bool // any gap in the expected daily cadence

	MissingDaysTotal    int
	MissingDaysStart    int
	MissingDaysEnd      int
	MissingDaysInterior int

	// BarAnchorOffset is set on the first CALENDAR_ANCHOR bar only: the
	// count of nominal-period days preceding the asset's first price.
	BarAnchorOffset *int
}
