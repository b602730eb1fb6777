package domain

import "time"

// DailyPrice represents one calendar day of OHLCV data for an asset.
// Corresponds to daily_prices table in PostgreSQL. Supplied by the
// ingestion collaborator; read-only to this engine.
type DailyPrice struct {
	AssetID   string    // asset identifier
	Day       time.Time // calendar day, UTC midnight
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	MarketCap float64
}

// DayUTC normalizes t to UTC midnight. All calendar arithmetic in the
// engine operates on normalized days.
func DayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayUTC(a).Equal(DayUTC(b))
}

// DaysBetween returns the number of whole calendar days from a to b.
// Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(DayUTC(b).Sub(DayUTC(a)) / (24 * time.Hour))
}
