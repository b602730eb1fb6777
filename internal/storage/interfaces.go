package storage

import (
	"context"
	"time"

	"timeframe-lab/internal/domain"
)

// DailyPriceStore provides access to daily_prices storage. The ingestion
// collaborator owns writes; the engine reads per asset and range.
type DailyPriceStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch on any
	// duplicate (asset_id, day).
	InsertBulk(ctx context.Context, rows []*domain.DailyPrice) error

	// ListAssets returns all distinct asset IDs, sorted.
	ListAssets(ctx context.Context) ([]string, error)

	// GetByAssetID retrieves all rows for an asset, ordered by day ASC.
	GetByAssetID(ctx context.Context, assetID string) ([]*domain.DailyPrice, error)

	// GetSince retrieves rows for an asset with day strictly after since,
	// ordered by day ASC.
	GetSince(ctx context.Context, assetID string, since time.Time) ([]*domain.DailyPrice, error)

	// DayRange returns the first and last observed day for an asset.
	// Returns ErrNotFound when the asset has no rows.
	DayRange(ctx context.Context, assetID string) (first, last time.Time, err error)
}

// TimeframeStore provides access to the timeframe dimension.
type TimeframeStore interface {
	// Upsert inserts or replaces a timeframe spec keyed by label.
	Upsert(ctx context.Context, spec *domain.TimeframeSpec) error

	// GetByLabel retrieves a spec. Returns ErrNotFound if not exists.
	GetByLabel(ctx context.Context, label string) (*domain.TimeframeSpec, error)

	// List retrieves all specs, ordered by label.
	List(ctx context.Context) ([]*domain.TimeframeSpec, error)
}

// AlphaStore provides access to the smoothing-constant table.
type AlphaStore interface {
	// Upsert inserts or replaces an entry keyed by (timeframe_label, period).
	Upsert(ctx context.Context, entry *domain.AlphaEntry) error

	// Get retrieves an entry. Returns ErrNotFound if not exists.
	Get(ctx context.Context, timeframeLabel string, period int) (*domain.AlphaEntry, error)
}

// BarStore provides access to bars storage.
type BarStore interface {
	// UpsertBulk writes bars with overwrite-on-conflict semantics keyed by
	// (asset_id, timeframe_label, bar_sequence). Atomic per batch.
	UpsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetByAssetTimeframe retrieves all bars for a unit, ordered by
	// bar_sequence ASC.
	GetByAssetTimeframe(ctx context.Context, assetID, timeframeLabel string) ([]*domain.Bar, error)

	// GetFromSequence retrieves bars with bar_sequence >= fromSeq, ordered
	// by bar_sequence ASC.
	GetFromSequence(ctx context.Context, assetID, timeframeLabel string, fromSeq int) ([]*domain.Bar, error)

	// DeleteByAssetTimeframe removes all bars for a unit. Used by full
	// recompute to drop stale tails before rewriting.
	DeleteByAssetTimeframe(ctx context.Context, assetID, timeframeLabel string) error
}

// EmaRowStore provides access to ema_rows storage.
type EmaRowStore interface {
	// UpsertBulk writes rows keyed by (asset_id, timeframe_label, period,
	// day); repeated writes of the same key collapse to the latest value.
	UpsertBulk(ctx context.Context, rows []*domain.EmaRow) error

	// GetByUnit retrieves all rows for a unit, ordered by day ASC.
	GetByUnit(ctx context.Context, assetID, timeframeLabel string, period int) ([]*domain.EmaRow, error)

	// GetSince retrieves rows for a unit with day strictly after since,
	// ordered by day ASC.
	GetSince(ctx context.Context, assetID, timeframeLabel string, period int, since time.Time) ([]*domain.EmaRow, error)
}

// RunLogStore records run completion markers, one per mode. The full-mode
// marker bounds how long the incremental path runs before a full recompute
// is forced.
type RunLogStore interface {
	// RecordRun inserts or replaces the completion marker for a mode.
	RecordRun(ctx context.Context, mode string, completedAt time.Time) error

	// LastRun retrieves the completion marker for a mode. Returns
	// ErrNotFound when the mode has never completed.
	LastRun(ctx context.Context, mode string) (time.Time, error)
}

// RefreshStateStore provides access to refresh_state checkpoints.
type RefreshStateStore interface {
	// Upsert inserts or replaces a checkpoint keyed by (asset_id,
	// timeframe_label, period, variant).
	Upsert(ctx context.Context, state *domain.RefreshState) error

	// Get retrieves a checkpoint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, assetID, timeframeLabel string, period int, variant domain.EmaVariant) (*domain.RefreshState, error)

	// Delete removes a checkpoint if present. Full recompute clears
	// checkpoints before rebuilding.
	Delete(ctx context.Context, assetID, timeframeLabel string, period int, variant domain.EmaVariant) error
}
