package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

const barColumns = `
	asset_id, timeframe_label, bar_sequence,
	time_open, time_close, time_high, time_low,
	open, high, low, close, volume, market_cap,
	is_partial_start, is_partial_end, is_missing_days,
	count_missing_days, count_missing_days_start, count_missing_days_end, count_missing_days_interior,
	bar_anchor_offset
`

// UpsertBulk writes bars atomically with overwrite-on-conflict semantics
// keyed by (asset_id, timeframe_label, bar_sequence).
func (s *BarStore) UpsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO bars (` + barColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (asset_id, timeframe_label, bar_sequence) DO UPDATE SET
			time_open = EXCLUDED.time_open,
			time_close = EXCLUDED.time_close,
			time_high = EXCLUDED.time_high,
			time_low = EXCLUDED.time_low,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			market_cap = EXCLUDED.market_cap,
			is_partial_start = EXCLUDED.is_partial_start,
			is_partial_end = EXCLUDED.is_partial_end,
			is_missing_days = EXCLUDED.is_missing_days,
			count_missing_days = EXCLUDED.count_missing_days,
			count_missing_days_start = EXCLUDED.count_missing_days_start,
			count_missing_days_end = EXCLUDED.count_missing_days_end,
			count_missing_days_interior = EXCLUDED.count_missing_days_interior,
			bar_anchor_offset = EXCLUDED.bar_anchor_offset
	`

	for _, b := range bars {
		_, err := tx.Exec(ctx, query,
			b.AssetID, b.TimeframeLabel, b.BarSequence,
			b.TimeOpen, b.TimeClose, b.TimeHigh, b.TimeLow,
			b.Open, b.High, b.Low, b.Close, b.Volume, b.MarketCap,
			b.PartialStart, b.PartialEnd, b.MissingDays,
			b.MissingDaysTotal, b.MissingDaysStart, b.MissingDaysEnd, b.MissingDaysInterior,
			b.BarAnchorOffset,
		)
		if err != nil {
			return fmt.Errorf("upsert bar in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByAssetTimeframe retrieves all bars for a unit, ordered by bar_sequence ASC.
func (s *BarStore) GetByAssetTimeframe(ctx context.Context, assetID, timeframeLabel string) ([]*domain.Bar, error) {
	return s.GetFromSequence(ctx, assetID, timeframeLabel, 1)
}

// GetFromSequence retrieves bars with bar_sequence >= fromSeq, ordered ASC.
func (s *BarStore) GetFromSequence(ctx context.Context, assetID, timeframeLabel string, fromSeq int) ([]*domain.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM bars
		WHERE asset_id = $1 AND timeframe_label = $2 AND bar_sequence >= $3
		ORDER BY bar_sequence ASC
	`
	rows, err := s.pool.Query(ctx, query, assetID, timeframeLabel, fromSeq)
	if err != nil {
		return nil, fmt.Errorf("get bars from sequence: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// DeleteByAssetTimeframe removes all bars for a unit.
func (s *BarStore) DeleteByAssetTimeframe(ctx context.Context, assetID, timeframeLabel string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM bars WHERE asset_id = $1 AND timeframe_label = $2`,
		assetID, timeframeLabel,
	)
	if err != nil {
		return fmt.Errorf("delete bars: %w", err)
	}
	return nil
}

func scanBars(rows pgx.Rows) ([]*domain.Bar, error) {
	var result []*domain.Bar
	for rows.Next() {
		var b domain.Bar
		err := rows.Scan(
			&b.AssetID, &b.TimeframeLabel, &b.BarSequence,
			&b.TimeOpen, &b.TimeClose, &b.TimeHigh, &b.TimeLow,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.MarketCap,
			&b.PartialStart, &b.PartialEnd, &b.MissingDays,
			&b.MissingDaysTotal, &b.MissingDaysStart, &b.MissingDaysEnd, &b.MissingDaysInterior,
			&b.BarAnchorOffset,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.TimeOpen = domain.DayUTC(b.TimeOpen)
		b.TimeClose = domain.DayUTC(b.TimeClose)
		b.TimeHigh = domain.DayUTC(b.TimeHigh)
		b.TimeLow = domain.DayUTC(b.TimeLow)
		result = append(result, &b)
	}
	return result, rows.Err()
}
