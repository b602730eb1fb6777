package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// EmaRowStore implements storage.EmaRowStore using ClickHouse.
//
// ema_rows is a ReplacingMergeTree keyed by (asset_id, timeframe_label,
// period, day) with a version column, so repeated writes of the same key
// collapse to the latest value and the upsert contract holds without
// explicit conflict handling. Reads use FINAL to resolve not-yet-merged
// duplicates.
type EmaRowStore struct {
	conn *Conn
}

// NewEmaRowStore creates a new EmaRowStore.
func NewEmaRowStore(conn *Conn) *EmaRowStore {
	return &EmaRowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EmaRowStore = (*EmaRowStore)(nil)

const emaColumns = `
	asset_id, timeframe_label, period, day,
	ema, d1, d2, roll, d1_roll, d2_roll,
	ema_bar, d1_bar, d2_bar, roll_bar, d1_roll_bar, d2_roll_bar
`

// UpsertBulk writes rows in one batch. Re-writing an existing key replaces
// its value on merge.
func (s *EmaRowStore) UpsertBulk(ctx context.Context, rows []*domain.EmaRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if r == nil || r.AssetID == "" || r.TimeframeLabel == "" || r.Period < 1 {
			return storage.ErrInvalidInput
		}
	}

	version := uint64(time.Now().UnixNano())
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ema_rows (`+emaColumns+`, version)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.AssetID, r.TimeframeLabel, int32(r.Period), domain.DayUTC(r.Day),
			r.Ema, r.D1, r.D2, r.Roll, r.D1Roll, r.D2Roll,
			r.EmaBar, r.D1Bar, r.D2Bar, r.RollBar, r.D1RollBar, r.D2RollBar,
			version,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByUnit retrieves all rows for a unit, ordered by day ASC.
func (s *EmaRowStore) GetByUnit(ctx context.Context, assetID, timeframeLabel string, period int) ([]*domain.EmaRow, error) {
	query := `
		SELECT ` + emaColumns + `
		FROM ema_rows FINAL
		WHERE asset_id = ? AND timeframe_label = ? AND period = ?
		ORDER BY day ASC
	`
	rows, err := s.conn.Query(ctx, query, assetID, timeframeLabel, int32(period))
	if err != nil {
		return nil, fmt.Errorf("get ema rows: %w", err)
	}
	defer rows.Close()

	return scanEmaRows(rows)
}

// GetSince retrieves rows with day strictly after since, ordered by day ASC.
func (s *EmaRowStore) GetSince(ctx context.Context, assetID, timeframeLabel string, period int, since time.Time) ([]*domain.EmaRow, error) {
	query := `
		SELECT ` + emaColumns + `
		FROM ema_rows FINAL
		WHERE asset_id = ? AND timeframe_label = ? AND period = ? AND day > ?
		ORDER BY day ASC
	`
	rows, err := s.conn.Query(ctx, query, assetID, timeframeLabel, int32(period), domain.DayUTC(since))
	if err != nil {
		return nil, fmt.Errorf("get ema rows: %w", err)
	}
	defer rows.Close()

	return scanEmaRows(rows)
}

func scanEmaRows(rows driver.Rows) ([]*domain.EmaRow, error) {
	var result []*domain.EmaRow
	for rows.Next() {
		var r domain.EmaRow
		var period32 int32
		err := rows.Scan(
			&r.AssetID, &r.TimeframeLabel, &period32, &r.Day,
			&r.Ema, &r.D1, &r.D2, &r.Roll, &r.D1Roll, &r.D2Roll,
			&r.EmaBar, &r.D1Bar, &r.D2Bar, &r.RollBar, &r.D1RollBar, &r.D2RollBar,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ema row: %w", err)
		}
		r.Period = int(period32)
		r.Day = domain.DayUTC(r.Day)
		result = append(result, &r)
	}
	return result, rows.Err()
}
