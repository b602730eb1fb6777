package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// DailyPriceStore implements storage.DailyPriceStore using PostgreSQL.
type DailyPriceStore struct {
	pool *Pool
}

// NewDailyPriceStore creates a new DailyPriceStore.
func NewDailyPriceStore(pool *Pool) *DailyPriceStore {
	return &DailyPriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DailyPriceStore = (*DailyPriceStore)(nil)

// InsertBulk adds multiple rows atomically. Fails entire batch on any
// duplicate (asset_id, day).
func (s *DailyPriceStore) InsertBulk(ctx context.Context, rows []*domain.DailyPrice) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO daily_prices (
			asset_id, day, open, high, low, close, volume, market_cap
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			r.AssetID,
			domain.DayUTC(r.Day),
			r.Open,
			r.High,
			r.Low,
			r.Close,
			r.Volume,
			r.MarketCap,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert daily price in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListAssets returns all distinct asset IDs, sorted.
func (s *DailyPriceStore) ListAssets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT asset_id FROM daily_prices ORDER BY asset_id`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan asset id: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// GetByAssetID retrieves all rows for an asset, ordered by day ASC.
func (s *DailyPriceStore) GetByAssetID(ctx context.Context, assetID string) ([]*domain.DailyPrice, error) {
	query := `
		SELECT asset_id, day, open, high, low, close, volume, market_cap
		FROM daily_prices
		WHERE asset_id = $1
		ORDER BY day ASC
	`
	rows, err := s.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("get daily prices by asset id: %w", err)
	}
	defer rows.Close()

	return scanDailyPrices(rows)
}

// GetSince retrieves rows with day strictly after since, ordered by day ASC.
func (s *DailyPriceStore) GetSince(ctx context.Context, assetID string, since time.Time) ([]*domain.DailyPrice, error) {
	query := `
		SELECT asset_id, day, open, high, low, close, volume, market_cap
		FROM daily_prices
		WHERE asset_id = $1 AND day > $2
		ORDER BY day ASC
	`
	rows, err := s.pool.Query(ctx, query, assetID, domain.DayUTC(since))
	if err != nil {
		return nil, fmt.Errorf("get daily prices since: %w", err)
	}
	defer rows.Close()

	return scanDailyPrices(rows)
}

// DayRange returns the first and last observed day for an asset.
func (s *DailyPriceStore) DayRange(ctx context.Context, assetID string) (time.Time, time.Time, error) {
	query := `
		SELECT MIN(day), MAX(day)
		FROM daily_prices
		WHERE asset_id = $1
	`
	var first, last *time.Time
	if err := s.pool.QueryRow(ctx, query, assetID).Scan(&first, &last); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("get day range: %w", err)
	}
	if first == nil || last == nil {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}
	return domain.DayUTC(*first), domain.DayUTC(*last), nil
}

func scanDailyPrices(rows pgx.Rows) ([]*domain.DailyPrice, error) {
	var result []*domain.DailyPrice
	for rows.Next() {
		var r domain.DailyPrice
		err := rows.Scan(
			&r.AssetID, &r.Day, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume, &r.MarketCap,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily price: %w", err)
		}
		r.Day = domain.DayUTC(r.Day)
		result = append(result, &r)
	}
	return result, rows.Err()
}
