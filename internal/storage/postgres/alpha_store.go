package postgres

import (
	"context"
	"fmt"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// AlphaStore implements storage.AlphaStore using PostgreSQL.
type AlphaStore struct {
	pool *Pool
}

// NewAlphaStore creates a new AlphaStore.
func NewAlphaStore(pool *Pool) *AlphaStore {
	return &AlphaStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlphaStore = (*AlphaStore)(nil)

// Upsert inserts or replaces an entry keyed by (timeframe_label, period).
func (s *AlphaStore) Upsert(ctx context.Context, entry *domain.AlphaEntry) error {
	if entry == nil || entry.TimeframeLabel == "" || entry.Period < 1 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alpha_entries (
			timeframe_label, period, alpha_bar, alpha_daily_equivalent, effective_days
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (timeframe_label, period) DO UPDATE SET
			alpha_bar = EXCLUDED.alpha_bar,
			alpha_daily_equivalent = EXCLUDED.alpha_daily_equivalent,
			effective_days = EXCLUDED.effective_days
	`
	_, err := s.pool.Exec(ctx, query,
		entry.TimeframeLabel,
		entry.Period,
		entry.AlphaBar,
		entry.AlphaDailyEquivalent,
		entry.EffectiveDays,
	)
	if err != nil {
		return fmt.Errorf("upsert alpha entry: %w", err)
	}
	return nil
}

// Get retrieves an entry. Returns ErrNotFound if not exists.
func (s *AlphaStore) Get(ctx context.Context, timeframeLabel string, period int) (*domain.AlphaEntry, error) {
	query := `
		SELECT timeframe_label, period, alpha_bar, alpha_daily_equivalent, effective_days
		FROM alpha_entries
		WHERE timeframe_label = $1 AND period = $2
	`
	var entry domain.AlphaEntry
	err := s.pool.QueryRow(ctx, query, timeframeLabel, period).Scan(
		&entry.TimeframeLabel,
		&entry.Period,
		&entry.AlphaBar,
		&entry.AlphaDailyEquivalent,
		&entry.EffectiveDays,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get alpha entry: %w", err)
	}
	return &entry, nil
}
