package postgres

import (
	"context"
	"fmt"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// RefreshStateStore implements storage.RefreshStateStore using PostgreSQL.
type RefreshStateStore struct {
	pool *Pool
}

// NewRefreshStateStore creates a new RefreshStateStore.
func NewRefreshStateStore(pool *Pool) *RefreshStateStore {
	return &RefreshStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RefreshStateStore = (*RefreshStateStore)(nil)

// Upsert inserts or replaces a checkpoint keyed by (asset_id,
// timeframe_label, period, variant).
func (s *RefreshStateStore) Upsert(ctx context.Context, state *domain.RefreshState) error {
	if state == nil || state.AssetID == "" || state.TimeframeLabel == "" || !state.Variant.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO refresh_state (
			asset_id, timeframe_label, period, variant,
			last_seed_day, last_seed_value, last_bar_sequence,
			warmup_count, warmup_sum,
			prev_close_value, prev_close_d1, prev_fill_value, prev_fill_d1
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (asset_id, timeframe_label, period, variant) DO UPDATE SET
			last_seed_day = EXCLUDED.last_seed_day,
			last_seed_value = EXCLUDED.last_seed_value,
			last_bar_sequence = EXCLUDED.last_bar_sequence,
			warmup_count = EXCLUDED.warmup_count,
			warmup_sum = EXCLUDED.warmup_sum,
			prev_close_value = EXCLUDED.prev_close_value,
			prev_close_d1 = EXCLUDED.prev_close_d1,
			prev_fill_value = EXCLUDED.prev_fill_value,
			prev_fill_d1 = EXCLUDED.prev_fill_d1
	`
	_, err := s.pool.Exec(ctx, query,
		state.AssetID, state.TimeframeLabel, state.Period, string(state.Variant),
		domain.DayUTC(state.LastSeedDay), state.LastSeedValue, state.LastBarSequence,
		state.WarmupCount, state.WarmupSum,
		state.PrevCloseValue, state.PrevCloseD1, state.PrevFillValue, state.PrevFillD1,
	)
	if err != nil {
		return fmt.Errorf("upsert refresh state: %w", err)
	}
	return nil
}

// Get retrieves a checkpoint. Returns ErrNotFound if not exists.
func (s *RefreshStateStore) Get(ctx context.Context, assetID, timeframeLabel string, period int, variant domain.EmaVariant) (*domain.RefreshState, error) {
	query := `
		SELECT asset_id, timeframe_label, period, variant,
			last_seed_day, last_seed_value, last_bar_sequence,
			warmup_count, warmup_sum,
			prev_close_value, prev_close_d1, prev_fill_value, prev_fill_d1
		FROM refresh_state
		WHERE asset_id = $1 AND timeframe_label = $2 AND period = $3 AND variant = $4
	`
	var state domain.RefreshState
	var variantStr string
	err := s.pool.QueryRow(ctx, query, assetID, timeframeLabel, period, string(variant)).Scan(
		&state.AssetID, &state.TimeframeLabel, &state.Period, &variantStr,
		&state.LastSeedDay, &state.LastSeedValue, &state.LastBarSequence,
		&state.WarmupCount, &state.WarmupSum,
		&state.PrevCloseValue, &state.PrevCloseD1, &state.PrevFillValue, &state.PrevFillD1,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get refresh state: %w", err)
	}
	state.Variant = domain.EmaVariant(variantStr)
	state.LastSeedDay = domain.DayUTC(state.LastSeedDay)
	return &state, nil
}

// Delete removes a checkpoint if present.
func (s *RefreshStateStore) Delete(ctx context.Context, assetID, timeframeLabel string, period int, variant domain.EmaVariant) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_state WHERE asset_id = $1 AND timeframe_label = $2 AND period = $3 AND variant = $4`,
		assetID, timeframeLabel, period, string(variant),
	)
	if err != nil {
		return fmt.Errorf("delete refresh state: %w", err)
	}
	return nil
}
