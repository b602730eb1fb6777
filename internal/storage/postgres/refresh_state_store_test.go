package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
	pgstore "timeframe-lab/internal/storage/postgres"
)

func stateFixture(variant domain.EmaVariant) *domain.RefreshState {
	return &domain.RefreshState{
		AssetID:         "ASSET-A",
		TimeframeLabel:  "10D",
		Period:          2,
		Variant:         variant,
		LastSeedDay:     time.Date(2020, 1, 29, 0, 0, 0, 0, time.UTC),
		LastSeedValue:   114,
		LastBarSequence: 2,
	}
}

func TestRefreshStateStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewRefreshStateStore(pool)
	ctx := context.Background()

	state := stateFixture(domain.VariantContinuous)
	state.WarmupCount = 1
	state.PrevCloseValue = ptr(114.0)
	state.PrevCloseD1 = ptr(5.0)
	require.NoError(t, store.Upsert(ctx, state))

	got, err := store.Get(ctx, "ASSET-A", "10D", 2, domain.VariantContinuous)
	require.NoError(t, err)
	assert.Equal(t, domain.VariantContinuous, got.Variant)
	assert.Equal(t, state.LastSeedDay, got.LastSeedDay)
	assert.Equal(t, 114.0, got.LastSeedValue)
	assert.Equal(t, 2, got.LastBarSequence)
	assert.Equal(t, 1, got.WarmupCount)
	require.NotNil(t, got.PrevCloseValue)
	assert.Equal(t, 114.0, *got.PrevCloseValue)
	require.NotNil(t, got.PrevCloseD1)
	assert.Equal(t, 5.0, *got.PrevCloseD1)
	assert.Nil(t, got.PrevFillValue)
	assert.Nil(t, got.PrevFillD1)

	// The bar-space checkpoint for the same unit is a separate row.
	_, err = store.Get(ctx, "ASSET-A", "10D", 2, domain.VariantBarSpace)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRefreshStateStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewRefreshStateStore(pool)
	ctx := context.Background()

	state := stateFixture(domain.VariantBarSpace)
	state.WarmupCount = 1
	state.WarmupSum = 109
	require.NoError(t, store.Upsert(ctx, state))

	state.LastSeedDay = time.Date(2020, 2, 8, 0, 0, 0, 0, time.UTC)
	state.LastSeedValue = 119
	state.LastBarSequence = 3
	state.WarmupCount = 2
	state.WarmupSum = 228
	require.NoError(t, store.Upsert(ctx, state))

	got, err := store.Get(ctx, "ASSET-A", "10D", 2, domain.VariantBarSpace)
	require.NoError(t, err)
	assert.Equal(t, 3, got.LastBarSequence)
	assert.Equal(t, 119.0, got.LastSeedValue)
	assert.Equal(t, 2, got.WarmupCount)
	assert.Equal(t, 228.0, got.WarmupSum)
}

func TestRefreshStateStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewRefreshStateStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, stateFixture(domain.VariantContinuous)))
	require.NoError(t, store.Delete(ctx, "ASSET-A", "10D", 2, domain.VariantContinuous))

	_, err := store.Get(ctx, "ASSET-A", "10D", 2, domain.VariantContinuous)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting an absent checkpoint is a no-op.
	assert.NoError(t, store.Delete(ctx, "ASSET-A", "10D", 2, domain.VariantContinuous))
}

func TestRefreshStateStore_UpsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewRefreshStateStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Upsert(ctx, nil), storage.ErrInvalidInput)

	bad := stateFixture("hourly")
	assert.ErrorIs(t, store.Upsert(ctx, bad), storage.ErrInvalidInput)
}
