package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
	pgstore "timeframe-lab/internal/storage/postgres"
)

func TestAlphaStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewAlphaStore(pool)
	ctx := context.Background()

	entry, err := domain.NewAlphaEntry("10D", 2, 10)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, &entry))

	got, err := store.Get(ctx, "10D", 2)
	require.NoError(t, err)
	assert.Equal(t, "10D", got.TimeframeLabel)
	assert.Equal(t, 2, got.Period)
	assert.InDelta(t, 2.0/3.0, got.AlphaBar, 1e-12)
	assert.InDelta(t, entry.AlphaDailyEquivalent, got.AlphaDailyEquivalent, 1e-12)
	assert.Equal(t, 20, got.EffectiveDays)

	_, err = store.Get(ctx, "10D", 5)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAlphaStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewAlphaStore(pool)
	ctx := context.Background()

	entry, err := domain.NewAlphaEntry("1W", 10, 7)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, &entry))

	entry.EffectiveDays = 99
	require.NoError(t, store.Upsert(ctx, &entry))

	got, err := store.Get(ctx, "1W", 10)
	require.NoError(t, err)
	assert.Equal(t, 99, got.EffectiveDays)
}

func TestAlphaStore_UpsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewAlphaStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Upsert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Upsert(ctx, &domain.AlphaEntry{TimeframeLabel: "10D"}), storage.ErrInvalidInput)
}
