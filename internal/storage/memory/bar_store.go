package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bar // keyed by (asset_id, timeframe_label, bar_sequence)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.Bar),
	}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

func barKey(assetID, timeframeLabel string, seq int) string {
	return fmt.Sprintf("%s|%s|%d", assetID, timeframeLabel, seq)
}

// UpsertBulk writes bars with overwrite-on-conflict semantics. Atomic per
// batch: validation failures leave the store untouched.
func (s *BarStore) UpsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	for _, b := range bars {
		if b == nil || b.AssetID == "" || b.TimeframeLabel == "" || b.BarSequence < 1 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		barCopy := *b
		if b.BarAnchorOffset != nil {
			offset := *b.BarAnchorOffset
			barCopy.BarAnchorOffset = &offset
		}
		s.data[barKey(b.AssetID, b.TimeframeLabel, b.BarSequence)] = &barCopy
	}
	return nil
}

// GetByAssetTimeframe retrieves all bars for a unit, ordered by bar_sequence ASC.
func (s *BarStore) GetByAssetTimeframe(ctx context.Context, assetID, timeframeLabel string) ([]*domain.Bar, error) {
	return s.GetFromSequence(ctx, assetID, timeframeLabel, 1)
}

// GetFromSequence retrieves bars with bar_sequence >= fromSeq, ordered ASC.
func (s *BarStore) GetFromSequence(_ context.Context, assetID, timeframeLabel string, fromSeq int) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.AssetID == assetID && b.TimeframeLabel == timeframeLabel && b.BarSequence >= fromSeq {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BarSequence < result[j].BarSequence
	})
	return result, nil
}

// DeleteByAssetTimeframe removes all bars for a unit.
func (s *BarStore) DeleteByAssetTimeframe(_ context.Context, assetID, timeframeLabel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range s.data {
		if b.AssetID == assetID && b.TimeframeLabel == timeframeLabel {
			delete(s.data, key)
		}
	}
	return nil
}
