package memory

import (
	"context"
	"fmt"
	"sync"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// RefreshStateStore is an in-memory implementation of storage.RefreshStateStore.
type RefreshStateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RefreshState // keyed by (asset_id, timeframe_label, period, variant)
}

// NewRefreshStateStore creates a new in-memory refresh state store.
func NewRefreshStateStore() *RefreshStateStore {
	return &RefreshStateStore{
		data: make(map[string]*domain.RefreshState),
	}
}

// Compile-time interface check.
var _ storage.RefreshStateStore = (*RefreshStateStore)(nil)

func stateKey(assetID, timeframeLabel string, period int, variant domain.EmaVariant) string {
	return fmt.Sprintf("%s|%s|%d|%s", assetID, timeframeLabel, period, variant)
}

// Upsert inserts or replaces a checkpoint.
func (s *RefreshStateStore) Upsert(_ context.Context, state *domain.RefreshState) error {
	if state == nil || state.AssetID == "" || state.TimeframeLabel == "" || !state.Variant.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[stateKey(state.AssetID, state.TimeframeLabel, state.Period, state.Variant)] = copyState(state)
	return nil
}

// Get retrieves a checkpoint. Returns ErrNotFound if not exists.
func (s *RefreshStateStore) Get(_ context.Context, assetID, timeframeLabel string, period int, variant domain.EmaVariant) (*domain.RefreshState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.data[stateKey(assetID, timeframeLabel, period, variant)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyState(state), nil
}

// Delete removes a checkpoint if present.
func (s *RefreshStateStore) Delete(_ context.Context, assetID, timeframeLabel string, period int, variant domain.EmaVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, stateKey(assetID, timeframeLabel, period, variant))
	return nil
}

func copyState(state *domain.RefreshState) *domain.RefreshState {
	stateCopy := *state
	stateCopy.PrevCloseValue = copyFloat(state.PrevCloseValue)
	stateCopy.PrevCloseD1 = copyFloat(state.PrevCloseD1)
	stateCopy.PrevFillValue = copyFloat(state.PrevFillValue)
	stateCopy.PrevFillD1 = copyFloat(state.PrevFillD1)
	return &stateCopy
}
