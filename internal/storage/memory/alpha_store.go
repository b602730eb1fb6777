package memory

import (
	"context"
	"fmt"
	"sync"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// AlphaStore is an in-memory implementation of storage.AlphaStore.
type AlphaStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AlphaEntry // keyed by (timeframe_label, period)
}

// NewAlphaStore creates a new in-memory alpha store.
func NewAlphaStore() *AlphaStore {
	return &AlphaStore{
		data: make(map[string]*domain.AlphaEntry),
	}
}

// Compile-time interface check.
var _ storage.AlphaStore = (*AlphaStore)(nil)

func alphaKey(timeframeLabel string, period int) string {
	return fmt.Sprintf("%s|%d", timeframeLabel, period)
}

// Upsert inserts or replaces an entry keyed by (timeframe_label, period).
func (s *AlphaStore) Upsert(_ context.Context, entry *domain.AlphaEntry) error {
	if entry == nil || entry.TimeframeLabel == "" || entry.Period < 1 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *entry
	s.data[alphaKey(entry.TimeframeLabel, entry.Period)] = &entryCopy
	return nil
}

// Get retrieves an entry. Returns ErrNotFound if not exists.
func (s *AlphaStore) Get(_ context.Context, timeframeLabel string, period int) (*domain.AlphaEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[alphaKey(timeframeLabel, period)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}
