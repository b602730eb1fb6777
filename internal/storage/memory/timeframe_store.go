package memory

import (
	"context"
	"sort"
	"sync"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// TimeframeStore is an in-memory implementation of storage.TimeframeStore.
type TimeframeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TimeframeSpec // keyed by label
}

// NewTimeframeStore creates a new in-memory timeframe store.
func NewTimeframeStore() *TimeframeStore {
	return &TimeframeStore{
		data: make(map[string]*domain.TimeframeSpec),
	}
}

// Compile-time interface check.
var _ storage.TimeframeStore = (*TimeframeStore)(nil)

// Upsert inserts or replaces a timeframe spec keyed by label.
func (s *TimeframeStore) Upsert(_ context.Context, spec *domain.TimeframeSpec) error {
	if spec == nil || spec.Label == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	specCopy := *spec
	s.data[spec.Label] = &specCopy
	return nil
}

// GetByLabel retrieves a spec. Returns ErrNotFound if not exists.
func (s *TimeframeStore) GetByLabel(_ context.Context, label string) (*domain.TimeframeSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, exists := s.data[label]
	if !exists {
		return nil, storage.ErrNotFound
	}
	specCopy := *spec
	return &specCopy, nil
}

// List retrieves all specs, ordered by label.
func (s *TimeframeStore) List(_ context.Context) ([]*domain.TimeframeSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TimeframeSpec, 0, len(s.data))
	for _, spec := range s.data {
		specCopy := *spec
		result = append(result, &specCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Label < result[j].Label
	})
	return result, nil
}
