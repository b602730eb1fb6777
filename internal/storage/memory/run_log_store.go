package memory

import (
	"context"
	"sync"
	"time"

	"timeframe-lab/internal/storage"
)

// RunLogStore is an in-memory implementation of storage.RunLogStore.
type RunLogStore struct {
	mu   sync.RWMutex
	data map[string]time.Time // keyed by mode
}

// NewRunLogStore creates a new in-memory run log store.
func NewRunLogStore() *RunLogStore {
	return &RunLogStore{
		data: make(map[string]time.Time),
	}
}

// Compile-time interface check.
var _ storage.RunLogStore = (*RunLogStore)(nil)

// RecordRun inserts or replaces the completion marker for a mode.
func (s *RunLogStore) RecordRun(_ context.Context, mode string, completedAt time.Time) error {
	if mode == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[mode] = completedAt.UTC()
	return nil
}

// LastRun retrieves the completion marker for a mode. Returns ErrNotFound
// if the mode has never completed.
func (s *RunLogStore) LastRun(_ context.Context, mode string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completedAt, exists := s.data[mode]
	if !exists {
		return time.Time{}, storage.ErrNotFound
	}
	return completedAt, nil
}
