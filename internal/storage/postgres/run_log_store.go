package postgres

import (
	"context"
	"fmt"
	"time"

	"timeframe-lab/internal/storage"
)

// RunLogStore implements storage.RunLogStore using PostgreSQL.
type RunLogStore struct {
	pool *Pool
}

// NewRunLogStore creates a new RunLogStore.
func NewRunLogStore(pool *Pool) *RunLogStore {
	return &RunLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunLogStore = (*RunLogStore)(nil)

// RecordRun inserts or replaces the completion marker for a mode.
func (s *RunLogStore) RecordRun(ctx context.Context, mode string, completedAt time.Time) error {
	if mode == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO refresh_runs (mode, completed_at)
		VALUES ($1, $2)
		ON CONFLICT (mode) DO UPDATE SET
			completed_at = EXCLUDED.completed_at
	`
	if _, err := s.pool.Exec(ctx, query, mode, completedAt.UTC()); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// LastRun retrieves the completion marker for a mode. Returns ErrNotFound
// if the mode has never completed.
func (s *RunLogStore) LastRun(ctx context.Context, mode string) (time.Time, error) {
	var completedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT completed_at FROM refresh_runs WHERE mode = $1`, mode,
	).Scan(&completedAt)
	if err != nil {
		if isNotFoundError(err) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("get last run: %w", err)
	}
	return completedAt.UTC(), nil
}
