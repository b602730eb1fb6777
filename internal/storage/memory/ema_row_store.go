package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// EmaRowStore is an in-memory implementation of storage.EmaRowStore.
type EmaRowStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EmaRow // keyed by (asset_id, timeframe_label, period, day)
}

// NewEmaRowStore creates a new in-memory EMA row store.
func NewEmaRowStore() *EmaRowStore {
	return &EmaRowStore{
		data: make(map[string]*domain.EmaRow),
	}
}

// Compile-time interface check.
var _ storage.EmaRowStore = (*EmaRowStore)(nil)

func emaKey(assetID, timeframeLabel string, period int, day time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%s", assetID, timeframeLabel, period, domain.DayUTC(day).Format("2006-01-02"))
}

// UpsertBulk writes rows with overwrite-on-conflict semantics.
func (s *EmaRowStore) UpsertBulk(_ context.Context, rows []*domain.EmaRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if r == nil || r.AssetID == "" || r.TimeframeLabel == "" || r.Period < 1 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		rowCopy := copyEmaRow(r)
		s.data[emaKey(r.AssetID, r.TimeframeLabel, r.Period, r.Day)] = rowCopy
	}
	return nil
}

// GetByUnit retrieves all rows for a unit, ordered by day ASC.
func (s *EmaRowStore) GetByUnit(ctx context.Context, assetID, timeframeLabel string, period int) ([]*domain.EmaRow, error) {
	return s.GetSince(ctx, assetID, timeframeLabel, period, time.Time{})
}

// GetSince retrieves rows with day strictly after since, ordered by day ASC.
func (s *EmaRowStore) GetSince(_ context.Context, assetID, timeframeLabel string, period int, since time.Time) ([]*domain.EmaRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since = domain.DayUTC(since)
	var result []*domain.EmaRow
	for _, r := range s.data {
		if r.AssetID == assetID && r.TimeframeLabel == timeframeLabel && r.Period == period && r.Day.After(since) {
			result = append(result, copyEmaRow(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.Before(result[j].Day)
	})
	return result, nil
}

// copyEmaRow deep-copies a row including its nullable columns.
func copyEmaRow(r *domain.EmaRow) *domain.EmaRow {
	rowCopy := *r
	rowCopy.Day = domain.DayUTC(r.Day)
	rowCopy.D1 = copyFloat(r.D1)
	rowCopy.D2 = copyFloat(r.D2)
	rowCopy.D1Roll = copyFloat(r.D1Roll)
	rowCopy.D2Roll = copyFloat(r.D2Roll)
	rowCopy.EmaBar = copyFloat(r.EmaBar)
	rowCopy.D1Bar = copyFloat(r.D1Bar)
	rowCopy.D2Bar = copyFloat(r.D2Bar)
	rowCopy.D1RollBar = copyFloat(r.D1RollBar)
	rowCopy.D2RollBar = copyFloat(r.D2RollBar)
	return &rowCopy
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
