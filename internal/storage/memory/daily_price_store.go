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

// DailyPriceStore is an in-memory implementation of storage.DailyPriceStore.
type DailyPriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailyPrice // keyed by (asset_id, day)
}

// NewDailyPriceStore creates a new in-memory daily price store.
func NewDailyPriceStore() *DailyPriceStore {
	return &DailyPriceStore{
		data: make(map[string]*domain.DailyPrice),
	}
}

// Compile-time interface check.
var _ storage.DailyPriceStore = (*DailyPriceStore)(nil)

// priceKey generates a unique key for a daily price row.
func priceKey(assetID string, day time.Time) string {
	return fmt.Sprintf("%s|%s", assetID, domain.DayUTC(day).Format("2006-01-02"))
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *DailyPriceStore) InsertBulk(_ context.Context, rows []*domain.DailyPrice) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.AssetID == "" {
			return storage.ErrInvalidInput
		}
		key := priceKey(r.AssetID, r.Day)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		rowCopy := *r
		rowCopy.Day = domain.DayUTC(r.Day)
		s.data[priceKey(r.AssetID, r.Day)] = &rowCopy
	}
	return nil
}

// ListAssets returns all distinct asset IDs, sorted.
func (s *DailyPriceStore) ListAssets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, r := range s.data {
		seen[r.AssetID] = struct{}{}
	}
	assets := make([]string, 0, len(seen))
	for a := range seen {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets, nil
}

// GetByAssetID retrieves all rows for an asset, ordered by day ASC.
func (s *DailyPriceStore) GetByAssetID(ctx context.Context, assetID string) ([]*domain.DailyPrice, error) {
	return s.GetSince(ctx, assetID, time.Time{})
}

// GetSince retrieves rows with day strictly after since, ordered by day ASC.
func (s *DailyPriceStore) GetSince(_ context.Context, assetID string, since time.Time) ([]*domain.DailyPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since = domain.DayUTC(since)
	var result []*domain.DailyPrice
	for _, r := range s.data {
		if r.AssetID == assetID && r.Day.After(since) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.Before(result[j].Day)
	})
	return result, nil
}

// DayRange returns the first and last observed day for an asset.
func (s *DailyPriceStore) DayRange(_ context.Context, assetID string) (time.Time, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var first, last time.Time
	found := false
	for _, r := range s.data {
		if r.AssetID != assetID {
			continue
		}
		if !found || r.Day.Before(first) {
			first = r.Day
		}
		if !found || r.Day.After(last) {
			last = r.Day
		}
		found = true
	}
	if !found {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}
	return first, last, nil
}
