package postgres

import (
	"context"
	"fmt"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// TimeframeStore implements storage.TimeframeStore using PostgreSQL.
type TimeframeStore struct {
	pool *Pool
}

// NewTimeframeStore creates a new TimeframeStore.
func NewTimeframeStore(pool *Pool) *TimeframeStore {
	return &TimeframeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TimeframeStore = (*TimeframeStore)(nil)

// Upsert inserts or replaces a timeframe spec keyed by label.
func (s *TimeframeStore) Upsert(ctx context.Context, spec *domain.TimeframeSpec) error {
	if spec == nil || spec.Label == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO timeframes (
			label, nominal_days, base_unit, quantity, calendar_policy, calendar_convention
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (label) DO UPDATE SET
			nominal_days = EXCLUDED.nominal_days,
			base_unit = EXCLUDED.base_unit,
			quantity = EXCLUDED.quantity,
			calendar_policy = EXCLUDED.calendar_policy,
			calendar_convention = EXCLUDED.calendar_convention
	`
	_, err := s.pool.Exec(ctx, query,
		spec.Label,
		spec.NominalDays,
		string(spec.BaseUnit),
		spec.Quantity,
		string(spec.Policy),
		string(spec.Convention),
	)
	if err != nil {
		return fmt.Errorf("upsert timeframe: %w", err)
	}
	return nil
}

// GetByLabel retrieves a spec. Returns ErrNotFound if not exists.
func (s *TimeframeStore) GetByLabel(ctx context.Context, label string) (*domain.TimeframeSpec, error) {
	query := `
		SELECT label, nominal_days, base_unit, quantity, calendar_policy, calendar_convention
		FROM timeframes
		WHERE label = $1
	`
	var spec domain.TimeframeSpec
	var unit, policy, convention string
	err := s.pool.QueryRow(ctx, query, label).Scan(
		&spec.Label, &spec.NominalDays, &unit, &spec.Quantity, &policy, &convention,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get timeframe by label: %w", err)
	}
	spec.BaseUnit = domain.BaseUnit(unit)
	spec.Policy = domain.CalendarPolicy(policy)
	spec.Convention = domain.CalendarConvention(convention)
	return &spec, nil
}

// List retrieves all specs, ordered by label.
func (s *TimeframeStore) List(ctx context.Context) ([]*domain.TimeframeSpec, error) {
	query := `
		SELECT label, nominal_days, base_unit, quantity, calendar_policy, calendar_convention
		FROM timeframes
		ORDER BY label ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list timeframes: %w", err)
	}
	defer rows.Close()

	var result []*domain.TimeframeSpec
	for rows.Next() {
		var spec domain.TimeframeSpec
		var unit, policy, convention string
		err := rows.Scan(&spec.Label, &spec.NominalDays, &unit, &spec.Quantity, &policy, &convention)
		if err != nil {
			return nil, fmt.Errorf("scan timeframe: %w", err)
		}
		spec.BaseUnit = domain.BaseUnit(unit)
		spec.Policy = domain.CalendarPolicy(policy)
		spec.Convention = domain.CalendarConvention(convention)
		result = append(result, &spec)
	}
	return result, rows.Err()
}
