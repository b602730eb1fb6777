package refresh

import (
	"context"
	"fmt"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/storage"
)

// SeedDimensions upserts the timeframe specs and derives one alpha entry
// per (spec, period). Both tables are reference data; runners seed them
// on startup so every configured unit has its constants available.
func SeedDimensions(ctx context.Context, timeframes storage.TimeframeStore, alphas storage.AlphaStore, specs []domain.TimeframeSpec, periods []int) error {
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return err
		}
		if err := timeframes.Upsert(ctx, &spec); err != nil {
			return fmt.Errorf("seed timeframe %s: %w", spec.Label, err)
		}
		for _, period := range periods {
			entry, err := domain.NewAlphaEntry(spec.Label, period, spec.NominalDays)
			if err != nil {
				return err
			}
			if err := alphas.Upsert(ctx, &entry); err != nil {
				return fmt.Errorf("seed alpha %s/p%d: %w", spec.Label, period, err)
			}
		}
	}
	return nil
}
