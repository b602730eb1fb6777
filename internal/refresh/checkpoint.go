package refresh

import (
	"time"

	"timeframe-lab/internal/domain"
	"timeframe-lab/internal/ema"
)

// The recursion state of one unit is persisted as two refresh_state rows,
// one per EMA variant. The continuous row holds the drift value and the
// two continuous difference chains; the bar-space row holds the warm-up
// accumulator, the recursion value and the two bar-space chains. The
// continuous row encodes its seeded flag in warmup_count (0 or 1).

func statesFromResume(key domain.UnitKey, resume *ema.Resume, lastDay time.Time) (cont, bar *domain.RefreshState) {
	seeded := 0
	if resume.ContinuousSeeded {
		seeded = 1
	}
	cont = &domain.RefreshState{
		AssetID:         key.AssetID,
		TimeframeLabel:  key.TimeframeLabel,
		Period:          key.Period,
		Variant:         domain.VariantContinuous,
		LastSeedDay:     domain.DayUTC(lastDay),
		LastSeedValue:   resume.ContinuousValue,
		LastBarSequence: resume.LastBarSequence,
		WarmupCount:     seeded,
		PrevCloseValue:  cloneFloat(resume.ContClose.Prev),
		PrevCloseD1:     cloneFloat(resume.ContClose.PrevD1),
		PrevFillValue:   cloneFloat(resume.ContFill.Prev),
		PrevFillD1:      cloneFloat(resume.ContFill.PrevD1),
	}
	bar = &domain.RefreshState{
		AssetID:         key.AssetID,
		TimeframeLabel:  key.TimeframeLabel,
		Period:          key.Period,
		Variant:         domain.VariantBarSpace,
		LastSeedDay:     domain.DayUTC(lastDay),
		LastSeedValue:   resume.BarCurrent,
		LastBarSequence: resume.LastBarSequence,
		WarmupCount:     resume.BarCount,
		WarmupSum:       resume.BarSum,
		PrevCloseValue:  cloneFloat(resume.BarClose.Prev),
		PrevCloseD1:     cloneFloat(resume.BarClose.PrevD1),
		PrevFillValue:   cloneFloat(resume.BarFill.Prev),
		PrevFillD1:      cloneFloat(resume.BarFill.PrevD1),
	}
	return cont, bar
}

func resumeFromStates(cont, bar *domain.RefreshState) *ema.Resume {
	return &ema.Resume{
		ContinuousValue:  cont.LastSeedValue,
		ContinuousSeeded: cont.WarmupCount > 0,
		BarCount:         bar.WarmupCount,
		BarSum:           bar.WarmupSum,
		BarCurrent:       bar.LastSeedValue,
		LastBarSequence:  bar.LastBarSequence,
		ContClose: ema.DiffChain{
			Prev:   cloneFloat(cont.PrevCloseValue),
			PrevD1: cloneFloat(cont.PrevCloseD1),
		},
		ContFill: ema.DiffChain{
			Prev:   cloneFloat(cont.PrevFillValue),
			PrevD1: cloneFloat(cont.PrevFillD1),
		},
		BarClose: ema.DiffChain{
			Prev:   cloneFloat(bar.PrevCloseValue),
			PrevD1: cloneFloat(bar.PrevCloseD1),
		},
		BarFill: ema.DiffChain{
			Prev:   cloneFloat(bar.PrevFillValue),
			PrevD1: cloneFloat(bar.PrevFillD1),
		},
	}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
