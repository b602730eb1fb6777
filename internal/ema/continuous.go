package ema

// contState is the continuous-family recursion state between step calls.
type contState struct {
	value  float64
	seeded bool
}

// stepKind tags the two positions of the continuous state machine.
type stepKind int

const (
	betweenBars stepKind = iota
	atClose
)

// contStep advances the continuous EMA by one day and returns the value to
// emit for that day.
//
// betweenBars: seed from the first close, then drift with
// state += alpha*(close-state). atClose: same drift, then snap to the
// bar-space value once one exists for the closing bar. The snap keeps the
// daily curve visually continuous with the bar-space seed.
func contStep(st contState, kind stepKind, close float64, barValue *float64, alpha float64) (contState, float64) {
	if !st.seeded {
		st.value = close
		st.seeded = true
	} else {
		st.value += alpha * (close - st.value)
	}

	if kind == atClose && barValue != nil {
		st.value = *barValue
	}
	return st, st.value
}
