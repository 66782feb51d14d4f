package model

import "time"

// ForecastStep is one predicted net-balance value. Balance is production
// minus consumption in kW; positive means surplus.
type ForecastStep struct {
	Timestamp  time.Time
	BalanceKW  float64
	Confidence float64 // interval half-width in kW
	Degraded   bool    // true when a tracked quantity was stale at estimation time
}

// ForecastWindow is the rolling prediction produced each control cycle.
// The previous window is discarded on regeneration.
type ForecastWindow struct {
	GeneratedAt time.Time
	StepSize    time.Duration
	Steps       []ForecastStep
}

// Horizon returns the total duration covered by the window.
func (w ForecastWindow) Horizon() time.Duration {
	return time.Duration(len(w.Steps)) * w.StepSize
}

// Next returns the first step, the one the dispatcher acts on.
func (w ForecastWindow) Next() (ForecastStep, bool) {
	if len(w.Steps) == 0 {
		return ForecastStep{}, false
	}
	return w.Steps[0], true
}

// Degraded reports whether any step carries degraded confidence.
func (w ForecastWindow) Degraded() bool {
	for _, s := range w.Steps {
		if s.Degraded {
			return true
		}
	}
	return false
}
