package dispatch

import "fmt"

// Config defines dispatcher parameters.
type Config struct {
	// CycleSeconds is the control-cycle period the plan covers.
	CycleSeconds int `json:"cycle_seconds"`
	// ToleranceKW bounds the accepted gap between tier flows and the
	// imbalance before the remainder must be flagged as a residual.
	ToleranceKW float64 `json:"tolerance_kw"`
	// SafetyMargin tightens rate and capacity limits on recompute after a
	// rejected plan. 0.95 keeps 5% in reserve.
	SafetyMargin float64 `json:"safety_margin"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.CycleSeconds == 0 {
		c.CycleSeconds = 1
	}
	if c.ToleranceKW == 0 {
		c.ToleranceKW = 0.01
	}
	if c.SafetyMargin == 0 {
		c.SafetyMargin = 0.95
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.CycleSeconds <= 0 {
		return fmt.Errorf("cycle_seconds must be positive")
	}
	if c.SafetyMargin <= 0 || c.SafetyMargin > 1 {
		return fmt.Errorf("safety_margin must be in (0,1]")
	}
	return nil
}

// CycleHours returns the plan horizon in hours.
func (c Config) CycleHours() float64 {
	return float64(c.CycleSeconds) / 3600
}
