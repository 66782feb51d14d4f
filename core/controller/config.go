package controller

import "fmt"

// Config defines the control-loop cadence and overrun policy.
type Config struct {
	// PeriodSeconds is the control-cycle period. It matches the dispatch
	// plan horizon.
	PeriodSeconds int `json:"period_seconds"`
	// BudgetMS is the per-cycle compute budget. A cycle that exceeds it
	// counts as an overrun.
	BudgetMS int `json:"budget_ms"`
	// MaxOverruns is the consecutive-overrun streak after which the node
	// reports degraded communications to the islanding machine.
	MaxOverruns int `json:"max_overruns"`
	// AckTimeoutMS bounds the wait for tier command acknowledgments.
	AckTimeoutMS int `json:"ack_timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PeriodSeconds == 0 {
		c.PeriodSeconds = 1
	}
	if c.BudgetMS == 0 {
		c.BudgetMS = 50
	}
	if c.MaxOverruns == 0 {
		c.MaxOverruns = 5
	}
	if c.AckTimeoutMS == 0 {
		c.AckTimeoutMS = 500
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.PeriodSeconds <= 0 {
		return fmt.Errorf("period_seconds must be positive")
	}
	if c.BudgetMS <= 0 {
		return fmt.Errorf("budget_ms must be positive")
	}
	if c.MaxOverruns <= 0 {
		return fmt.Errorf("max_overruns must be positive")
	}
	return nil
}
