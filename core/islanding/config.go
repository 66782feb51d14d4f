package islanding

import "fmt"

// Config defines the detection, debounce and resynchronization parameters.
type Config struct {
	// HeartbeatTimeoutMS is the grid-heartbeat silence treated as loss.
	// Islanding fires on the first step after it elapses, with no extra
	// debounce applied; keep it at or below DebounceMS plus the control
	// period when heartbeat loss must island as fast as the
	// out-of-tolerance path.
	HeartbeatTimeoutMS int `json:"heartbeat_timeout_ms"`
	// DebounceMS is how long readings must stay out of tolerance before the
	// grid counts as lost.
	DebounceMS int `json:"debounce_ms"`
	// AutonomyHorizonMinutes is the minimum horizon the storage must cover
	// before an island is considered stable.
	AutonomyHorizonMinutes int `json:"autonomy_horizon_minutes"`
	// ResyncConfirmationMS is the continuous in-tolerance duration required
	// before reconnecting.
	ResyncConfirmationMS int `json:"resync_confirmation_ms"`

	NominalFrequencyHz   float64 `json:"nominal_frequency_hz"`
	FrequencyToleranceHz float64 `json:"frequency_tolerance_hz"`
	NominalVoltageV      float64 `json:"nominal_voltage_v"`
	VoltageTolerancePct  float64 `json:"voltage_tolerance_pct"`
	PhaseToleranceDeg    float64 `json:"phase_tolerance_deg"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HeartbeatTimeoutMS == 0 {
		c.HeartbeatTimeoutMS = 500
	}
	if c.DebounceMS == 0 {
		c.DebounceMS = 200
	}
	if c.AutonomyHorizonMinutes == 0 {
		c.AutonomyHorizonMinutes = 60
	}
	if c.ResyncConfirmationMS == 0 {
		c.ResyncConfirmationMS = 30000
	}
	if c.NominalFrequencyHz == 0 {
		c.NominalFrequencyHz = 50
	}
	if c.FrequencyToleranceHz == 0 {
		c.FrequencyToleranceHz = 0.5
	}
	if c.NominalVoltageV == 0 {
		c.NominalVoltageV = 230
	}
	if c.VoltageTolerancePct == 0 {
		c.VoltageTolerancePct = 0.1
	}
	if c.PhaseToleranceDeg == 0 {
		c.PhaseToleranceDeg = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.HeartbeatTimeoutMS <= 0 || c.DebounceMS <= 0 || c.ResyncConfirmationMS <= 0 {
		return fmt.Errorf("timing parameters must be positive")
	}
	if c.FrequencyToleranceHz <= 0 || c.VoltageTolerancePct <= 0 || c.PhaseToleranceDeg <= 0 {
		return fmt.Errorf("tolerance bands must be positive")
	}
	return nil
}
