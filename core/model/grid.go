package model

import "time"

// GridSignal is one observation of the grid-side connection point. The
// islanding machine consumes these to detect loss of the wider grid and to
// confirm safe reconnection.
type GridSignal struct {
	Timestamp   time.Time `json:"timestamp"`
	Heartbeat   bool      `json:"heartbeat"` // true while the grid-side heartbeat is alive
	FrequencyHz float64   `json:"frequency_hz"`
	VoltageV    float64   `json:"voltage_v"`
	PhaseOffset float64   `json:"phase_offset_deg"`
}
