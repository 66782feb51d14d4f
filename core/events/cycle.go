package events

import "time"

// CycleOverrunEvent is published when a control cycle exceeds its budget.
// Consecutive counts the overrun streak feeding the degraded-comms signal.
type CycleOverrunEvent struct {
	Elapsed     time.Duration
	Budget      time.Duration
	Consecutive int
}
