package command

import "time"

// Publisher emits dispatch and breaker commands to the physical actuation
// layer and tracks their acknowledgments.
type Publisher interface {
	// EmitDispatch sends a signed power setpoint to a storage tier. The plan
	// identifier makes re-emission of an already-applied plan a no-op on the
	// actuator side. It returns the command identifier used for
	// acknowledgment tracking.
	EmitDispatch(tierID string, powerKW float64, planID string) (commandID string, err error)

	// EmitBreaker opens or closes the grid-tie breaker.
	EmitBreaker(open bool) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
