package command

import "errors"

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// ErrFaulted is returned when a non-safety command is attempted while the
// node is in the Fault state.
var ErrFaulted = errors.New("node faulted: only safety commands permitted")
