package events

import (
	"time"

	"github.com/resilia-grid/neurogrid/core/model"
)

// StateChangeEvent is published when the islanding machine transitions.
type StateChangeEvent struct {
	From   model.ConnectionState
	To     model.ConnectionState
	Reason string
	At     time.Time
}
