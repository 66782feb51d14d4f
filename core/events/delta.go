package events

import "github.com/resilia-grid/neurogrid/core/model"

// DeltaEvent is published when the federation coordinator produces an
// updated local model.
type DeltaEvent struct {
	Delta     model.ModelDelta
	PeersUsed int
}
