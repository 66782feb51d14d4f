package model

import "time"

// ModelDelta is a bounded-size summary of local model parameter updates
// exchanged between peers. It never carries raw telemetry.
type ModelDelta struct {
	NodeID    string    `json:"node_id"`
	Weights   []float64 `json:"weights"`
	Staleness int       `json:"staleness"` // aggregation rounds since training
	TrainedAt time.Time `json:"trained_at"`
}

// Clone returns a deep copy so aggregation never aliases peer data.
func (d ModelDelta) Clone() ModelDelta {
	cp := d
	cp.Weights = append([]float64(nil), d.Weights...)
	return cp
}
