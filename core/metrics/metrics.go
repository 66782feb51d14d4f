package metrics

import (
	"time"

	"github.com/resilia-grid/neurogrid/core/model"
)

// CycleResult captures one completed control cycle for observability.
type CycleResult struct {
	NodeID   string
	State    model.ConnectionState
	Plan     model.DispatchPlan
	Forecast model.ForecastStep
	Elapsed  time.Duration
	Overrun  bool
	Time     time.Time
}

// MetricsSink records cycle results for observability purposes.
type MetricsSink interface {
	RecordCycleResult(results []CycleResult) error
}

// StateChangeEvent captures an islanding transition for persistence.
type StateChangeEvent struct {
	NodeID string
	From   model.ConnectionState
	To     model.ConnectionState
	Reason string
	Time   time.Time
}

// StateChangeRecorder records islanding transitions.
type StateChangeRecorder interface {
	RecordStateChange(ev StateChangeEvent) error
}

// GossipRoundEvent captures data about a gossip round.
type GossipRoundEvent struct {
	NodeID       string
	PeersReached int
	NetImbalance float64
	Time         time.Time
}

// GossipRoundRecorder records gossip rounds.
type GossipRoundRecorder interface {
	RecordGossipRound(ev GossipRoundEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycleResult([]CycleResult) error    { return nil }
func (NopSink) RecordStateChange(StateChangeEvent) error { return nil }
func (NopSink) RecordGossipRound(GossipRoundEvent) error { return nil }
