package metrics

import (
	"context"
	"time"

	"github.com/resilia-grid/neurogrid/core/events"
	coremetrics "github.com/resilia-grid/neurogrid/core/metrics"
	"github.com/resilia-grid/neurogrid/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled.
func StartEventCollector(ctx context.Context, nodeID string, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.StateChangeEvent:
					if r, ok := sink.(coremetrics.StateChangeRecorder); ok {
						_ = r.RecordStateChange(coremetrics.StateChangeEvent{
							NodeID: nodeID,
							From:   e.From,
							To:     e.To,
							Reason: e.Reason,
							Time:   e.At,
						})
					}
				case events.DeltaEvent:
					if r, ok := sink.(coremetrics.GossipRoundRecorder); ok {
						_ = r.RecordGossipRound(coremetrics.GossipRoundEvent{
							NodeID:       nodeID,
							PeersReached: e.PeersUsed,
							Time:         time.Now(),
						})
					}
				}
			}
		}
	}()
}
