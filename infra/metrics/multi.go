package metrics

import coremetrics "github.com/resilia-grid/neurogrid/core/metrics"

// MultiSink fanouts cycle results to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycleResult forwards the records to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCycleResult(results []coremetrics.CycleResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycleResult(results); err != nil {
			return err
		}
	}
	return nil
}

// RecordStateChange forwards transitions to sinks that support them.
func (m *MultiSink) RecordStateChange(ev coremetrics.StateChangeEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.StateChangeRecorder); ok {
			if err := rec.RecordStateChange(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordGossipRound forwards round summaries to sinks that support them.
func (m *MultiSink) RecordGossipRound(ev coremetrics.GossipRoundEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.GossipRoundRecorder); ok {
			if err := rec.RecordGossipRound(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
