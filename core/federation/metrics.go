package federation

import "github.com/prometheus/client_golang/prometheus"

var deltasAggregated prometheus.Counter

func newCollectors() prometheus.Counter {
	return prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "federation_deltas_aggregated_total",
			Help: "Number of peer model deltas merged into the local model",
		},
	)
}

func init() {
	deltasAggregated = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers federation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(deltasAggregated)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	deltasAggregated = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
