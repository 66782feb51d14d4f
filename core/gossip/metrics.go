package gossip

import "github.com/prometheus/client_golang/prometheus"

var (
	peersReached  prometheus.Gauge
	peersExcluded prometheus.Counter
)

func newCollectors() (prometheus.Gauge, prometheus.Counter) {
	reached := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gossip_peers_reached",
			Help: "Number of peers included in the last gossip round",
		},
	)
	excluded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gossip_peers_excluded_total",
			Help: "Number of peer summaries excluded as stale or unreachable",
		},
	)
	return reached, excluded
}

func init() {
	peersReached, peersExcluded = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers gossip metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(peersReached, peersExcluded)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	peersReached, peersExcluded = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
