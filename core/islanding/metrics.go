package islanding

import "github.com/prometheus/client_golang/prometheus"

var (
	stateTransitions *prometheus.CounterVec
	connectionState  prometheus.Gauge
)

func newCollectors() (*prometheus.CounterVec, prometheus.Gauge) {
	trans := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "islanding_transitions_total",
			Help: "Number of connection-state transitions",
		},
		[]string{"from", "to"},
	)
	state := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "islanding_connection_state",
			Help: "Current connection state as its enum value",
		},
	)
	return trans, state
}

func init() {
	stateTransitions, connectionState = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers islanding metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(stateTransitions, connectionState)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	stateTransitions, connectionState = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
