package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	plansCommitted   *prometheus.CounterVec
	tierFlow         *prometheus.GaugeVec
	residualPower    prometheus.Gauge
	commitDuplicates prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.GaugeVec, prometheus.Gauge, prometheus.Counter) {
	plans := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_plans_committed_total",
			Help: "Number of dispatch plans committed",
		},
		[]string{"residual"},
	)
	flow := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storage_tier_flow_kw",
			Help: "Committed power flow per storage tier, charge positive",
		},
		[]string{"tier", "kind"},
	)
	residual := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_residual_kw",
			Help: "Unmet demand or curtailed surplus of the last committed plan",
		},
	)
	dup := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_commit_duplicates_total",
			Help: "Number of plan commits ignored because the plan was already applied",
		},
	)
	return plans, flow, residual, dup
}

func init() {
	plansCommitted, tierFlow, residualPower, commitDuplicates = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(plansCommitted, tierFlow, residualPower, commitDuplicates)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	plansCommitted, tierFlow, residualPower, commitDuplicates = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
