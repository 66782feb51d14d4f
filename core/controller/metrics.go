package controller

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/resilia-grid/neurogrid/core/metrics"
)

var (
	cycleDuration   prometheus.Histogram
	cycleOverruns   prometheus.Counter
	commandFailures prometheus.Counter
	forecastBalance prometheus.Gauge
	nodeState       prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Histogram, prometheus.Counter, prometheus.Counter, prometheus.Gauge, prometheus.Gauge) {
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "control_cycle_duration_seconds",
			Help:    "Wall time spent per control cycle",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
	overruns := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "control_cycle_overruns_total",
			Help: "Number of control cycles that exceeded the compute budget",
		},
	)
	failures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "control_command_failures_total",
			Help: "Number of tier commands that failed to emit or went unacknowledged",
		},
	)
	balance := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "control_forecast_balance_kw",
			Help: "Forecast net balance for the current cycle, surplus positive",
		},
	)
	state := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "control_connection_state",
			Help: "Numeric ConnectionState of the node",
		},
	)
	return duration, overruns, failures, balance, state
}

func init() {
	cycleDuration, cycleOverruns, commandFailures, forecastBalance, nodeState = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers controller metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(cycleDuration, cycleOverruns, commandFailures, forecastBalance, nodeState)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	cycleDuration, cycleOverruns, commandFailures, forecastBalance, nodeState = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func observeCycle(res metrics.CycleResult) {
	cycleDuration.Observe(res.Elapsed.Seconds())
	forecastBalance.Set(res.Forecast.BalanceKW)
	nodeState.Set(float64(res.State))
}
