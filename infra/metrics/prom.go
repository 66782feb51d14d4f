package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/resilia-grid/neurogrid/core/metrics"
)

// PromSink records cycle results in Prometheus metrics.
type PromSink struct {
	cycles  *prometheus.CounterVec
	balance *prometheus.GaugeVec
	changes *prometheus.CounterVec
	peers   prometheus.Gauge
}

// NewPromSink registers control metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "node_cycles_total",
		Help: "Total number of control cycles",
	}, []string{"node_id", "state", "residual", "overrun"})
	balance := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "node_balance_kw",
		Help: "Forecast net balance per node, surplus positive",
	}, []string{"node_id"})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "node_state_changes_total",
		Help: "Connection state transitions per node",
	}, []string{"node_id", "from", "to"})
	peers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gossip_peers_reached",
		Help: "Number of peers heard in the last gossip round",
	})

	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(balance); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			balance = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(changes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			changes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(peers); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			peers = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{cycles: cycles, balance: balance, changes: changes, peers: peers}, nil
}

// RecordCycleResult increments the counter for each completed cycle.
func (s *PromSink) RecordCycleResult(results []coremetrics.CycleResult) error {
	for _, r := range results {
		s.cycles.WithLabelValues(r.NodeID, r.State.String(), r.Plan.Residual.Kind.String(), strconv.FormatBool(r.Overrun)).Inc()
		s.balance.WithLabelValues(r.NodeID).Set(r.Forecast.BalanceKW)
	}
	return nil
}

// RecordStateChange counts islanding transitions.
func (s *PromSink) RecordStateChange(ev coremetrics.StateChangeEvent) error {
	s.changes.WithLabelValues(ev.NodeID, ev.From.String(), ev.To.String()).Inc()
	return nil
}

// RecordGossipRound sets the peer gauge from the round summary.
func (s *PromSink) RecordGossipRound(ev coremetrics.GossipRoundEvent) error {
	if s.peers != nil {
		s.peers.Set(float64(ev.PeersReached))
	}
	return nil
}
