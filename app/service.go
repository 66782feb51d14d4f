package app

import (
	"context"
	"fmt"
	"time"

	"github.com/resilia-grid/neurogrid/config"
	"github.com/resilia-grid/neurogrid/core/controller"
	"github.com/resilia-grid/neurogrid/core/dispatch"
	"github.com/resilia-grid/neurogrid/core/events"
	"github.com/resilia-grid/neurogrid/core/federation"
	"github.com/resilia-grid/neurogrid/core/forecast"
	"github.com/resilia-grid/neurogrid/core/gossip"
	"github.com/resilia-grid/neurogrid/core/islanding"
	coremetrics "github.com/resilia-grid/neurogrid/core/metrics"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/core/planlog"
	coretelemetry "github.com/resilia-grid/neurogrid/core/telemetry"
	"github.com/resilia-grid/neurogrid/infra/logger"
	"github.com/resilia-grid/neurogrid/infra/metrics"
	"github.com/resilia-grid/neurogrid/infra/mqtt"
	"github.com/resilia-grid/neurogrid/infra/telemetry"
	"github.com/resilia-grid/neurogrid/internal/eventbus"
)

// Service orchestrates one microgrid node: the control loop, its feeds and
// the peer exchange loops.
type Service struct {
	Controller *controller.LocalController

	node        model.MicrogridNode
	client      *mqtt.PahoClient
	subscriber  *telemetry.Subscriber
	gossiper    *gossip.Gossiper
	coordinator *federation.Coordinator
	planStore   planlog.Store
	bus         eventbus.EventBus
	sink        coremetrics.MetricsSink
	log         logger.Logger

	peerDeltas map[string]model.ModelDelta
	lastMerge  time.Time

	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	node := cfg.Node.Node()

	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	var sinks []coremetrics.MetricsSink
	promEnabled := cfg.Metrics.PrometheusEnabled
	promPort := cfg.Metrics.PrometheusPort
	if promEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	planStore, err := newPlanStore(cfg.PlanLog)
	if err != nil {
		return nil, fmt.Errorf("plan store: %w", err)
	}

	bus := eventbus.New()
	bank, err := dispatch.NewBank(cfg.Tiers)
	if err != nil {
		return nil, fmt.Errorf("storage bank: %w", err)
	}

	ctrl := controller.NewController(cfg.Controller, cfg.Dispatch, controller.Deps{
		Node:      node,
		Window:    coretelemetry.NewWindow(cfg.Telemetry),
		Estimator: forecast.NewEstimator(cfg.Forecast, logger.New("forecast")),
		Planner:   dispatch.NewPlanner(cfg.Dispatch, logger.New("dispatch")),
		Bank:      bank,
		Machine:   islanding.NewMachine(cfg.Islanding, logger.New("islanding"), bus),
		Publisher: client,
		Sink:      sink,
		Bus:       bus,
		PlanLog:   planStore,
		Loads:     cfg.Loads,
		Logger:    logger.New("controller"),
	})

	subscriber, err := telemetry.NewSubscriber(cfg.MQTT, ctrl)
	if err != nil {
		return nil, fmt.Errorf("telemetry subscriber: %w", err)
	}

	transport, err := mqtt.NewGossipTransport(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("gossip transport: %w", err)
	}
	gcfg := cfg.Gossip
	if len(gcfg.Peers) == 0 {
		gcfg.Peers = node.Peers
	}

	svc := &Service{
		Controller:  ctrl,
		node:        node,
		client:      client,
		subscriber:  subscriber,
		gossiper:    gossip.New(gcfg, node.ID, transport, logger.New("gossip")),
		coordinator: federation.NewCoordinator(cfg.Federation, logger.New("federation")),
		planStore:   planStore,
		bus:         bus,
		sink:        sink,
		log:         logg,
		peerDeltas:  make(map[string]model.ModelDelta),
		lastMerge:   time.Now(),
		promEnabled: promEnabled,
		promPort:    promPort,
	}
	return svc, nil
}

func newPlanStore(cfg config.PlanLogConfig) (planlog.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return planlog.NewSQLiteStore(cfg.Path)
	default:
		return planlog.NewJSONLStore(cfg.Path)
	}
}

// Run starts the node and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.node.ID, s.bus, s.sink)
	go s.Controller.Run(ctx)
	go s.gossipLoop(ctx)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// gossipLoop drives the periodic summary exchange and, on the federation
// cadence or on forecast drift, the model merge.
func (s *Service) gossipLoop(ctx context.Context) {
	ticker := time.NewTicker(s.gossiper.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summaries, err := s.gossiper.Round(ctx, s.Controller.Summary())
			if err != nil {
				s.log.Warnf("gossip round: %v", err)
				continue
			}
			for _, sum := range summaries {
				if len(sum.Delta.Weights) > 0 {
					s.peerDeltas[sum.NodeID] = sum.Delta
				}
			}
			if rec, ok := s.sink.(coremetrics.GossipRoundRecorder); ok {
				_ = rec.RecordGossipRound(coremetrics.GossipRoundEvent{
					NodeID:       s.node.ID,
					PeersReached: len(summaries),
					NetImbalance: gossip.NetImbalanceKW(summaries),
					Time:         time.Now(),
				})
			}
			if time.Since(s.lastMerge) >= s.coordinator.Interval() || s.Controller.NeedsReaggregation() {
				s.mergeModels()
			}
		}
	}
}

// mergeModels runs one federated aggregation round over the retained peer
// deltas and hands the merged model to the controller.
func (s *Service) mergeModels() {
	local := s.Controller.Summary().Delta
	peers := make([]model.ModelDelta, 0, len(s.peerDeltas))
	for _, d := range s.peerDeltas {
		peers = append(peers, d)
	}
	merged, used := s.coordinator.Aggregate(local, peers)
	s.Controller.HandleModel(merged)
	s.bus.Publish(events.DeltaEvent{Delta: merged, PeersUsed: used})
	s.lastMerge = time.Now()

	aged := federation.Age(peers)
	for k := range s.peerDeltas {
		delete(s.peerDeltas, k)
	}
	for _, d := range aged {
		s.peerDeltas[d.NodeID] = d
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.subscriber.Close()
	if err := s.gossiper.Close(); err != nil {
		s.log.Warnf("gossip close: %v", err)
	}
	s.client.Disconnect()
	return s.planStore.Close()
}
