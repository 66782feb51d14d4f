package test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resilia-grid/neurogrid/core/controller"
	"github.com/resilia-grid/neurogrid/core/dispatch"
	"github.com/resilia-grid/neurogrid/core/forecast"
	"github.com/resilia-grid/neurogrid/core/islanding"
	coremetrics "github.com/resilia-grid/neurogrid/core/metrics"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/core/planlog"
	"github.com/resilia-grid/neurogrid/core/telemetry"
	"github.com/resilia-grid/neurogrid/infra/logger"
	infmqtt "github.com/resilia-grid/neurogrid/infra/mqtt"
	"github.com/resilia-grid/neurogrid/internal/eventbus"
)

type captureSink struct {
	results []coremetrics.CycleResult
}

func (c *captureSink) RecordCycleResult(results []coremetrics.CycleResult) error {
	c.results = append(c.results, results...)
	return nil
}

func tierSet() []model.StorageTier {
	return []model.StorageTier{
		{ID: "bat1", Kind: model.TierBattery, Rank: 1, CapacityKWh: 100, SoC: 0.5, MaxChargeKW: 30, MaxDischargeKW: 30, Efficiency: 0.95, TelemetryOK: true},
		{ID: "th1", Kind: model.TierThermal, Rank: 2, CapacityKWh: 200, SoC: 0.5, MaxChargeKW: 20, MaxDischargeKW: 20, Efficiency: 0.7, TelemetryOK: true},
		{ID: "h2", Kind: model.TierHydrogen, Rank: 3, CapacityKWh: 500, SoC: 0.5, MaxChargeKW: 40, MaxDischargeKW: 40, Efficiency: 0.4, TelemetryOK: true},
	}
}

func newNode(t *testing.T, store planlog.Store) (*controller.LocalController, *infmqtt.MockPublisher, *captureSink) {
	t.Helper()
	log := logger.NopLogger{}
	bank, err := dispatch.NewBank(tierSet())
	require.NoError(t, err)
	pub := infmqtt.NewMockPublisher()
	sink := &captureSink{}
	dispatchCfg := dispatch.Config{CycleSeconds: 1}
	ctrl := controller.NewController(controller.Config{PeriodSeconds: 1}, dispatchCfg, controller.Deps{
		Node:      model.MicrogridNode{ID: "mg-01", Region: "test"},
		Window:    telemetry.NewWindow(telemetry.Config{}),
		Estimator: forecast.NewEstimator(forecast.Config{HorizonSteps: 6, StepSeconds: 1}, log),
		Planner:   dispatch.NewPlanner(dispatchCfg, log),
		Bank:      bank,
		Machine:   islanding.NewMachine(islanding.Config{}, log, eventbus.New()),
		Publisher: pub,
		Sink:      sink,
		PlanLog:   store,
		Loads: []model.Load{
			{ID: "hospital", Kind: "commercial", DemandKW: 40, Flexibility: 0.1, Priority: 1},
			{ID: "mall", Kind: "commercial", DemandKW: 60, Flexibility: 0.6, Priority: 7},
		},
		Logger: log,
	})
	return ctrl, pub, sink
}

func feedNode(ctrl *controller.LocalController, now time.Time, prodKW, consKW float64) {
	ctrl.HandleSample(model.TelemetrySample{Source: "pv", Quantity: model.QuantityProductionKW, Value: prodKW, Timestamp: now})
	ctrl.HandleSample(model.TelemetrySample{Source: "feeder", Quantity: model.QuantityConsumptionKW, Value: consKW, Timestamp: now})
	ctrl.HandleGridSignal(model.GridSignal{Timestamp: now, Heartbeat: true, FrequencyHz: 50, VoltageV: 230})
}

func TestControlLoopSpillsAcrossTiers(t *testing.T) {
	ctrl, pub, _ := newNode(t, nil)
	now := time.Now()
	// 60 kW surplus exceeds the fast tier's 30 kW charge rate.
	feedNode(ctrl, now, 100, 40)

	res := ctrl.RunCycle(now)
	require.Equal(t, model.GridConnected, res.State)
	require.InDelta(t, 30, res.Plan.Flows["bat1"], 1e-9)
	require.InDelta(t, 20, res.Plan.Flows["th1"], 1e-9)
	require.InDelta(t, 10, res.Plan.Flows["h2"], 1e-9)
	require.Equal(t, model.ResidualNone, res.Plan.Residual.Kind)

	require.InDelta(t, 30, pub.Setpoints["bat1"], 1e-9)
	require.InDelta(t, 20, pub.Setpoints["th1"], 1e-9)
	require.InDelta(t, 10, pub.Setpoints["h2"], 1e-9)
}

func TestControlLoopWritesPlanLog(t *testing.T) {
	store, err := planlog.NewJSONLStore(filepath.Join(t.TempDir(), "plans.jsonl"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctrl, _, sink := newNode(t, store)
	now := time.Now()
	feedNode(ctrl, now, 60, 40)
	ctrl.RunCycle(now)

	records, err := store.Query(context.Background(), planlog.Query{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "mg-01", records[0].NodeID)
	require.NotEmpty(t, records[0].Plan.ID)
	require.Len(t, sink.results, 1)
}

func TestControlLoopShedRecommendationsOnDeficit(t *testing.T) {
	store, err := planlog.NewJSONLStore(filepath.Join(t.TempDir(), "plans.jsonl"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctrl, _, _ := newNode(t, store)
	now := time.Now()
	// 200 kW deficit exhausts every tier (30+20+40 = 90 kW dischargeable).
	feedNode(ctrl, now, 0, 200)
	res := ctrl.RunCycle(now)
	require.Equal(t, model.ResidualUnmetDemand, res.Plan.Residual.Kind)
	require.InDelta(t, 110, res.Plan.Residual.PowerKW, 1e-9)

	records, err := store.Query(context.Background(), planlog.Query{HasShed: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	// The flexible low-priority load sheds first.
	require.Equal(t, "mall", records[0].Shed[0].LoadID)
}

func TestControlLoopIslandsAndRecovers(t *testing.T) {
	ctrl, pub, _ := newNode(t, nil)
	start := time.Now()

	feedNode(ctrl, start, 60, 40)
	res := ctrl.RunCycle(start)
	require.Equal(t, model.GridConnected, res.State)

	// Heartbeat silence past the timeout islands the node.
	step := start.Add(2 * time.Second)
	ctrl.HandleSample(model.TelemetrySample{Source: "pv", Quantity: model.QuantityProductionKW, Value: 60, Timestamp: step})
	ctrl.HandleSample(model.TelemetrySample{Source: "feeder", Quantity: model.QuantityConsumptionKW, Value: 40, Timestamp: step})
	res = ctrl.RunCycle(step)
	require.Equal(t, model.IslandDetected, res.State)
	require.Equal(t, []bool{true}, pub.BreakerLog)

	// Surplus means storage sustains the autonomy horizon.
	step = step.Add(time.Second)
	res = ctrl.RunCycle(step)
	require.Equal(t, model.IslandStable, res.State)

	// A healthy grid reading starts resynchronization.
	step = step.Add(time.Second)
	feedNode(ctrl, step, 60, 40)
	res = ctrl.RunCycle(step)
	require.Equal(t, model.Resynchronizing, res.State)
}
