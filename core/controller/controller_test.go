package controller

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resilia-grid/neurogrid/core/dispatch"
	"github.com/resilia-grid/neurogrid/core/forecast"
	"github.com/resilia-grid/neurogrid/core/islanding"
	"github.com/resilia-grid/neurogrid/core/metrics"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/core/telemetry"
	"github.com/resilia-grid/neurogrid/infra/logger"
)

type recordedCommand struct {
	TierID  string
	PowerKW float64
	PlanID  string
}

type stubPublisher struct {
	mu       sync.Mutex
	commands []recordedCommand
	breaker  []bool
}

func (p *stubPublisher) EmitDispatch(tierID string, powerKW float64, planID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, recordedCommand{TierID: tierID, PowerKW: powerKW, PlanID: planID})
	return "cmd-" + tierID, nil
}

func (p *stubPublisher) EmitBreaker(open bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breaker = append(p.breaker, open)
	return "cmd-breaker", nil
}

func (p *stubPublisher) WaitForAck(string, time.Duration) (bool, error) { return true, nil }

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.commands)
}

func (p *stubPublisher) breakerLog() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.breaker...)
}

type fixture struct {
	ctrl *LocalController
	bank *dispatch.Bank
	pub  *stubPublisher
}

func newFixture(t *testing.T, tiers []model.StorageTier) *fixture {
	return newFixtureWithIslanding(t, tiers, islanding.Config{})
}

func newFixtureWithIslanding(t *testing.T, tiers []model.StorageTier, icfg islanding.Config) *fixture {
	t.Helper()
	log := logger.NopLogger{}
	bank, err := dispatch.NewBank(tiers)
	require.NoError(t, err)
	dispatchCfg := dispatch.Config{CycleSeconds: 1}
	ctrl := NewController(Config{PeriodSeconds: 1}, dispatchCfg, Deps{
		Node:      model.MicrogridNode{ID: "mg-01", Region: "test"},
		Window:    telemetry.NewWindow(telemetry.Config{}),
		Estimator: forecast.NewEstimator(forecast.Config{HorizonSteps: 4, StepSeconds: 1}, log),
		Planner:   dispatch.NewPlanner(dispatchCfg, log),
		Bank:      bank,
		Machine:   islanding.NewMachine(icfg, log, nil),
		Publisher: &stubPublisher{},
		Sink:      metrics.NopSink{},
		Logger:    log,
	})
	return &fixture{ctrl: ctrl, bank: bank, pub: ctrl.d.Publisher.(*stubPublisher)}
}

func battery() model.StorageTier {
	return model.StorageTier{
		ID: "bat1", Kind: model.TierBattery, Rank: 1,
		CapacityKWh: 100, SoC: 0.5,
		MaxChargeKW: 50, MaxDischargeKW: 50,
		Efficiency: 0.95, TelemetryOK: true,
	}
}

func feed(ctrl *LocalController, now time.Time, prodKW, consKW float64) {
	ctrl.HandleSample(model.TelemetrySample{
		Source: "pv", Quantity: model.QuantityProductionKW, Value: prodKW, Timestamp: now,
	})
	ctrl.HandleSample(model.TelemetrySample{
		Source: "feeder", Quantity: model.QuantityConsumptionKW, Value: consKW, Timestamp: now,
	})
}

func healthySignal(now time.Time) model.GridSignal {
	return model.GridSignal{Timestamp: now, Heartbeat: true, FrequencyHz: 50, VoltageV: 230}
}

func TestRunCycleCommitsAndEmits(t *testing.T) {
	f := newFixture(t, []model.StorageTier{battery()})
	now := time.Now()
	feed(f.ctrl, now, 50, 30)
	f.ctrl.HandleGridSignal(healthySignal(now))

	res := f.ctrl.RunCycle(now)
	require.Equal(t, model.GridConnected, res.State)
	require.Equal(t, model.ResidualNone, res.Plan.Residual.Kind)
	require.InDelta(t, 20, res.Plan.Flows["bat1"], 1e-9)

	require.Equal(t, 1, f.pub.count())
	cmd := f.pub.commands[0]
	require.Equal(t, "bat1", cmd.TierID)
	require.Equal(t, res.Plan.ID, cmd.PlanID)
	require.InDelta(t, 20, cmd.PowerKW, 1e-9)
}

func TestHeartbeatLossIslandsNode(t *testing.T) {
	f := newFixture(t, []model.StorageTier{battery()})
	now := time.Now().Add(2 * time.Second)
	feed(f.ctrl, now, 50, 30)

	res := f.ctrl.RunCycle(now)
	require.Equal(t, model.IslandDetected, res.State)
	// Dispatch continues while islanded.
	require.NotEmpty(t, res.Plan.Flows)
}

func TestFaultStopsDispatch(t *testing.T) {
	tiny := battery()
	tiny.CapacityKWh = 1
	tiny.MaxDischargeKW = 5
	f := newFixture(t, []model.StorageTier{tiny})
	now := time.Now()

	feed(f.ctrl, now, 0, 100)
	f.ctrl.HandleGridSignal(healthySignal(now))
	res := f.ctrl.RunCycle(now)
	require.Equal(t, model.ResidualUnmetDemand, res.Plan.Residual.Kind)
	emitted := f.pub.count()

	f.bank.MarkTelemetryLost("bat1")
	later := now.Add(time.Second)
	feed(f.ctrl, later, 0, 100)
	f.ctrl.HandleGridSignal(healthySignal(later))
	res = f.ctrl.RunCycle(later)
	require.Equal(t, model.Fault, res.State)
	require.Empty(t, res.Plan.Flows)
	require.Equal(t, emitted, f.pub.count())
	// Opening the breaker is the one command a faulted node still sends.
	require.Equal(t, []bool{true}, f.pub.breakerLog())

	// Fault is latched until the supervisory clear.
	res = f.ctrl.RunCycle(later.Add(time.Second))
	require.Equal(t, model.Fault, res.State)
}

func TestModelAdoptionAtCycleBoundary(t *testing.T) {
	f := newFixture(t, []model.StorageTier{battery()})
	now := time.Now()
	feed(f.ctrl, now, 50, 30)
	f.ctrl.HandleGridSignal(healthySignal(now))

	f.ctrl.HandleModel(model.ModelDelta{NodeID: "mg-02", Weights: []float64{0.9, 1, 1, 1}})
	f.ctrl.RunCycle(now)
	require.InDelta(t, 0.9, f.ctrl.d.Estimator.ModelWeights()[0], 1e-9)

	// A malformed delta is rejected without touching the model.
	f.ctrl.HandleModel(model.ModelDelta{NodeID: "mg-03", Weights: []float64{1, 2}})
	f.ctrl.RunCycle(now.Add(time.Second))
	require.InDelta(t, 0.9, f.ctrl.d.Estimator.ModelWeights()[0], 1e-9)
}

func TestBreakerOpensOnIslandDetection(t *testing.T) {
	f := newFixture(t, []model.StorageTier{battery()})
	now := time.Now()
	feed(f.ctrl, now, 50, 30)
	f.ctrl.HandleGridSignal(healthySignal(now))
	f.ctrl.RunCycle(now)
	require.Empty(t, f.pub.breakerLog())

	later := now.Add(2 * time.Second)
	feed(f.ctrl, later, 50, 30)
	res := f.ctrl.RunCycle(later)
	require.Equal(t, model.IslandDetected, res.State)
	require.Equal(t, []bool{true}, f.pub.breakerLog())
}

func TestBreakerClosesOnConfirmedReconnection(t *testing.T) {
	f := newFixtureWithIslanding(t, []model.StorageTier{battery()}, islanding.Config{ResyncConfirmationMS: 500})
	start := time.Now()
	feed(f.ctrl, start, 50, 30)
	f.ctrl.HandleGridSignal(healthySignal(start))
	f.ctrl.RunCycle(start)

	step := func(offset time.Duration, signal bool) model.ConnectionState {
		at := start.Add(offset)
		feed(f.ctrl, at, 50, 30)
		if signal {
			f.ctrl.HandleGridSignal(healthySignal(at))
		}
		return f.ctrl.RunCycle(at).State
	}

	require.Equal(t, model.IslandDetected, step(2*time.Second, false))
	require.Equal(t, model.IslandStable, step(3*time.Second, false))
	// Grid returns: resynchronize without touching the breaker until confirmed.
	require.Equal(t, model.Resynchronizing, step(4*time.Second, true))
	require.Equal(t, []bool{true}, f.pub.breakerLog())
	require.Equal(t, model.GridConnected, step(5*time.Second, true))
	require.Equal(t, []bool{true, false}, f.pub.breakerLog())
}

func TestSummarySafeDuringCycles(t *testing.T) {
	f := newFixture(t, []model.StorageTier{battery()})
	now := time.Now()
	feed(f.ctrl, now, 50, 30)
	f.ctrl.HandleGridSignal(healthySignal(now))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = f.ctrl.Summary()
		}
	}()
	for i := 0; i < 200; i++ {
		f.ctrl.RunCycle(now.Add(time.Duration(i) * time.Second))
	}
	<-done
	require.Equal(t, "mg-01", f.ctrl.Summary().NodeID)
}

func TestSummaryCarriesResidual(t *testing.T) {
	tiny := battery()
	tiny.CapacityKWh = 1
	tiny.MaxDischargeKW = 5
	f := newFixture(t, []model.StorageTier{tiny})
	now := time.Now()
	feed(f.ctrl, now, 0, 100)
	f.ctrl.HandleGridSignal(healthySignal(now))
	f.ctrl.RunCycle(now)

	s := f.ctrl.Summary()
	require.Equal(t, "mg-01", s.NodeID)
	require.Equal(t, model.ResidualUnmetDemand.String(), s.ResidualKind)
	require.Greater(t, s.ImportRequestKW, 0.0)
	require.Len(t, s.Delta.Weights, forecast.NumWeights)
}
