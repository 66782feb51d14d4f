package controller

import (
	"context"
	"sync"
	"time"

	"github.com/resilia-grid/neurogrid/core/command"
	"github.com/resilia-grid/neurogrid/core/dispatch"
	"github.com/resilia-grid/neurogrid/core/events"
	"github.com/resilia-grid/neurogrid/core/forecast"
	"github.com/resilia-grid/neurogrid/core/gossip"
	"github.com/resilia-grid/neurogrid/core/islanding"
	"github.com/resilia-grid/neurogrid/core/logger"
	"github.com/resilia-grid/neurogrid/core/metrics"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/core/planlog"
	"github.com/resilia-grid/neurogrid/core/telemetry"
	"github.com/resilia-grid/neurogrid/internal/eventbus"
)

// Deps groups the collaborators a LocalController drives each cycle.
type Deps struct {
	Node      model.MicrogridNode
	Window    *telemetry.Window
	Estimator *forecast.Estimator
	Planner   *dispatch.Planner
	Bank      *dispatch.Bank
	Machine   *islanding.Machine
	Publisher command.Publisher
	Sink      metrics.MetricsSink
	Bus       eventbus.EventBus
	PlanLog   planlog.Store // optional
	Loads     []model.Load
	Logger    logger.Logger
}

// LocalController runs the per-node control loop. Ingested telemetry,
// grid signals, peer summaries and model updates are buffered between
// cycles and consumed at the next cycle boundary, so a cycle always works
// on a consistent snapshot.
type LocalController struct {
	cfg Config
	d   Deps

	dispatchCfg dispatch.Config

	inbox inbox

	overruns  int
	lastUnmet bool

	// lastResult is the cycle-boundary snapshot handed to the gossip loop;
	// it is the only field shared across goroutines.
	mu         sync.Mutex
	lastResult metrics.CycleResult
}

// NewController wires a controller from its dependencies.
func NewController(cfg Config, dispatchCfg dispatch.Config, d Deps) *LocalController {
	cfg.SetDefaults()
	dispatchCfg.SetDefaults()
	return &LocalController{cfg: cfg, d: d, dispatchCfg: dispatchCfg}
}

// HandleSample feeds a telemetry sample into the rolling window.
func (c *LocalController) HandleSample(s model.TelemetrySample) {
	c.d.Window.Ingest(s)
}

// HandleWeather feeds a forecast-feed update into the window.
func (c *LocalController) HandleWeather(u model.WeatherUpdate) {
	c.d.Window.UpdateWeather(u)
}

// HandleGridSignal records the latest grid-side reading. It is consumed
// by the next cycle.
func (c *LocalController) HandleGridSignal(sig model.GridSignal) {
	c.inbox.putSignal(sig)
}

// HandleModel queues a merged federated model for adoption at the next
// cycle boundary.
func (c *LocalController) HandleModel(delta model.ModelDelta) {
	c.inbox.putModel(delta)
}

// ClearFault releases the latched Fault state. It is the supervisory
// entry point and never runs as part of the cycle.
func (c *LocalController) ClearFault() {
	c.d.Machine.ClearFault(time.Now())
}

// Summary builds the gossip payload from the last completed cycle.
func (c *LocalController) Summary() gossip.Summary {
	c.mu.Lock()
	res := c.lastResult
	c.mu.Unlock()
	s := gossip.Summary{
		NodeID:       c.d.Node.ID,
		State:        res.State.String(),
		ResidualKind: res.Plan.Residual.Kind.String(),
		ResidualKW:   res.Plan.Residual.PowerKW,
		Delta:        model.ModelDelta{NodeID: c.d.Node.ID, Weights: c.d.Estimator.ModelWeights()},
		Timestamp:    time.Now(),
	}
	switch res.Plan.Residual.Kind {
	case model.ResidualUnmetDemand:
		s.ImportRequestKW = res.Plan.Residual.PowerKW
	case model.ResidualCurtailedSurplus:
		s.ExportOfferKW = res.Plan.Residual.PowerKW
	}
	return s
}

// NeedsReaggregation proxies the estimator's drift detector so the
// federation loop can trigger an off-cadence merge.
func (c *LocalController) NeedsReaggregation() bool {
	return c.d.Estimator.NeedsReaggregation()
}

// Run drives the control loop until the context is cancelled.
func (c *LocalController) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(c.cfg.PeriodSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			c.RunCycle(now)
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle executes one control cycle: snapshot, forecast, plan, gate,
// emit, record. It is exported so one-shot tooling and tests can step the
// controller without the ticker.
func (c *LocalController) RunCycle(now time.Time) metrics.CycleResult {
	start := time.Now()

	snap := c.d.Window.Snapshot(now)
	c.adoptModel()
	c.recordActual(snap)
	c.applySoC(snap)

	win := c.d.Estimator.Estimate(snap)
	tiers := c.d.Bank.Tiers()

	prev := c.d.Machine.State()
	state := c.d.Machine.Step(now, islanding.Input{
		Signal:           c.inbox.takeSignal(),
		CanSustain:       c.d.Planner.CanSustain(win, tiers, c.d.Machine.AutonomyHorizon()),
		StorageExhausted: storageExhausted(tiers, c.dispatchCfg.CycleHours()),
		TelemetryLost:    !c.d.Bank.TelemetryHealthy(),
		UnmetDemand:      c.lastUnmet,
		DegradedComms:    c.overruns >= c.cfg.MaxOverruns,
	})
	gate := c.d.Machine.Gate()
	c.actuateBreaker(prev, state, gate)

	var plan model.DispatchPlan
	if gate.AllowDispatch {
		plan = c.plan(win, tiers)
	} else {
		c.lastUnmet = false
	}

	step, _ := win.Next()
	elapsed := time.Since(start)
	result := metrics.CycleResult{
		NodeID:   c.d.Node.ID,
		State:    state,
		Plan:     plan,
		Forecast: step,
		Elapsed:  elapsed,
		Overrun:  c.trackOverrun(elapsed),
		Time:     now,
	}
	c.mu.Lock()
	c.lastResult = result
	c.mu.Unlock()

	observeCycle(result)
	if err := c.d.Sink.RecordCycleResult([]metrics.CycleResult{result}); err != nil {
		c.d.Logger.Warnf("controller: record cycle: %v", err)
	}
	c.logPlan(now, state, plan)
	return result
}

// adoptModel swaps in a queued federated model, if any arrived since the
// last cycle.
func (c *LocalController) adoptModel() {
	delta, ok := c.inbox.takeModel()
	if !ok {
		return
	}
	if err := c.d.Estimator.SetModel(delta.Weights); err != nil {
		c.d.Logger.Warnf("controller: reject model from %s: %v", delta.NodeID, err)
		return
	}
	c.d.Logger.Infof("controller: adopted federated model (%d weights)", len(delta.Weights))
}

// recordActual feeds the measured balance back to the estimator so the
// prediction-error tracker sees ground truth.
func (c *LocalController) recordActual(snap telemetry.Snapshot) {
	prod, okP := snap.Latest(model.QuantityProductionKW)
	cons, okC := snap.Latest(model.QuantityConsumptionKW)
	if okP && okC {
		c.d.Estimator.RecordActual(prod.Value - cons.Value)
	}
}

// applySoC pushes state-of-charge telemetry into the bank. A tier whose
// SoC stream went stale is marked so dispatch excludes it.
func (c *LocalController) applySoC(snap telemetry.Snapshot) {
	for _, s := range snap.Samples[model.QuantityStorageSoC] {
		if err := c.d.Bank.UpdateSoC(s.Source, s.Value); err != nil {
			c.d.Logger.Debugf("controller: soc update for %s: %v", s.Source, err)
		}
	}
	if stale, ok := snap.Stale[model.QuantityStorageSoC]; ok && stale {
		for _, t := range c.d.Bank.Tiers() {
			c.d.Bank.MarkTelemetryLost(t.ID)
		}
	}
}

func (c *LocalController) plan(win model.ForecastWindow, tiers []model.StorageTier) model.DispatchPlan {
	plan, err := c.d.Planner.Plan(win, tiers)
	if err != nil {
		c.d.Logger.Errorf("controller: plan rejected: %v", err)
		c.lastUnmet = false
		return model.DispatchPlan{}
	}
	if c.d.Bank.Commit(plan, c.dispatchCfg.CycleHours()) {
		c.emit(plan)
	}
	c.lastUnmet = plan.Residual.Kind == model.ResidualUnmetDemand
	if plan.Residual.Kind != model.ResidualNone && c.d.Bus != nil {
		shed := []model.ShedRecommendation(nil)
		if c.lastUnmet {
			shed = dispatch.ShedRecommendations(c.d.Loads, plan.Residual.PowerKW)
		}
		c.d.Bus.Publish(events.ResidualEvent{Residual: plan.Residual, Shed: shed})
	}
	return plan
}

// actuateBreaker drives the grid-tie breaker on state transitions. Opening
// is a safety command and stays permitted under a SafetyOnly gate; closing
// is a grid-tie command and only fires once reconnection is confirmed, so
// Resynchronizing never touches the breaker.
func (c *LocalController) actuateBreaker(prev, state model.ConnectionState, gate islanding.CommandGate) {
	if state == prev {
		return
	}
	var open bool
	switch {
	case state == model.IslandDetected || gate.SafetyOnly:
		open = true
	case prev == model.Resynchronizing && state == model.GridConnected && gate.AllowGridTie:
		open = false
	default:
		return
	}
	cmdID, err := c.d.Publisher.EmitBreaker(open)
	if err != nil {
		c.d.Logger.Errorf("controller: breaker open=%v: %v", open, err)
		commandFailures.Inc()
		return
	}
	c.d.Logger.Infof("controller: breaker open=%v on %s -> %s", open, prev, state)
	timeout := time.Duration(c.cfg.AckTimeoutMS) * time.Millisecond
	go func() {
		ok, err := c.d.Publisher.WaitForAck(cmdID, timeout)
		if err != nil || !ok {
			c.d.Logger.Warnf("controller: no breaker ack: %v", err)
			commandFailures.Inc()
		}
	}()
}

// emit sends one setpoint per tier and waits for acknowledgments off the
// cycle path, the way the actuation layer expects.
func (c *LocalController) emit(plan model.DispatchPlan) {
	timeout := time.Duration(c.cfg.AckTimeoutMS) * time.Millisecond
	for tierID, powerKW := range plan.Flows {
		if powerKW == 0 {
			continue
		}
		cmdID, err := c.d.Publisher.EmitDispatch(tierID, powerKW, plan.ID)
		if err != nil {
			c.d.Logger.Errorf("controller: emit to %s: %v", tierID, err)
			commandFailures.Inc()
			continue
		}
		go func(tierID, cmdID string) {
			ok, err := c.d.Publisher.WaitForAck(cmdID, timeout)
			if err != nil || !ok {
				c.d.Logger.Warnf("controller: no ack from %s: %v", tierID, err)
				commandFailures.Inc()
			}
		}(tierID, cmdID)
	}
	if c.d.Bus != nil {
		c.d.Bus.Publish(events.PlanEvent{Plan: plan})
	}
}

func (c *LocalController) trackOverrun(elapsed time.Duration) bool {
	budget := time.Duration(c.cfg.BudgetMS) * time.Millisecond
	if elapsed <= budget {
		c.overruns = 0
		return false
	}
	c.overruns++
	cycleOverruns.Inc()
	if c.d.Bus != nil {
		c.d.Bus.Publish(events.CycleOverrunEvent{Elapsed: elapsed, Budget: budget, Consecutive: c.overruns})
	}
	c.d.Logger.Warnf("controller: cycle overrun %s > %s (streak %d)", elapsed, budget, c.overruns)
	return true
}

func (c *LocalController) logPlan(now time.Time, state model.ConnectionState, plan model.DispatchPlan) {
	if c.d.PlanLog == nil || plan.ID == "" {
		return
	}
	rec := planlog.Record{Timestamp: now, NodeID: c.d.Node.ID, State: state.String(), Plan: plan}
	if c.lastUnmet {
		rec.Shed = dispatch.ShedRecommendations(c.d.Loads, plan.Residual.PowerKW)
	}
	if err := c.d.PlanLog.Append(context.Background(), rec); err != nil {
		c.d.Logger.Warnf("controller: plan log: %v", err)
	}
}

func storageExhausted(tiers []model.StorageTier, cycleHours float64) bool {
	for _, t := range tiers {
		if !t.TelemetryOK {
			continue
		}
		if t.AvailableKW(cycleHours) > 0 {
			return false
		}
	}
	return true
}
