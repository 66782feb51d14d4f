package islanding

import (
	"math"
	"sync"
	"time"

	"github.com/resilia-grid/neurogrid/core/events"
	"github.com/resilia-grid/neurogrid/core/logger"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/internal/eventbus"
)

// Input is the per-cycle observation set the machine evaluates. Signal is
// nil when no grid-side reading arrived this cycle.
type Input struct {
	Signal *model.GridSignal
	// CanSustain reports whether storage covers the forecast demand for the
	// configured autonomy horizon.
	CanSustain bool
	// StorageExhausted is true when every tier is empty.
	StorageExhausted bool
	// TelemetryLost is true when storage telemetry dropped out.
	TelemetryLost bool
	// UnmetDemand is true when the last plan flagged unmet demand.
	UnmetDemand bool
	// DegradedComms is set after too many consecutive cycle-budget overruns.
	DegradedComms bool
}

// CommandGate tells the controller which command classes the current state
// permits.
type CommandGate struct {
	AllowDispatch bool
	AllowGridTie  bool
	SafetyOnly    bool
}

// Machine tracks the microgrid's ConnectionState. It owns the state
// exclusively; other components read it through State(). Fault is latched
// until ClearFault is called from the supervisory channel.
type Machine struct {
	cfg Config
	log logger.Logger
	bus eventbus.EventBus

	mu            sync.Mutex
	state         model.ConnectionState
	lastHeartbeat time.Time
	outOfTolSince time.Time
	inTolSince    time.Time
	faultReason   string
}

// NewMachine creates a machine starting in GridConnected.
func NewMachine(cfg Config, log logger.Logger, bus eventbus.EventBus) *Machine {
	cfg.SetDefaults()
	now := time.Now()
	return &Machine{cfg: cfg, log: log, bus: bus, state: model.GridConnected, lastHeartbeat: now}
}

// State returns the current connection state.
func (m *Machine) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// FaultReason returns why the machine latched Fault, empty otherwise.
func (m *Machine) FaultReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faultReason
}

// inTolerance checks the grid-side signal against the configured bands.
func (m *Machine) inTolerance(sig model.GridSignal) bool {
	if math.Abs(sig.FrequencyHz-m.cfg.NominalFrequencyHz) > m.cfg.FrequencyToleranceHz {
		return false
	}
	if math.Abs(sig.VoltageV-m.cfg.NominalVoltageV) > m.cfg.NominalVoltageV*m.cfg.VoltageTolerancePct {
		return false
	}
	return math.Abs(sig.PhaseOffset) <= m.cfg.PhaseToleranceDeg
}

// Step evaluates transitions once per control cycle.
//
//gocyclo:ignore
func (m *Machine) Step(now time.Time, in Input) model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == model.Fault {
		return m.state // terminal until cleared externally
	}

	// Storage telemetry loss combined with unmet demand is irrecoverable
	// locally, regardless of the current state.
	if in.TelemetryLost && in.UnmetDemand {
		m.transition(model.Fault, "storage telemetry loss with unmet demand", now)
		return m.state
	}

	gridHealthy := false
	if in.Signal != nil {
		if in.Signal.Heartbeat {
			m.lastHeartbeat = in.Signal.Timestamp
		}
		if m.inTolerance(*in.Signal) {
			gridHealthy = true
			if m.inTolSince.IsZero() {
				m.inTolSince = now
			}
			m.outOfTolSince = time.Time{}
		} else {
			if m.outOfTolSince.IsZero() {
				m.outOfTolSince = now
			}
			m.inTolSince = time.Time{}
		}
	}

	heartbeatLost := now.Sub(m.lastHeartbeat) > time.Duration(m.cfg.HeartbeatTimeoutMS)*time.Millisecond
	debounced := !m.outOfTolSince.IsZero() && now.Sub(m.outOfTolSince) > time.Duration(m.cfg.DebounceMS)*time.Millisecond

	switch m.state {
	case model.GridConnected:
		if heartbeatLost || debounced || in.DegradedComms {
			reason := "grid heartbeat lost"
			if debounced {
				reason = "grid readings out of tolerance past debounce"
			} else if in.DegradedComms && !heartbeatLost {
				reason = "degraded communication"
			}
			m.transition(model.IslandDetected, reason, now)
		}
	case model.IslandDetected:
		if in.CanSustain {
			m.transition(model.IslandStable, "storage sustains autonomy horizon", now)
		} else if in.StorageExhausted {
			m.transition(model.Fault, "autonomy horizon unmet with storage exhausted", now)
		}
	case model.IslandStable:
		if gridHealthy && !heartbeatLost {
			m.inTolSince = now // restart the confirmation clock on entry
			m.transition(model.Resynchronizing, "grid restored within tolerance", now)
		}
	case model.Resynchronizing:
		if heartbeatLost || (in.Signal != nil && !m.inTolerance(*in.Signal)) {
			m.transition(model.IslandStable, "synchronization check failed", now)
			break
		}
		confirm := time.Duration(m.cfg.ResyncConfirmationMS) * time.Millisecond
		if !m.inTolSince.IsZero() && now.Sub(m.inTolSince) >= confirm {
			m.transition(model.GridConnected, "synchronization confirmed", now)
		}
	}
	return m.state
}

// transition records the state change and publishes it. Caller holds the lock.
func (m *Machine) transition(to model.ConnectionState, reason string, now time.Time) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	if to == model.Fault {
		m.faultReason = reason
		m.log.Errorf("entering fault state: %s", reason)
	} else {
		m.log.Infof("connection state %s -> %s: %s", from, to, reason)
	}
	stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	connectionState.Set(float64(to))
	if m.bus != nil {
		m.bus.Publish(events.StateChangeEvent{From: from, To: to, Reason: reason, At: now})
	}
}

// ClearFault releases the Fault latch from the supervisory channel. The
// machine resumes in IslandDetected so autonomy is re-proven before any
// reconnection.
func (m *Machine) ClearFault(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != model.Fault {
		return
	}
	m.faultReason = ""
	m.lastHeartbeat = now
	m.outOfTolSince = time.Time{}
	m.inTolSince = time.Time{}
	m.transition(model.IslandDetected, "fault cleared by operator", now)
}

// Gate returns the command classes permitted in the current state.
func (m *Machine) Gate() CommandGate {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case model.Fault:
		return CommandGate{SafetyOnly: true}
	case model.Resynchronizing:
		// Dispatch continues; grid-tie commands wait for confirmation.
		return CommandGate{AllowDispatch: true}
	default:
		return CommandGate{AllowDispatch: true, AllowGridTie: m.state == model.GridConnected}
	}
}

// AutonomyHorizon returns the configured minimum autonomous horizon.
func (m *Machine) AutonomyHorizon() time.Duration {
	return time.Duration(m.cfg.AutonomyHorizonMinutes) * time.Minute
}
