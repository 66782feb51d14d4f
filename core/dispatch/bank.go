package dispatch

import (
	"fmt"
	"sync"

	"github.com/resilia-grid/neurogrid/core/model"
)

// Bank owns the live storage-tier states. Tier state is mutated only here,
// after a dispatch decision is committed. Commits are idempotent: a plan ID
// already applied leaves the tiers untouched.
type Bank struct {
	mu      sync.RWMutex
	tiers   []model.StorageTier
	applied map[string]bool
}

// NewBank validates the tier set and creates the bank.
func NewBank(tiers []model.StorageTier) (*Bank, error) {
	for _, t := range tiers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return &Bank{
		tiers:   append([]model.StorageTier(nil), tiers...),
		applied: make(map[string]bool),
	}, nil
}

// Tiers returns a copy of the current tier states.
func (b *Bank) Tiers() []model.StorageTier {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.StorageTier(nil), b.tiers...)
}

// UpdateSoC overwrites a tier's state of charge from telemetry and marks its
// telemetry healthy.
func (b *Bank) UpdateSoC(tierID string, soc float64) error {
	if soc < 0 || soc > 1 {
		return fmt.Errorf("soc out of range: %v", soc)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tiers {
		if b.tiers[i].ID == tierID {
			b.tiers[i].SoC = soc
			b.tiers[i].TelemetryOK = true
			return nil
		}
	}
	return fmt.Errorf("unknown tier %s", tierID)
}

// MarkTelemetryLost flags a tier whose SoC telemetry dropped out.
func (b *Bank) MarkTelemetryLost(tierID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tiers {
		if b.tiers[i].ID == tierID {
			b.tiers[i].TelemetryOK = false
			return
		}
	}
}

// TelemetryHealthy reports whether every tier still has SoC telemetry.
func (b *Bank) TelemetryHealthy() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.tiers {
		if !t.TelemetryOK {
			return false
		}
	}
	return true
}

// Commit applies the plan's flows to the tier states over the cycle
// duration. It returns false when the plan was already applied. A plan that
// violates a rate or capacity limit at commit time is a programming-contract
// failure and panics: the planner must never hand such a plan over.
func (b *Bank) Commit(plan model.DispatchPlan, cycleHours float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.applied[plan.ID] {
		commitDuplicates.Inc()
		return false
	}
	if err := Validate(plan, b.tiers, cycleHours); err != nil {
		panic(fmt.Sprintf("dispatch: committed plan violates tier limits: %v", err))
	}
	for i := range b.tiers {
		flow, ok := plan.Flows[b.tiers[i].ID]
		if !ok {
			continue
		}
		energy := flow * cycleHours // kWh, positive when charging
		if energy > 0 {
			// Round-trip losses are booked on the way in.
			b.tiers[i].SoC += energy * b.tiers[i].Efficiency / b.tiers[i].CapacityKWh
		} else {
			b.tiers[i].SoC += energy / b.tiers[i].CapacityKWh
		}
		if b.tiers[i].SoC > 1 {
			b.tiers[i].SoC = 1
		}
		if b.tiers[i].SoC < 0 {
			b.tiers[i].SoC = 0
		}
		tierFlow.WithLabelValues(b.tiers[i].ID, string(b.tiers[i].Kind)).Set(flow)
	}
	b.applied[plan.ID] = true
	plansCommitted.WithLabelValues(plan.Residual.Kind.String()).Inc()
	residualPower.Set(plan.Residual.PowerKW)
	return true
}
