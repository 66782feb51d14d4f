package dispatch

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/resilia-grid/neurogrid/core/logger"
	"github.com/resilia-grid/neurogrid/core/model"
)

// Planner computes a DispatchPlan from the forecast and the current tier
// states. Tiers are consulted in strict response-rank order; equal ranks
// prefer the tier with higher round-trip efficiency.
type Planner struct {
	cfg Config
	log logger.Logger
}

// NewPlanner creates a planner.
func NewPlanner(cfg Config, log logger.Logger) *Planner {
	cfg.SetDefaults()
	return &Planner{cfg: cfg, log: log}
}

// byRank orders tiers fastest first, higher efficiency breaking rank ties.
func byRank(tiers []model.StorageTier) []model.StorageTier {
	sorted := append([]model.StorageTier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].Efficiency > sorted[j].Efficiency
	})
	return sorted
}

// Plan produces the dispatch plan for the next control cycle. A plan that
// fails validation is recomputed once with tightened limits; the returned
// plan always satisfies every tier's rate and capacity limits.
func (p *Planner) Plan(win model.ForecastWindow, tiers []model.StorageTier) (model.DispatchPlan, error) {
	step, ok := win.Next()
	if !ok {
		return model.DispatchPlan{}, fmt.Errorf("dispatch: empty forecast window")
	}
	plan := p.compute(step, tiers, 1)
	if err := Validate(plan, tiers, p.cfg.CycleHours()); err != nil {
		p.log.Warnf("plan rejected, recomputing with safety margin: %v", err)
		plan = p.compute(step, tiers, p.cfg.SafetyMargin)
		if err := Validate(plan, tiers, p.cfg.CycleHours()); err != nil {
			return model.DispatchPlan{}, fmt.Errorf("dispatch: recomputed plan still invalid: %w", err)
		}
	}
	return plan, nil
}

func (p *Planner) compute(step model.ForecastStep, tiers []model.StorageTier, margin float64) model.DispatchPlan {
	plan := model.DispatchPlan{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Flows:     make(map[string]float64, len(tiers)),
		BalanceKW: step.BalanceKW,
		Degraded:  step.Degraded,
	}
	cycleHours := p.cfg.CycleHours()
	remaining := math.Abs(step.BalanceKW)
	charging := step.BalanceKW > 0

	for _, t := range byRank(tiers) {
		if remaining <= p.cfg.ToleranceKW {
			remaining = 0
			break
		}
		var room float64
		if charging {
			room = t.HeadroomKW(cycleHours) * margin
		} else {
			room = t.AvailableKW(cycleHours) * margin
		}
		if room <= 0 {
			continue
		}
		alloc := math.Min(room, remaining)
		if charging {
			plan.Flows[t.ID] = alloc
		} else {
			plan.Flows[t.ID] = -alloc
		}
		remaining -= alloc
	}

	if remaining > p.cfg.ToleranceKW {
		if charging {
			plan.Residual = model.Residual{Kind: model.ResidualCurtailedSurplus, PowerKW: remaining}
		} else {
			plan.Residual = model.Residual{Kind: model.ResidualUnmetDemand, PowerKW: remaining}
		}
	}
	return plan
}

// CanSustain reports whether the tiers cover every forecast deficit over the
// first `horizon` of the window. The islanding machine uses this to confirm
// autonomous operation.
func (p *Planner) CanSustain(win model.ForecastWindow, tiers []model.StorageTier, horizon time.Duration) bool {
	if win.StepSize <= 0 {
		return false
	}
	stepHours := win.StepSize.Hours()
	var storedKWh float64
	for _, t := range tiers {
		storedKWh += t.SoC * t.CapacityKWh
	}
	var elapsed time.Duration
	for _, s := range win.Steps {
		if elapsed >= horizon {
			break
		}
		if s.BalanceKW < 0 {
			storedKWh += s.BalanceKW * stepHours // deficit drains storage
			if storedKWh < 0 {
				return false
			}
		}
		elapsed += win.StepSize
	}
	return true
}

// Validate checks the plan against every tier's rate and capacity limits.
// The caller recomputes on error; a violation in an already-committed plan
// is a programming-contract failure handled in Bank.Commit.
func Validate(plan model.DispatchPlan, tiers []model.StorageTier, cycleHours float64) error {
	index := make(map[string]model.StorageTier, len(tiers))
	for _, t := range tiers {
		index[t.ID] = t
	}
	for id, flow := range plan.Flows {
		t, ok := index[id]
		if !ok {
			return fmt.Errorf("flow for unknown tier %s", id)
		}
		const eps = 1e-9
		if flow > 0 {
			if flow > t.MaxChargeKW+eps {
				return fmt.Errorf("tier %s: charge %0.2f kW exceeds rate limit %0.2f", id, flow, t.MaxChargeKW)
			}
			if flow*cycleHours > (1-t.SoC)*t.CapacityKWh+eps {
				return fmt.Errorf("tier %s: charge exceeds remaining capacity", id)
			}
		} else if flow < 0 {
			if -flow > t.MaxDischargeKW+eps {
				return fmt.Errorf("tier %s: discharge %0.2f kW exceeds rate limit %0.2f", id, -flow, t.MaxDischargeKW)
			}
			if -flow*cycleHours > t.SoC*t.CapacityKWh+eps {
				return fmt.Errorf("tier %s: discharge exceeds stored energy", id)
			}
		}
	}
	return nil
}
