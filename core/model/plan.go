package model

import "time"

// ResidualKind classifies the unbalanced remainder of a dispatch plan.
type ResidualKind int

const (
	// ResidualNone means the plan fully absorbed the imbalance.
	ResidualNone ResidualKind = iota
	// ResidualUnmetDemand means storage was exhausted before demand was met.
	ResidualUnmetDemand
	// ResidualCurtailedSurplus means storage was saturated before the surplus
	// was absorbed.
	ResidualCurtailedSurplus
)

// String returns the residual kind name used in logs and gossip payloads.
func (k ResidualKind) String() string {
	switch k {
	case ResidualNone:
		return "none"
	case ResidualUnmetDemand:
		return "unmet_demand"
	case ResidualCurtailedSurplus:
		return "curtailed_surplus"
	default:
		return "unknown"
	}
}

// Residual is the portion of the imbalance no tier could absorb.
type Residual struct {
	Kind    ResidualKind `json:"kind"`
	PowerKW float64      `json:"power_kw"` // always non-negative
}

// DispatchPlan maps storage tiers to signed power flows for one control
// cycle. Charge is positive, discharge negative. The ID makes command
// emission idempotent: re-committing an applied plan is a no-op.
type DispatchPlan struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Flows     map[string]float64 `json:"flows"` // tier ID -> kW
	Residual  Residual           `json:"residual"`
	BalanceKW float64            `json:"balance_kw"` // forecast imbalance the plan answers
	Degraded  bool               `json:"degraded"`   // forecast confidence was degraded
}

// TotalFlowKW returns the sum of tier flows, positive meaning net charging.
func (p DispatchPlan) TotalFlowKW() float64 {
	var total float64
	for _, f := range p.Flows {
		total += f
	}
	return total
}

// Load describes a controllable consumer used for shed recommendations.
// Priority 1 is most critical; Flexibility is the sheddable fraction of the
// current demand.
type Load struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"` // residential, commercial, industrial
	DemandKW    float64 `json:"demand_kw"`
	Flexibility float64 `json:"flexibility"` // 0..1
	Priority    int     `json:"priority"`    // 1..10, 1 highest
}

// ShedRecommendation asks a load to reduce its demand by ReductionKW.
type ShedRecommendation struct {
	LoadID      string  `json:"load_id"`
	ReductionKW float64 `json:"reduction_kw"`
}
