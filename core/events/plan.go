package events

import "github.com/resilia-grid/neurogrid/core/model"

// PlanEvent is published when a dispatch plan is committed.
type PlanEvent struct {
	Plan model.DispatchPlan
}

// ResidualEvent is published when a plan leaves unmet demand or curtailed
// surplus. The controller reacts by requesting peer import or shedding load.
type ResidualEvent struct {
	Residual model.Residual
	Shed     []model.ShedRecommendation
}
