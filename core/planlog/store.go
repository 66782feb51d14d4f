package planlog

import (
	"context"
	"time"

	"github.com/resilia-grid/neurogrid/core/model"
)

// Record captures one committed dispatch plan and its outcome.
type Record struct {
	Timestamp time.Time                  `json:"timestamp"`
	NodeID    string                     `json:"node_id"`
	State     string                     `json:"state"`
	Plan      model.DispatchPlan         `json:"plan"`
	Shed      []model.ShedRecommendation `json:"shed,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start    time.Time
	End      time.Time
	Residual model.ResidualKind
	HasShed  bool
}

// Store persists plan records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

func matches(rec Record, q Query) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.Residual != model.ResidualNone && rec.Plan.Residual.Kind != q.Residual {
		return false
	}
	if q.HasShed && len(rec.Shed) == 0 {
		return false
	}
	return true
}
