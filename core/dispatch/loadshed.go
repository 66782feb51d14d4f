package dispatch

import (
	"sort"

	"github.com/resilia-grid/neurogrid/core/model"
)

// ShedRecommendations distributes an unmet deficit across controllable
// loads. Lower-priority loads shed first; equal priority prefers the more
// flexible load. Each load sheds at most its flexible fraction.
func ShedRecommendations(loads []model.Load, deficitKW float64) []model.ShedRecommendation {
	if deficitKW <= 0 {
		return nil
	}
	sorted := append([]model.Load(nil), loads...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].Flexibility > sorted[j].Flexibility
	})

	var recs []model.ShedRecommendation
	remaining := deficitKW
	for _, l := range sorted {
		if remaining <= 0 {
			break
		}
		flexible := l.DemandKW * l.Flexibility
		if flexible <= 0 {
			continue
		}
		cut := flexible
		if cut > remaining {
			cut = remaining
		}
		recs = append(recs, model.ShedRecommendation{LoadID: l.ID, ReductionKW: cut})
		remaining -= cut
	}
	return recs
}
