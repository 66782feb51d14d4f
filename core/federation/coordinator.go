package federation

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/resilia-grid/neurogrid/core/logger"
	"github.com/resilia-grid/neurogrid/core/model"
)

// Config defines the aggregation cadence and staleness handling.
type Config struct {
	IntervalSeconds int `json:"interval_seconds"`
	// Decay is the per-round weight multiplier applied to a delta's age;
	// weight = Decay^staleness.
	Decay float64 `json:"decay"`
	// MaxStaleness discards deltas older than this many rounds.
	MaxStaleness int `json:"max_staleness"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 300
	}
	if c.Decay == 0 {
		c.Decay = 0.5
	}
	if c.MaxStaleness == 0 {
		c.MaxStaleness = 5
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive")
	}
	if c.Decay <= 0 || c.Decay > 1 {
		return fmt.Errorf("decay must be in (0,1]")
	}
	if c.MaxStaleness < 0 {
		return fmt.Errorf("max_staleness must be non-negative")
	}
	return nil
}

// Coordinator merges the local model delta with peer deltas. Aggregation is
// a staleness-weighted average over parameter vectors; summing weighted
// contributions commutes, so any permutation of the same peer set yields
// the same model within floating-point tolerance. Raw telemetry never
// enters this path.
type Coordinator struct {
	cfg Config
	log logger.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg Config, log logger.Logger) *Coordinator {
	cfg.SetDefaults()
	return &Coordinator{cfg: cfg, log: log}
}

// Interval returns the configured aggregation cadence.
func (c *Coordinator) Interval() time.Duration {
	return time.Duration(c.cfg.IntervalSeconds) * time.Second
}

// Aggregate produces the updated local model from the local delta and the
// peer deltas received this round. Deltas past the staleness bound or with
// a mismatched parameter count are discarded. It returns the merged delta
// and the number of peer deltas used.
func (c *Coordinator) Aggregate(local model.ModelDelta, peers []model.ModelDelta) (model.ModelDelta, int) {
	dim := len(local.Weights)
	sum := make([]float64, dim)
	var weightTotal float64

	apply := func(d model.ModelDelta) bool {
		if len(d.Weights) != dim {
			c.log.Warnf("discarding delta from %s: parameter count %d != %d", d.NodeID, len(d.Weights), dim)
			return false
		}
		if d.Staleness > c.cfg.MaxStaleness {
			c.log.Debugf("discarding delta from %s: staleness %d", d.NodeID, d.Staleness)
			return false
		}
		w := math.Pow(c.cfg.Decay, float64(d.Staleness))
		floats.AddScaled(sum, w, d.Weights)
		weightTotal += w
		return true
	}

	apply(local)
	used := 0
	for _, d := range peers {
		if apply(d) {
			used++
		}
	}

	merged := local.Clone()
	if weightTotal > 0 {
		floats.Scale(1/weightTotal, sum)
		merged.Weights = sum
	}
	merged.Staleness = 0
	merged.TrainedAt = time.Now()
	deltasAggregated.Add(float64(used))
	return merged, used
}

// Age increments the staleness counter of stored peer deltas between
// rounds, so deltas fade and eventually fall past the bound.
func Age(deltas []model.ModelDelta) []model.ModelDelta {
	aged := make([]model.ModelDelta, 0, len(deltas))
	for _, d := range deltas {
		d.Staleness++
		aged = append(aged, d)
	}
	return aged
}
