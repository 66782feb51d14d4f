package forecast

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/resilia-grid/neurogrid/core/logger"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/core/telemetry"
)

// NumWeights is the size of the model parameter vector exchanged as a
// ModelDelta: gain applied to production level, production trend,
// consumption level and consumption trend.
const NumWeights = 4

// Config defines estimator parameters.
type Config struct {
	HorizonSteps int `json:"horizon_steps"`
	StepSeconds  int `json:"step_seconds"`
	// BaseConfidenceKW is the confidence half-width attached to a fresh step.
	BaseConfidenceKW float64 `json:"base_confidence_kw"`
	// ErrorDecay is the weight of the newest error in the exponential average.
	ErrorDecay float64 `json:"error_decay"`
	// ErrorThresholdKW and ErrorStreak trigger a model re-aggregation request
	// when exceeded for that many consecutive cycles.
	ErrorThresholdKW float64 `json:"error_threshold_kw"`
	ErrorStreak      int     `json:"error_streak"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HorizonSteps == 0 {
		c.HorizonSteps = 12
	}
	if c.StepSeconds == 0 {
		c.StepSeconds = 300
	}
	if c.BaseConfidenceKW == 0 {
		c.BaseConfidenceKW = 5
	}
	if c.ErrorDecay == 0 {
		c.ErrorDecay = 0.2
	}
	if c.ErrorThresholdKW == 0 {
		c.ErrorThresholdKW = 20
	}
	if c.ErrorStreak == 0 {
		c.ErrorStreak = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.HorizonSteps <= 0 || c.StepSeconds <= 0 {
		return fmt.Errorf("horizon_steps and step_seconds must be positive")
	}
	if c.ErrorDecay <= 0 || c.ErrorDecay > 1 {
		return fmt.Errorf("error_decay must be in (0,1]")
	}
	return nil
}

// Estimator turns the telemetry window into a ForecastWindow. It tracks an
// exponentially weighted prediction error and raises a re-aggregation
// request when the error stays above threshold.
type Estimator struct {
	cfg Config
	log logger.Logger

	mu       sync.Mutex
	weights  []float64
	ewErr    float64
	streak   int
	lastProd float64 // model-extrapolated fallbacks for sensor dropout
	lastCons float64
	lastPred float64 // first-step balance of the previous window
	havePred bool
}

// NewEstimator creates an estimator with neutral model weights.
func NewEstimator(cfg Config, log logger.Logger) *Estimator {
	cfg.SetDefaults()
	w := make([]float64, NumWeights)
	for i := range w {
		w[i] = 1
	}
	return &Estimator{cfg: cfg, log: log, weights: w}
}

// levelTrend fits value level and per-second trend over the samples. A
// single sample yields its value with zero trend.
func levelTrend(list []model.TelemetrySample) (level, trend float64) {
	n := len(list)
	if n == 0 {
		return 0, 0
	}
	last := list[n-1]
	if n == 1 {
		return last.Value, 0
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, s := range list {
		xs[i] = s.Timestamp.Sub(last.Timestamp).Seconds()
		ys[i] = s.Value
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return alpha, beta
}

// Estimate produces the forecast window for the snapshot. A stale quantity
// falls back to the last model-extrapolated value and marks every step
// degraded instead of failing.
func (e *Estimator) Estimate(snap telemetry.Snapshot) model.ForecastWindow {
	e.mu.Lock()
	defer e.mu.Unlock()

	step := time.Duration(e.cfg.StepSeconds) * time.Second
	win := model.ForecastWindow{GeneratedAt: snap.TakenAt, StepSize: step}

	prodLevel, prodTrend := levelTrend(snap.Samples[model.QuantityProductionKW])
	consLevel, consTrend := levelTrend(snap.Samples[model.QuantityConsumptionKW])

	prodStale := snap.Stale[model.QuantityProductionKW]
	consStale := snap.Stale[model.QuantityConsumptionKW]
	if prodStale {
		prodLevel, prodTrend = e.lastProd, 0
		e.log.Warnf("production samples stale, extrapolating %0.1f kW", prodLevel)
	}
	if consStale {
		consLevel, consTrend = e.lastCons, 0
		e.log.Warnf("consumption samples stale, extrapolating %0.1f kW", consLevel)
	}

	degraded := prodStale || consStale
	conf := e.cfg.BaseConfidenceKW
	if degraded {
		conf *= 2
	}

	for i := 0; i < e.cfg.HorizonSteps; i++ {
		dt := float64(i+1) * step.Seconds()
		prod := e.weights[0]*prodLevel + e.weights[1]*prodTrend*dt
		cons := e.weights[2]*consLevel + e.weights[3]*consTrend*dt
		if scale := weatherScale(snap.Weather, i); scale >= 0 {
			prod *= scale
		}
		if prod < 0 {
			prod = 0
		}
		if cons < 0 {
			cons = 0
		}
		win.Steps = append(win.Steps, model.ForecastStep{
			Timestamp:  snap.TakenAt.Add(time.Duration(i+1) * step),
			BalanceKW:  prod - cons,
			Confidence: conf,
			Degraded:   degraded,
		})
		if i == 0 {
			e.lastProd, e.lastCons = prod, cons
			e.lastPred = prod - cons
			e.havePred = true
		}
	}
	return win
}

// weatherScale returns the production scale for step i, or -1 when the feed
// has no entry for it.
func weatherScale(w model.WeatherUpdate, i int) float64 {
	if i >= len(w.ProductionScale) {
		return -1
	}
	return w.ProductionScale[i]
}

// RecordActual updates the exponentially weighted prediction error from the
// observed balance of the cycle the previous forecast predicted.
func (e *Estimator) RecordActual(balanceKW float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.havePred {
		return
	}
	err := balanceKW - e.lastPred
	if err < 0 {
		err = -err
	}
	e.ewErr = e.cfg.ErrorDecay*err + (1-e.cfg.ErrorDecay)*e.ewErr
	if e.ewErr > e.cfg.ErrorThresholdKW {
		e.streak++
	} else {
		e.streak = 0
	}
}

// NeedsReaggregation reports whether the sustained prediction error calls
// for a model re-aggregation round.
func (e *Estimator) NeedsReaggregation() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streak >= e.cfg.ErrorStreak
}

// PredictionError returns the current exponentially weighted error in kW.
func (e *Estimator) PredictionError() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ewErr
}

// SetModel replaces the model weights, typically at the start of the cycle
// following a federation round.
func (e *Estimator) SetModel(weights []float64) error {
	if len(weights) != NumWeights {
		return fmt.Errorf("expected %d weights, got %d", NumWeights, len(weights))
	}
	e.mu.Lock()
	e.weights = append([]float64(nil), weights...)
	e.streak = 0
	e.mu.Unlock()
	return nil
}

// ModelWeights returns a copy of the current weights.
func (e *Estimator) ModelWeights() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.weights...)
}
