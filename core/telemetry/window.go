package telemetry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/resilia-grid/neurogrid/core/model"
)

// Config defines the ingest window parameters.
type Config struct {
	// WindowSeconds is the fixed duration of the rolling sample window.
	WindowSeconds int `json:"window_seconds"`
	// StalenessSeconds bounds the age beyond which a quantity is considered stale.
	StalenessSeconds int `json:"staleness_seconds"`
	// Quantities lists the series the estimator depends on.
	Quantities []model.Quantity `json:"quantities"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 900
	}
	if c.StalenessSeconds == 0 {
		c.StalenessSeconds = 30
	}
	if len(c.Quantities) == 0 {
		c.Quantities = []model.Quantity{model.QuantityProductionKW, model.QuantityConsumptionKW}
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive")
	}
	if c.StalenessSeconds <= 0 {
		return fmt.Errorf("staleness_seconds must be positive")
	}
	return nil
}

// Window normalizes incoming samples into a bounded rolling window keyed by
// quantity. The window duration is fixed; the oldest samples are evicted on
// ingest. Samples are immutable once stored. The control cycle owns the
// window; other components read snapshots only.
type Window struct {
	mu        sync.RWMutex
	duration  time.Duration
	staleness time.Duration
	tracked   []model.Quantity
	samples   map[model.Quantity][]model.TelemetrySample
	weather   model.WeatherUpdate
}

// NewWindow creates a rolling window from the configuration.
func NewWindow(cfg Config) *Window {
	cfg.SetDefaults()
	return &Window{
		duration:  time.Duration(cfg.WindowSeconds) * time.Second,
		staleness: time.Duration(cfg.StalenessSeconds) * time.Second,
		tracked:   cfg.Quantities,
		samples:   make(map[model.Quantity][]model.TelemetrySample),
	}
}

// Ingest adds a sample, preserving timestamp order, and evicts samples older
// than the window duration.
func (w *Window) Ingest(s model.TelemetrySample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.samples[s.Quantity]
	list = append(list, s)
	// Out-of-order arrivals are rare; restore ordering when they happen.
	if n := len(list); n > 1 && list[n-1].Timestamp.Before(list[n-2].Timestamp) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Timestamp.Before(list[j].Timestamp)
		})
	}
	cutoff := s.Timestamp.Add(-w.duration)
	for len(list) > 0 && list[0].Timestamp.Before(cutoff) {
		list = list[1:]
	}
	w.samples[s.Quantity] = list
}

// UpdateWeather stores the latest forecast-feed update.
func (w *Window) UpdateWeather(u model.WeatherUpdate) {
	w.mu.Lock()
	w.weather = u
	w.mu.Unlock()
}

// Snapshot is an immutable view of the window taken at a cycle boundary.
type Snapshot struct {
	TakenAt time.Time
	Samples map[model.Quantity][]model.TelemetrySample
	Weather model.WeatherUpdate
	Stale   map[model.Quantity]bool // tracked quantities without a fresh sample
}

// Fresh reports whether every tracked quantity had a fresh sample.
func (s Snapshot) Fresh() bool {
	for _, stale := range s.Stale {
		if stale {
			return false
		}
	}
	return true
}

// Latest returns the most recent sample for the quantity.
func (s Snapshot) Latest(q model.Quantity) (model.TelemetrySample, bool) {
	list := s.Samples[q]
	if len(list) == 0 {
		return model.TelemetrySample{}, false
	}
	return list[len(list)-1], true
}

// Snapshot copies the current window contents and flags stale quantities
// against the configured staleness bound.
func (w *Window) Snapshot(now time.Time) Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	snap := Snapshot{
		TakenAt: now,
		Samples: make(map[model.Quantity][]model.TelemetrySample, len(w.samples)),
		Weather: w.weather,
		Stale:   make(map[model.Quantity]bool, len(w.tracked)),
	}
	for q, list := range w.samples {
		snap.Samples[q] = append([]model.TelemetrySample(nil), list...)
	}
	for _, q := range w.tracked {
		list := w.samples[q]
		if len(list) == 0 {
			snap.Stale[q] = true
			continue
		}
		snap.Stale[q] = now.Sub(list[len(list)-1].Timestamp) > w.staleness
	}
	return snap
}

// Tracked returns the configured quantity list.
func (w *Window) Tracked() []model.Quantity {
	return append([]model.Quantity(nil), w.tracked...)
}
