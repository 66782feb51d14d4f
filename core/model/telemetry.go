package model

import "time"

// Quantity names a tracked telemetry series.
type Quantity string

const (
	QuantityProductionKW  Quantity = "production_kw"
	QuantityConsumptionKW Quantity = "consumption_kw"
	QuantityStorageSoC    Quantity = "storage_soc"
	QuantityGridFrequency Quantity = "grid_frequency_hz"
	QuantityGridVoltage   Quantity = "grid_voltage_v"
)

// TelemetrySample is one normalized sensor or meter reading. Samples are
// immutable once ingested.
type TelemetrySample struct {
	Source       string    `json:"source"`
	Quantity     Quantity  `json:"quantity"`
	Value        float64   `json:"value"`
	Timestamp    time.Time `json:"timestamp"`
	SampleRateHz float64   `json:"sample_rate_hz"`
	Tier         string    `json:"tier,omitempty"` // set for per-tier SoC readings
}

// WeatherUpdate is an external forecast-feed entry consumed at forecast
// regeneration time. ProductionScale adjusts expected output per step, 1
// meaning nominal conditions.
type WeatherUpdate struct {
	Timestamp       time.Time `json:"timestamp"`
	ProductionScale []float64 `json:"production_scale"`
}
