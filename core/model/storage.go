package model

import "fmt"

// TierKind names a storage technology class.
type TierKind string

const (
	TierBattery  TierKind = "battery"
	TierThermal  TierKind = "thermal"
	TierHydrogen TierKind = "hydrogen"
	TierVehicle  TierKind = "vehicle" // mobile V2G resources
)

// StorageTier represents one storage stage of the microgrid. Rank orders
// tiers by response speed, lower responding faster. Tier state is mutated
// only by the dispatcher once a plan is committed.
type StorageTier struct {
	ID             string   `json:"id"`
	Kind           TierKind `json:"kind"`
	Rank           int      `json:"rank"`
	CapacityKWh    float64  `json:"capacity_kwh"`
	SoC            float64  `json:"soc"` // fraction of capacity, 0..1
	MaxChargeKW    float64  `json:"max_charge_kw"`
	MaxDischargeKW float64  `json:"max_discharge_kw"`
	Efficiency     float64  `json:"efficiency"` // round-trip, 0..1
	TelemetryOK    bool     `json:"telemetry_ok"`
}

// Validate checks that the tier configuration is sound.
func (t StorageTier) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tier id is required")
	}
	if t.CapacityKWh <= 0 {
		return fmt.Errorf("tier %s: capacity must be positive", t.ID)
	}
	if t.SoC < 0 || t.SoC > 1 {
		return fmt.Errorf("tier %s: soc out of range: %v", t.ID, t.SoC)
	}
	if t.MaxChargeKW < 0 || t.MaxDischargeKW < 0 {
		return fmt.Errorf("tier %s: rate limits must be non-negative", t.ID)
	}
	if t.Efficiency <= 0 || t.Efficiency > 1 {
		return fmt.Errorf("tier %s: efficiency out of range: %v", t.ID, t.Efficiency)
	}
	return nil
}

// HeadroomKW returns the charging power the tier can accept this cycle,
// limited by its charge rate and remaining capacity.
func (t StorageTier) HeadroomKW(cycleHours float64) float64 {
	if cycleHours <= 0 {
		return 0
	}
	free := (1 - t.SoC) * t.CapacityKWh
	byCapacity := free / cycleHours
	if byCapacity < t.MaxChargeKW {
		return byCapacity
	}
	return t.MaxChargeKW
}

// AvailableKW returns the discharging power the tier can deliver this cycle,
// limited by its discharge rate and stored energy.
func (t StorageTier) AvailableKW(cycleHours float64) float64 {
	if cycleHours <= 0 {
		return 0
	}
	stored := t.SoC * t.CapacityKWh
	byEnergy := stored / cycleHours
	if byEnergy < t.MaxDischargeKW {
		return byEnergy
	}
	return t.MaxDischargeKW
}
