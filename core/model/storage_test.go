package model

import "testing"

func TestStorageTier_Validate(t *testing.T) {
	tier := StorageTier{ID: "bat1", Kind: TierBattery, CapacityKWh: 100, SoC: 0.5, MaxChargeKW: 20, MaxDischargeKW: 30, Efficiency: 0.95}
	if err := tier.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tier.SoC = 1.2
	if err := tier.Validate(); err == nil {
		t.Fatal("expected error for soc > 1")
	}
	tier.SoC = 0.5
	tier.Efficiency = 0
	if err := tier.Validate(); err == nil {
		t.Fatal("expected error for zero efficiency")
	}
}

func TestStorageTier_HeadroomLimitedByCapacity(t *testing.T) {
	tier := StorageTier{ID: "bat1", CapacityKWh: 10, SoC: 0.9, MaxChargeKW: 50, Efficiency: 0.9}
	// 1 kWh free over a quarter hour allows 4 kW, well under the rate limit.
	if got := tier.HeadroomKW(0.25); got != 4 {
		t.Fatalf("expected 4 kW headroom, got %v", got)
	}
}

func TestStorageTier_HeadroomLimitedByRate(t *testing.T) {
	tier := StorageTier{ID: "bat1", CapacityKWh: 1000, SoC: 0.1, MaxChargeKW: 30, Efficiency: 0.9}
	if got := tier.HeadroomKW(0.25); got != 30 {
		t.Fatalf("expected rate-limited 30 kW, got %v", got)
	}
}

func TestStorageTier_AvailableLimitedByEnergy(t *testing.T) {
	tier := StorageTier{ID: "h2", CapacityKWh: 10, SoC: 0.1, MaxDischargeKW: 100, Efficiency: 0.6}
	if got := tier.AvailableKW(0.5); got != 2 {
		t.Fatalf("expected 2 kW available, got %v", got)
	}
}

func TestForecastWindow_Degraded(t *testing.T) {
	w := ForecastWindow{Steps: []ForecastStep{{BalanceKW: 1}, {BalanceKW: 2, Degraded: true}}}
	if !w.Degraded() {
		t.Fatal("expected degraded window")
	}
	if s, ok := w.Next(); !ok || s.BalanceKW != 1 {
		t.Fatalf("unexpected first step: %+v ok=%v", s, ok)
	}
}
