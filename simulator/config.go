package main

import "time"

// Config holds parameters for the simulator.
type Config struct {
	Broker       string
	NodeID       string
	Tiers        int
	Interval     time.Duration
	AckLatency   time.Duration
	DropRate     float64
	CapacityKWh  float64
	ChargeKW     float64
	DischargeKW  float64
	ProductionKW float64
	BaseLoadKW   float64
	IslandAfter  time.Duration
}
