package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {
	cfg := parseFlags()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strat := RandomAck{Delay: cfg.AckLatency, DropRate: cfg.DropRate}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Tiers; i++ {
		bat := &Battery{
			CapacityKWh:     cfg.CapacityKWh,
			Soc:             0.5,
			ChargeRateKW:    cfg.ChargeKW,
			DischargeRateKW: cfg.DischargeKW,
		}
		tier := NewSimulatedTier(fmt.Sprintf("bat%d", i+1), cfg.NodeID, cfg.Broker, cfg.Interval, strat, bat)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tier.Run(ctx); err != nil {
				log.Printf("tier %s: %v", tier.ID, err)
			}
		}()
	}

	feeds := &FeedSimulator{
		NodeID:       cfg.NodeID,
		Broker:       cfg.Broker,
		Interval:     cfg.Interval,
		ProductionKW: cfg.ProductionKW,
		BaseLoadKW:   cfg.BaseLoadKW,
		IslandAfter:  cfg.IslandAfter,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feeds.Run(ctx); err != nil {
			log.Printf("feeds: %v", err)
		}
	}()

	wg.Wait()
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.NodeID, "node", "mg-01", "node identifier")
	flag.IntVar(&cfg.Tiers, "tiers", 1, "number of simulated storage tiers")
	flag.DurationVar(&cfg.Interval, "interval", time.Second, "telemetry publish interval")
	flag.DurationVar(&cfg.AckLatency, "ack-latency", 0, "ack latency")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "ack drop rate")
	flag.Float64Var(&cfg.CapacityKWh, "capacity", 100, "tier capacity kWh")
	flag.Float64Var(&cfg.ChargeKW, "charge-rate", 50, "tier charge rate kW")
	flag.Float64Var(&cfg.DischargeKW, "discharge-rate", 50, "tier discharge rate kW")
	flag.Float64Var(&cfg.ProductionKW, "production", 80, "midday production peak kW")
	flag.Float64Var(&cfg.BaseLoadKW, "base-load", 40, "base consumption kW")
	flag.DurationVar(&cfg.IslandAfter, "island-after", 0, "cut the grid heartbeat after this duration")
	flag.Parse()
	return cfg
}
