package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// FeedSimulator publishes production, consumption, weather and grid-signal
// streams for one node. Production follows a sine day-curve scaled by a
// cloud factor; consumption floats around a base load.
type FeedSimulator struct {
	NodeID       string
	Broker       string
	Interval     time.Duration
	ProductionKW float64 // midday peak
	BaseLoadKW   float64
	// IslandAfter cuts the grid heartbeat after this duration. Zero keeps
	// the grid healthy for the whole run.
	IslandAfter time.Duration

	client paho.Client
	start  time.Time
}

// Run publishes the feeds until ctx is done.
func (f *FeedSimulator) Run(ctx context.Context) error {
	cli, err := newMQTTClient(f.Broker, "sim-feeds-"+f.NodeID)
	if err != nil {
		return err
	}
	f.client = cli
	f.start = time.Now()
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cli.Disconnect(250)
			return nil
		case now := <-ticker.C:
			f.publishSample(now, "production_kw", "pv", f.production(now))
			f.publishSample(now, "consumption_kw", "feeder", f.consumption(now))
			f.publishGrid(now)
		}
	}
}

func (f *FeedSimulator) production(now time.Time) float64 {
	// Sine curve peaking at noon, clipped to zero overnight.
	h := float64(now.Hour()) + float64(now.Minute())/60
	v := f.ProductionKW * math.Sin((h-6)/12*math.Pi)
	if v < 0 {
		v = 0
	}
	cloud := 0.9 + 0.2*rng.Float64()
	return v * cloud
}

func (f *FeedSimulator) consumption(time.Time) float64 {
	return f.BaseLoadKW * (0.9 + 0.2*rng.Float64())
}

func (f *FeedSimulator) publishSample(now time.Time, quantity, source string, value float64) {
	payload, err := json.Marshal(map[string]any{
		"source":    source,
		"quantity":  quantity,
		"value":     value,
		"timestamp": now,
	})
	if err != nil {
		log.Printf("marshal %s: %v", quantity, err)
		return
	}
	topic := fmt.Sprintf("ng/%s/telemetry/%s", f.NodeID, quantity)
	f.client.Publish(topic, 0, false, payload)
}

func (f *FeedSimulator) publishGrid(now time.Time) {
	if f.IslandAfter > 0 && now.Sub(f.start) > f.IslandAfter {
		return // heartbeat loss, the node must island
	}
	payload, err := json.Marshal(map[string]any{
		"timestamp":        now,
		"heartbeat":        true,
		"frequency_hz":     50 + 0.05*(rng.Float64()-0.5),
		"voltage_v":        230 + 2*(rng.Float64()-0.5),
		"phase_offset_deg": rng.Float64(),
	})
	if err != nil {
		log.Printf("marshal grid signal: %v", err)
		return
	}
	f.client.Publish(fmt.Sprintf("ng/%s/grid", f.NodeID), 0, false, payload)
}
