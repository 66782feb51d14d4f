package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// SimulatedTier connects to MQTT, applies setpoints to its battery,
// acknowledges commands and publishes SoC telemetry.
type SimulatedTier struct {
	ID       string
	NodeID   string
	Broker   string
	Interval time.Duration
	Strategy AckStrategy
	Battery  *Battery

	client paho.Client
	cmdCh  chan tierCommand
}

type tierCommand struct {
	CommandID string  `json:"command_id"`
	PlanID    string  `json:"plan_id"`
	TierID    string  `json:"tier_id"`
	PowerKW   float64 `json:"power_kw"`
}

// NewSimulatedTier creates a new tier actuator.
func NewSimulatedTier(id, nodeID, broker string, interval time.Duration, strat AckStrategy, bat *Battery) *SimulatedTier {
	return &SimulatedTier{
		ID:       id,
		NodeID:   nodeID,
		Broker:   broker,
		Interval: interval,
		Strategy: strat,
		Battery:  bat,
		cmdCh:    make(chan tierCommand, 50),
	}
}

// Run connects to the broker and serves commands until ctx is done.
func (t *SimulatedTier) Run(ctx context.Context) error {
	cli, err := newMQTTClient(t.Broker, fmt.Sprintf("sim-%s-%s", t.NodeID, t.ID))
	if err != nil {
		return err
	}
	t.client = cli
	go t.worker(ctx)
	go t.publishSoC(ctx)
	topic := fmt.Sprintf("ng/%s/cmd/tier/%s", t.NodeID, t.ID)
	if token := cli.Subscribe(topic, 0, t.onCommand); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}
	<-ctx.Done()
	close(t.cmdCh)
	cli.Disconnect(250)
	return nil
}

func (t *SimulatedTier) onCommand(_ paho.Client, msg paho.Message) {
	var cmd tierCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		log.Printf("%s: decode command: %v", t.ID, err)
		return
	}
	select {
	case t.cmdCh <- cmd:
	default:
		log.Printf("%s: command queue full, dropping %s", t.ID, cmd.CommandID)
	}
}

func (t *SimulatedTier) worker(ctx context.Context) {
	for {
		select {
		case cmd, ok := <-t.cmdCh:
			if !ok {
				return
			}
			applied := t.Battery.ApplyPower(cmd.PowerKW, t.Interval)
			log.Printf("%s: applied %.1f kW for plan %s", t.ID, applied, cmd.PlanID)
			t.Strategy.Ack(ctx, t.client, t.NodeID, cmd.CommandID)
		case <-ctx.Done():
			return
		}
	}
}

func (t *SimulatedTier) publishSoC(ctx context.Context) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			payload, err := json.Marshal(map[string]any{
				"source":    t.ID,
				"quantity":  "storage_soc",
				"value":     t.Battery.State(),
				"timestamp": now,
				"tier":      t.ID,
			})
			if err != nil {
				log.Printf("%s: marshal soc: %v", t.ID, err)
				continue
			}
			topic := fmt.Sprintf("ng/%s/telemetry/storage_soc", t.NodeID)
			t.client.Publish(topic, 0, false, payload)
		}
	}
}
