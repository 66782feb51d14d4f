package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `node:
  id: "mg-01"
  region: "west"
  peers: ["mg-02", "mg-03"]
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  node_id: "mg-01"
  username: "user"
  password: "pass"
  use_tls: false
dispatch:
  cycle_seconds: 1
  safety_margin: 0.9
tiers:
  - id: "bat1"
    kind: "battery"
    rank: 1
    capacity_kwh: 100
    soc: 0.5
    max_charge_kw: 50
    max_discharge_kw: 50
    efficiency: 0.95
    telemetry_ok: true
islanding:
  heartbeat_timeout_ms: 400
gossip:
  interval_seconds: 15
  fanout: 4
federation:
  decay: 0.5
plan_log:
  backend: "sqlite"
  path: "plans.db"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"node.id", cfg.Node.ID, "mg-01"},
		{"node.peers", len(cfg.Node.Peers), 2},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"dispatch.safety_margin", cfg.Dispatch.SafetyMargin, 0.9},
		{"tier", cfg.Tiers[0].ID, "bat1"},
		{"islanding.heartbeat", cfg.Islanding.HeartbeatTimeoutMS, 400},
		{"islanding.debounce_default", cfg.Islanding.DebounceMS, 200},
		{"gossip.fanout", cfg.Gossip.Fanout, 4},
		{"federation.decay", cfg.Federation.Decay, 0.5},
		{"plan_log.backend", cfg.PlanLog.Backend, "sqlite"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestLoadRejectsInvalidTier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `node:
  id: "mg-01"
tiers:
  - id: "bat1"
    kind: "battery"
    rank: 1
    capacity_kwh: -5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected tier validation error")
	}
}
