package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/resilia-grid/neurogrid/core/controller"
	"github.com/resilia-grid/neurogrid/core/dispatch"
	"github.com/resilia-grid/neurogrid/core/federation"
	"github.com/resilia-grid/neurogrid/core/forecast"
	"github.com/resilia-grid/neurogrid/core/gossip"
	"github.com/resilia-grid/neurogrid/core/islanding"
	"github.com/resilia-grid/neurogrid/core/metrics"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/core/telemetry"
	"github.com/resilia-grid/neurogrid/infra/mqtt"
)

// NodeConfig identifies the local microgrid node.
type NodeConfig struct {
	ID        string   `json:"id"`
	Region    string   `json:"region"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Peers     []string `json:"peers"`
}

// Node converts the configuration into the domain type.
func (c NodeConfig) Node() model.MicrogridNode {
	return model.MicrogridNode{
		ID:        c.ID,
		Region:    c.Region,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Peers:     append([]string(nil), c.Peers...),
	}
}

type Config struct {
	Node       NodeConfig          `json:"node"`
	MQTT       mqtt.Config         `json:"mqtt"`
	Telemetry  telemetry.Config    `json:"telemetry"`
	Forecast   forecast.Config     `json:"forecast"`
	Dispatch   dispatch.Config     `json:"dispatch"`
	Tiers      []model.StorageTier `json:"tiers"`
	Loads      []model.Load        `json:"loads"`
	Islanding  islanding.Config    `json:"islanding"`
	Gossip     gossip.Config       `json:"gossip"`
	Federation federation.Config   `json:"federation"`
	Controller controller.Config   `json:"controller"`
	Metrics    metrics.Config      `json:"metrics"`
	PlanLog    PlanLogConfig       `json:"plan_log"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("NG_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ng_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Telemetry.SetDefaults()
	cfg.Forecast.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Islanding.SetDefaults()
	cfg.Gossip.SetDefaults()
	cfg.Federation.SetDefaults()
	cfg.Controller.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.PlanLog.SetDefaults()
	if err := cfg.Node.Node().Validate(); err != nil {
		return nil, err
	}
	for _, tier := range cfg.Tiers {
		if err := tier.Validate(); err != nil {
			return nil, fmt.Errorf("tier %s: %w", tier.ID, err)
		}
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Forecast.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Islanding.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Gossip.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Federation.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Controller.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.PlanLog.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
