package gossip

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/resilia-grid/neurogrid/core/logger"
	"github.com/resilia-grid/neurogrid/core/model"
)

// Summary is the compact state exchanged between peer nodes. It carries
// derived data only, never raw telemetry samples.
type Summary struct {
	NodeID          string           `json:"node_id"`
	State           string           `json:"state"`
	ResidualKind    string           `json:"residual_kind"`
	ResidualKW      float64          `json:"residual_kw"`
	ImportRequestKW float64          `json:"import_request_kw"`
	ExportOfferKW   float64          `json:"export_offer_kw"`
	Delta           model.ModelDelta `json:"delta"`
	Timestamp       time.Time        `json:"timestamp"`
}

// Transport moves summaries between peers. Delivery is best-effort.
type Transport interface {
	// Broadcast publishes the local summary to the peer set.
	Broadcast(ctx context.Context, s Summary) error
	// Collect returns the peer summaries received within the wait duration.
	Collect(ctx context.Context, wait time.Duration) ([]Summary, error)
	Close() error
}

// Config defines the gossip cadence and peer bounds.
type Config struct {
	IntervalSeconds int `json:"interval_seconds"`
	PeerTimeoutMS   int `json:"peer_timeout_ms"`
	// Fanout bounds the neighbor set used per round.
	Fanout int      `json:"fanout"`
	Peers  []string `json:"peers"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 30
	}
	if c.PeerTimeoutMS == 0 {
		c.PeerTimeoutMS = 2000
	}
	if c.Fanout == 0 {
		c.Fanout = 8
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.IntervalSeconds <= 0 || c.PeerTimeoutMS <= 0 || c.Fanout <= 0 {
		return fmt.Errorf("gossip intervals and fanout must be positive")
	}
	return nil
}

// Gossiper exchanges summaries with a bounded peer set on its own cadence,
// never blocking the control cycle.
type Gossiper struct {
	cfg       Config
	nodeID    string
	transport Transport
	log       logger.Logger

	mu       sync.RWMutex
	lastSeen map[string]time.Time
}

// New creates a Gossiper.
func New(cfg Config, nodeID string, transport Transport, log logger.Logger) *Gossiper {
	cfg.SetDefaults()
	return &Gossiper{cfg: cfg, nodeID: nodeID, transport: transport, log: log, lastSeen: make(map[string]time.Time)}
}

// Interval returns the configured round cadence.
func (g *Gossiper) Interval() time.Duration {
	return time.Duration(g.cfg.IntervalSeconds) * time.Second
}

// Round broadcasts the local summary and collects peer responses until the
// per-peer timeout. Missing or stale peers are excluded from the result,
// not treated as failures. The result is bounded to the configured fanout.
func (g *Gossiper) Round(ctx context.Context, local Summary) ([]Summary, error) {
	if err := g.transport.Broadcast(ctx, local); err != nil {
		return nil, fmt.Errorf("gossip broadcast: %w", err)
	}
	wait := time.Duration(g.cfg.PeerTimeoutMS) * time.Millisecond
	received, err := g.transport.Collect(ctx, wait)
	if err != nil {
		// Collection errors degrade to an empty peer set for this round.
		g.log.Warnf("gossip collect: %v", err)
		return nil, nil
	}

	maxAge := 2 * g.Interval()
	latest := make(map[string]Summary, len(received))
	for _, s := range received {
		if s.NodeID == g.nodeID {
			continue
		}
		if local.Timestamp.Sub(s.Timestamp) > maxAge {
			peersExcluded.Inc()
			g.log.Debugf("excluding stale peer %s", s.NodeID)
			continue
		}
		if prev, ok := latest[s.NodeID]; !ok || s.Timestamp.After(prev.Timestamp) {
			latest[s.NodeID] = s
		}
	}

	peers := make([]Summary, 0, len(latest))
	for id, s := range latest {
		peers = append(peers, s)
		g.mu.Lock()
		g.lastSeen[id] = s.Timestamp
		g.mu.Unlock()
	}
	// Deterministic bound on the neighbor set.
	sort.Slice(peers, func(i, j int) bool { return peers[i].NodeID < peers[j].NodeID })
	if len(peers) > g.cfg.Fanout {
		peers = peers[:g.cfg.Fanout]
	}
	peersReached.Set(float64(len(peers)))
	return peers, nil
}

// LastSeen returns when the peer last responded.
func (g *Gossiper) LastSeen(nodeID string) (time.Time, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.lastSeen[nodeID]
	return t, ok
}

// Close releases the transport.
func (g *Gossiper) Close() error { return g.transport.Close() }

// NetImbalanceKW sums the signed residuals of the summaries: unmet demand
// counts negative, curtailed surplus positive. Addition commutes, so the
// aggregate is independent of peer ordering and tolerant of partial sets.
func NetImbalanceKW(summaries []Summary) float64 {
	var net float64
	for _, s := range summaries {
		switch s.ResidualKind {
		case model.ResidualUnmetDemand.String():
			net -= s.ResidualKW
		case model.ResidualCurtailedSurplus.String():
			net += s.ResidualKW
		}
	}
	return net
}
