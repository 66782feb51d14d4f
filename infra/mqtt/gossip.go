package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/resilia-grid/neurogrid/core/gossip"
	"github.com/resilia-grid/neurogrid/infra/logger"
)

const gossipTopic = "ng/gossip/summary"

// GossipTransport implements gossip.Transport over a shared MQTT topic.
// Every node publishes its summary there and buffers the ones it hears;
// the gossiper filters and bounds the peer set.
type GossipTransport struct {
	cli paho.Client
	log logger.Logger
	qos byte

	mu  sync.Mutex
	buf []gossip.Summary
}

// NewGossipTransport connects a dedicated MQTT session and subscribes the
// shared summary topic.
func NewGossipTransport(cfg Config) (*GossipTransport, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	id := cfg.ClientID
	if id != "" {
		id += "-gossip"
	} else {
		id = "gossip-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	t := &GossipTransport{cli: cli, log: logger.New("gossip_transport"), qos: 1}
	if q, ok := cfg.QoS["gossip"]; ok {
		t.qos = q
	}
	if token := cli.Subscribe(gossipTopic, t.qos, t.onSummary); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", gossipTopic, token.Error())
	}
	return t, nil
}

func (t *GossipTransport) onSummary(_ paho.Client, msg paho.Message) {
	var s gossip.Summary
	if err := json.Unmarshal(msg.Payload(), &s); err != nil {
		t.log.Errorf("decode summary: %v", err)
		return
	}
	t.mu.Lock()
	t.buf = append(t.buf, s)
	t.mu.Unlock()
}

// Broadcast publishes the local summary to the shared topic.
func (t *GossipTransport) Broadcast(ctx context.Context, s gossip.Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	token := t.cli.Publish(gossipTopic, t.qos, false, payload)
	token.Wait()
	return token.Error()
}

// Collect waits for the collection window and returns the summaries heard
// since the last call.
func (t *GossipTransport) Collect(ctx context.Context, wait time.Duration) ([]gossip.Summary, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.mu.Lock()
	out := t.buf
	t.buf = nil
	t.mu.Unlock()
	return out, nil
}

// Close disconnects the MQTT session.
func (t *GossipTransport) Close() error {
	t.cli.Unsubscribe(gossipTopic)
	t.cli.Disconnect(250)
	return nil
}
