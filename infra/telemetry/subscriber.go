package telemetry

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/infra/logger"
	infmqtt "github.com/resilia-grid/neurogrid/infra/mqtt"
)

// Sink receives decoded feed messages. The controller implements it.
type Sink interface {
	HandleSample(model.TelemetrySample)
	HandleWeather(model.WeatherUpdate)
	HandleGridSignal(model.GridSignal)
}

// Subscriber bridges the MQTT telemetry topics to the control loop. One
// subscriber serves one node; sample producers publish to
// ng/<node>/telemetry/<quantity>, the weather feed to ng/<node>/weather and
// the grid-side sensor to ng/<node>/grid.
type Subscriber struct {
	cli    paho.Client
	nodeID string
	sink   Sink
	log    logger.Logger

	samples prometheus.Counter
	decodes prometheus.Counter
}

// NewSubscriber connects a dedicated MQTT session and subscribes the feed
// topics for the node.
func NewSubscriber(mqttCfg infmqtt.Config, sink Sink) (*Subscriber, error) {
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	s := &Subscriber{
		cli:     cli,
		nodeID:  mqttCfg.NodeID,
		sink:    sink,
		log:     logger.New("telemetry"),
		samples: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_samples_total", Help: "Number of telemetry samples ingested"}),
		decodes: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_decode_errors_total", Help: "Number of telemetry payloads that failed to decode"}),
	}
	prometheus.MustRegister(s.samples, s.decodes)
	if err := s.subscribe(); err != nil {
		cli.Disconnect(250)
		return nil, err
	}
	return s, nil
}

func (s *Subscriber) subscribe() error {
	subs := map[string]paho.MessageHandler{
		fmt.Sprintf("ng/%s/telemetry/#", s.nodeID): s.onSample,
		fmt.Sprintf("ng/%s/weather", s.nodeID):     s.onWeather,
		fmt.Sprintf("ng/%s/grid", s.nodeID):        s.onGridSignal,
	}
	for topic, handler := range subs {
		if token := s.cli.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
	}
	return nil
}

func (s *Subscriber) onSample(_ paho.Client, msg paho.Message) {
	var sample model.TelemetrySample
	if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
		s.decodes.Inc()
		s.log.Errorf("decode sample on %s: %v", msg.Topic(), err)
		return
	}
	s.samples.Inc()
	s.sink.HandleSample(sample)
}

func (s *Subscriber) onWeather(_ paho.Client, msg paho.Message) {
	var update model.WeatherUpdate
	if err := json.Unmarshal(msg.Payload(), &update); err != nil {
		s.decodes.Inc()
		s.log.Errorf("decode weather update: %v", err)
		return
	}
	s.sink.HandleWeather(update)
}

func (s *Subscriber) onGridSignal(_ paho.Client, msg paho.Message) {
	var sig model.GridSignal
	if err := json.Unmarshal(msg.Payload(), &sig); err != nil {
		s.decodes.Inc()
		s.log.Errorf("decode grid signal: %v", err)
		return
	}
	s.sink.HandleGridSignal(sig)
}

// Close disconnects the MQTT session.
func (s *Subscriber) Close() {
	s.cli.Disconnect(250)
}
