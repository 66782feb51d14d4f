package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/resilia-grid/neurogrid/core/metrics"
	"github.com/resilia-grid/neurogrid/infra/logger"
)

// InfluxSink writes control-cycle events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordCycleResult writes each cycle as a control_cycle point.
func (s *InfluxSink) RecordCycleResult(results []coremetrics.CycleResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range results {
		p := write.NewPointWithMeasurement("control_cycle").
			AddTag("node_id", r.NodeID).
			AddTag("state", r.State.String()).
			AddTag("residual", r.Plan.Residual.Kind.String()).
			AddTag("overrun", strconv.FormatBool(r.Overrun)).
			AddTag("component", "controller").
			AddField("balance_kw", round3(r.Forecast.BalanceKW)).
			AddField("residual_kw", round3(r.Plan.Residual.PowerKW)).
			AddField("flow_kw", round3(r.Plan.TotalFlowKW())).
			AddField("elapsed_ms", round3(float64(r.Elapsed.Microseconds())/1000)).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordStateChange persists an islanding transition.
func (s *InfluxSink) RecordStateChange(ev coremetrics.StateChangeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("state_change").
		AddTag("node_id", ev.NodeID).
		AddTag("from", ev.From.String()).
		AddTag("to", ev.To.String()).
		AddTag("component", "islanding").
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordGossipRound persists the exchange summary of a gossip round.
func (s *InfluxSink) RecordGossipRound(ev coremetrics.GossipRoundEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("gossip_round").
		AddTag("node_id", ev.NodeID).
		AddTag("component", "gossip").
		AddField("peers_reached", ev.PeersReached).
		AddField("net_imbalance_kw", round3(ev.NetImbalance)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
