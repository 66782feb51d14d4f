package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/resilia-grid/neurogrid/core/metrics"
	"github.com/resilia-grid/neurogrid/core/model"
)

func TestInfluxSink_RecordCycleResult(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	rec := coremetrics.CycleResult{
		NodeID: "mg-01",
		State:  model.GridConnected,
		Plan: model.DispatchPlan{
			ID:       "plan-1",
			Flows:    map[string]float64{"bat1": 5},
			Residual: model.Residual{Kind: model.ResidualNone},
		},
		Forecast: model.ForecastStep{BalanceKW: 5},
		Elapsed:  2 * time.Millisecond,
		Time:     now,
	}

	if err := sink.RecordCycleResult([]coremetrics.CycleResult{rec}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("control_cycle").
		AddTag("node_id", "mg-01").
		AddTag("state", "grid_connected").
		AddTag("residual", "none").
		AddTag("overrun", "false").
		AddTag("component", "controller").
		AddField("balance_kw", 5.0).
		AddField("residual_kw", 0.0).
		AddField("flow_kw", 5.0).
		AddField("elapsed_ms", 2.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
}
