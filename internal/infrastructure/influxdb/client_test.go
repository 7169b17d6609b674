package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/state"
)

// fakeWriter collects points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func (w *fakeWriter) all() []*write.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*write.Point(nil), w.points...)
}

func newTestClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writer: w, connected: true}, w
}

func tag(p *write.Point, key string) string {
	for _, t := range p.TagList() {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

func field(p *write.Point, key string) any {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: srv.URL, Token: "t", Org: "o", Bucket: "b"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_WritesLineProtocol(t *testing.T) {
	var mu sync.Mutex
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/ping":
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/api/v2/write"):
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			body += string(b)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := Connect(config.InfluxDBConfig{Enabled: true, URL: srv.URL, Token: "t", Org: "o", Bucket: "b"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	c.ObserveRefresh(context.Background(), coordinator.RefreshEvent{
		EntryID:     "controller",
		Coordinator: "zones",
		Trigger:     coordinator.TriggerScheduled,
		Duration:    120 * time.Millisecond,
		Available:   true,
	})
	c.Flush()

	mu.Lock()
	got := body
	mu.Unlock()
	if !strings.Contains(got, "coordinator_refresh,") || !strings.Contains(got, "coordinator=zones") {
		t.Errorf("written body = %q, want a coordinator_refresh point for zones", got)
	}
}

func TestClose_StopsWrites(t *testing.T) {
	c, w := newTestClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1 on close", w.flushes)
	}

	c.ObserveRefresh(context.Background(), coordinator.RefreshEvent{EntryID: "x"})
	c.WriteState(state.State{EntityID: "sensor.x", Value: 1.0, Available: true})
	if n := len(w.all()); n != 0 {
		t.Errorf("wrote %d points after Close, want 0", n)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	var nilClient *Client
	nilClient.ObserveRefresh(context.Background(), coordinator.RefreshEvent{})
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestObserveRefresh(t *testing.T) {
	c, w := newTestClient()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.ObserveRefresh(context.Background(), coordinator.RefreshEvent{
		EntryID:     "controller",
		Coordinator: "zones",
		Trigger:     coordinator.TriggerRetry,
		StartedAt:   started,
		Duration:    250 * time.Millisecond,
		Err:         coordinator.UpdateFailed(errors.New("timeout")),
		Expected:    true,
		Failures:    2,
		Available:   true,
	})

	points := w.all()
	if len(points) != 1 {
		t.Fatalf("wrote %d points, want 1", len(points))
	}
	p := points[0]
	if p.Name() != MeasurementRefresh {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementRefresh)
	}
	if !p.Time().Equal(started) {
		t.Errorf("Time() = %v, want %v", p.Time(), started)
	}
	if got := tag(p, "trigger"); got != "retry" {
		t.Errorf("trigger tag = %q, want retry", got)
	}
	if got := field(p, "success"); got != false {
		t.Errorf("success field = %v, want false", got)
	}
	if got := field(p, "expected"); got != true {
		t.Errorf("expected field = %v, want true", got)
	}
	if got := field(p, "duration_ms"); got != int64(250) {
		t.Errorf("duration_ms field = %v, want 250", got)
	}
}

func TestWriteState(t *testing.T) {
	tests := []struct {
		name  string
		state state.State
		want  float64
		write bool
	}{
		{"float", state.State{EntityID: "sensor.a", Value: 21.5, Available: true}, 21.5, true},
		{"int", state.State{EntityID: "sensor.b", Value: 3, Available: true}, 3, true},
		{"bool", state.State{EntityID: "sensor.c", Value: true, Available: true}, 1, true},
		{"string", state.State{EntityID: "sensor.d", Value: "on", Available: true}, 0, false},
		{"unavailable", state.State{EntityID: "sensor.e", Value: 1.0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestClient()
			c.WriteState(tt.state)

			points := w.all()
			if !tt.write {
				if len(points) != 0 {
					t.Errorf("wrote %d points, want 0", len(points))
				}
				return
			}
			if len(points) != 1 {
				t.Fatalf("wrote %d points, want 1", len(points))
			}
			if got := field(points[0], "value"); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
			if got := tag(points[0], "entity_id"); got != tt.state.EntityID {
				t.Errorf("entity_id tag = %q, want %q", got, tt.state.EntityID)
			}
		})
	}
}

func TestFollowStore(t *testing.T) {
	c, w := newTestClient()
	store := state.NewStore()

	stop := c.FollowStore(store)
	store.Set(state.State{
		EntityID:   "sensor.controller_temp",
		Value:      19.0,
		Available:  true,
		Attributes: map[string]any{"unit": "°C"},
	})
	stop()
	store.Set(state.State{EntityID: "sensor.controller_temp", Value: 20.0, Available: true})

	points := w.all()
	if len(points) != 1 {
		t.Fatalf("wrote %d points, want 1 before stop", len(points))
	}
	if got := tag(points[0], "unit"); got != "°C" {
		t.Errorf("unit tag = %q, want °C", got)
	}
}
