package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/state"
)

// Measurement names.
const (
	MeasurementRefresh     = "coordinator_refresh"
	MeasurementEntityState = "entity_state"
)

// ObserveRefresh records one refresh attempt. It satisfies
// coordinator.RefreshObserver and does nothing on a nil or closed client.
func (c *Client) ObserveRefresh(_ context.Context, ev coordinator.RefreshEvent) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"entry_id":    ev.EntryID,
		"coordinator": ev.Coordinator,
		"trigger":     string(ev.Trigger),
	}
	fields := map[string]any{
		"duration_ms": ev.Duration.Milliseconds(),
		"success":     ev.Success(),
		"failures":    ev.Failures,
		"available":   ev.Available,
	}
	if ev.Err != nil {
		fields["expected"] = ev.Expected
	}

	at := ev.StartedAt
	if at.IsZero() {
		at = time.Now()
	}
	c.writer.WritePoint(write.NewPoint(MeasurementRefresh, tags, fields, at))
}

// WriteState records st if its value is numeric. Non-numeric and
// unavailable states are skipped.
func (c *Client) WriteState(st state.State) {
	if !c.IsConnected() || !st.Available {
		return
	}
	value, ok := toFloat(st.Value)
	if !ok {
		return
	}

	tags := map[string]string{"entity_id": st.EntityID}
	if unit, ok := st.Attributes["unit"].(string); ok && unit != "" {
		tags["unit"] = unit
	}

	at := st.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	c.writer.WritePoint(write.NewPoint(MeasurementEntityState, tags, map[string]any{"value": value}, at))
}

// FollowStore writes every numeric state change in store until the
// returned function is called.
func (c *Client) FollowStore(store *state.Store) (stop func()) {
	return store.Subscribe(func(entityID string) {
		if st, ok := store.Get(entityID); ok {
			c.WriteState(st)
		}
	})
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
