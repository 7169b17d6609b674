package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
)

// MeterName is the instrumentation scope of coordinator metrics.
const MeterName = "github.com/nerrad567/gray-logic-hub/coordinator"

// RefreshMetrics holds the instruments recorded for every refresh attempt.
type RefreshMetrics struct {
	duration  metric.Float64Histogram
	refreshes metric.Int64Counter
	failures  metric.Int64Counter
	available metric.Int64Gauge
}

// NewRefreshMetrics creates the instruments. A nil provider returns nil,
// and a nil *RefreshMetrics records nothing.
func NewRefreshMetrics(provider metric.MeterProvider) (*RefreshMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(MeterName)

	duration, err := meter.Float64Histogram(
		"graylogic_hub_refresh_duration",
		metric.WithDescription("Duration of coordinator refresh attempts"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}
	refreshes, err := meter.Int64Counter(
		"graylogic_hub_refreshes",
		metric.WithDescription("Coordinator refresh attempts"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"graylogic_hub_refresh_failures",
		metric.WithDescription("Failed coordinator refresh attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}
	available, err := meter.Int64Gauge(
		"graylogic_hub_coordinator_available",
		metric.WithDescription("1 when the coordinator's data is available"),
	)
	if err != nil {
		return nil, err
	}

	return &RefreshMetrics{
		duration:  duration,
		refreshes: refreshes,
		failures:  failures,
		available: available,
	}, nil
}

// ObserveRefresh records ev.
func (m *RefreshMetrics) ObserveRefresh(ctx context.Context, ev coordinator.RefreshEvent) {
	if m == nil {
		return
	}

	scope := metric.WithAttributes(
		attribute.String("entry_id", ev.EntryID),
		attribute.String("coordinator", ev.Coordinator),
	)
	outcome := metric.WithAttributes(
		attribute.String("entry_id", ev.EntryID),
		attribute.String("coordinator", ev.Coordinator),
		attribute.String("trigger", string(ev.Trigger)),
		attribute.Bool("success", ev.Success()),
	)

	m.duration.Record(ctx, ev.Duration.Seconds(), outcome)
	m.refreshes.Add(ctx, 1, outcome)
	if !ev.Success() {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("entry_id", ev.EntryID),
			attribute.String("coordinator", ev.Coordinator),
			attribute.Bool("expected", ev.Expected),
		))
	}

	var avail int64
	if ev.Available {
		avail = 1
	}
	m.available.Record(ctx, avail, scope)
}
