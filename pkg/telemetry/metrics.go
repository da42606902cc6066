package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	MetricRequestsTotal   = "gocart_api_requests_total"
	MetricRequestDuration = "gocart_api_request_duration_seconds"
)

// APIMetrics records per-operation counters and latencies for backend calls.
type APIMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func NewAPIMetrics(meter metric.Meter) (*APIMetrics, error) {
	requests, err := meter.Int64Counter(
		MetricRequestsTotal,
		metric.WithDescription("Total cart API requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricRequestsTotal, err)
	}

	duration, err := meter.Float64Histogram(
		MetricRequestDuration,
		metric.WithDescription("Cart API request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricRequestDuration, err)
	}

	return &APIMetrics{requests: requests, duration: duration}, nil
}

// Record adds one observation. outcome is "success" when err is nil.
func (m *APIMetrics) Record(ctx context.Context, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)

	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
