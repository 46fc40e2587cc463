package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MetricsRecorder = (*Metrics)(nil)

// Metric attribute keys.
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrResult   = "result"
	attrProvider = "provider"
)

// Metrics records calsync measurements. The zero value is a valid no-op
// recorder.
type Metrics struct {
	syncRunsTotal   metric.Int64Counter
	syncDuration    metric.Float64Histogram
	syncEvents      metric.Int64Gauge
	tokenRefreshes  metric.Int64Counter
	autoJoinsTotal  metric.Int64Counter
	httpRequests    metric.Int64Counter
	httpReqDuration metric.Float64Histogram
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.syncRunsTotal, err = meter.Int64Counter(
		"sync_runs_total",
		metric.WithDescription("Total number of account syncs"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_runs_total counter: %w", err)
	}

	m.syncDuration, err = meter.Float64Histogram(
		"sync_duration_seconds",
		metric.WithDescription("Account sync duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_duration_seconds histogram: %w", err)
	}

	m.syncEvents, err = meter.Int64Gauge(
		"sync_events",
		metric.WithDescription("Events fetched by the most recent successful sync"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_events gauge: %w", err)
	}

	m.tokenRefreshes, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.autoJoinsTotal, err = meter.Int64Counter(
		"autojoin_launches_total",
		metric.WithDescription("Total number of meetings opened automatically"),
		metric.WithUnit("{launch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create autojoin_launches_total counter: %w", err)
	}

	m.httpRequests, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpReqDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordSync records one account sync. Result is "success", "error" or
// "skipped"; events is only reported for successful syncs.
func (m *Metrics) RecordSync(ctx context.Context, result string, events int, duration time.Duration) {
	if m.syncRunsTotal == nil || m.syncDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(attribute.String(attrResult, result))
	m.syncRunsTotal.Add(ctx, 1, attrs)
	m.syncDuration.Record(ctx, duration.Seconds(), attrs)

	if result == "success" && m.syncEvents != nil {
		m.syncEvents.Record(ctx, int64(events))
	}
}

// RecordTokenRefresh records a refresh-token redemption.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m.tokenRefreshes == nil {
		return // Instrumentation not initialized
	}
	m.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordAutoJoin records an opened meeting. An empty provider is reported
// as "other".
func (m *Metrics) RecordAutoJoin(ctx context.Context, provider string) {
	if m.autoJoinsTotal == nil {
		return // Instrumentation not initialized
	}
	if provider == "" {
		provider = "other"
	}
	m.autoJoinsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrProvider, provider)))
}

// RecordHTTPRequest records an API request. path should be the route
// pattern, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequests == nil || m.httpReqDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpReqDuration.Record(ctx, duration.Seconds(), attrs)
}
