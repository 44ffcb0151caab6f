package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	StoreOps          metric.Int64Counter
	StoreConflicts    metric.Int64Counter
	SearchQueries     metric.Int64Counter
	ActiveStreams     metric.Int64UpDownCounter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"ink_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"ink_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StoreOps, err = meter.Int64Counter(
		"ink_store_operations_total",
		metric.WithDescription("Total number of content store operations"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StoreConflicts, err = meter.Int64Counter(
		"ink_store_conflicts_total",
		metric.WithDescription("Total number of optimistic-concurrency conflicts"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SearchQueries, err = meter.Int64Counter(
		"ink_search_queries_total",
		metric.WithDescription("Total number of search queries served"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ActiveStreams, err = meter.Int64UpDownCounter(
		"ink_event_stream_connections",
		metric.WithDescription("Number of active admin event stream connections"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.Handler()
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordStoreOp(ctx context.Context, collection, op string) {
	m.StoreOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("op", op),
	))
}

func (m *Metrics) RecordStoreConflict(ctx context.Context, collection string) {
	m.StoreConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
}

func (m *Metrics) RecordSearchQuery(ctx context.Context, kind string) {
	m.SearchQueries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) IncrementStreams(ctx context.Context) {
	m.ActiveStreams.Add(ctx, 1)
}

func (m *Metrics) DecrementStreams(ctx context.Context) {
	m.ActiveStreams.Add(ctx, -1)
}
