package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricStageDuration    = "gitport.stage.duration.seconds"
	metricActionsTotal     = "gitport.actions.total"
	metricItemsExported    = "gitport.items.exported.total"
	metricRequestsTotal    = "gitport.forge.requests.total"
	metricThrottleDuration = "gitport.forge.throttle.seconds"

	attrStage  = "stage"
	attrStatus = "status"
	attrKind   = "kind"
	attrAPI    = "api"
)

// stageBucketBoundaries covers sub-second metadata stages up to
// multi-minute clone and apply runs.
var stageBucketBoundaries = []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600, 1800, 3600}

// throttleBucketBoundaries covers limiter sleeps from spacing delays
// up to full rate-window waits.
var throttleBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60, 300}

// Metrics holds the OTel instruments for the migration pipeline. It
// implements ratelimit.Observer for limiter telemetry.
type Metrics struct {
	stageDuration    metric.Float64Histogram
	actionsTotal     metric.Int64Counter
	itemsExported    metric.Int64Counter
	requestsTotal    metric.Int64Counter
	throttleDuration metric.Float64Histogram
}

// NewMetrics creates pipeline metric instruments from the given meter.
func NewMetrics(mt metric.Meter) (*Metrics, error) {
	b := newMetricBuilder(mt)

	m := &Metrics{
		stageDuration: b.histogram(metricStageDuration,
			"Stage wall time in seconds", "s", stageBucketBoundaries...),
		actionsTotal: b.counter(metricActionsTotal,
			"Total actions executed", "{action}"),
		itemsExported: b.counter(metricItemsExported,
			"Total items exported per component", "{item}"),
		requestsTotal: b.counter(metricRequestsTotal,
			"Total forge API requests issued", "{request}"),
		throttleDuration: b.histogram(metricThrottleDuration,
			"Rate limiter sleep time in seconds", "s", throttleBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return m, nil
}

// RecordStage records a completed stage with its outcome and duration.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, duration time.Duration) {
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrStatus, status),
	))
}

// RecordAction counts one executed action by kind and outcome.
func (m *Metrics) RecordAction(ctx context.Context, kind, status string) {
	m.actionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	))
}

// RecordExported counts items exported for one component.
func (m *Metrics) RecordExported(ctx context.Context, component string, count int) {
	m.itemsExported.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(attrKind, component),
	))
}

// ObserveSleep records a limiter sleep. Part of ratelimit.Observer.
func (m *Metrics) ObserveSleep(api string, d time.Duration) {
	m.throttleDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.String(attrAPI, api),
	))
}

// IncRequest counts an issued forge request. Part of ratelimit.Observer.
func (m *Metrics) IncRequest(api string) {
	m.requestsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(attrAPI, api),
	))
}
