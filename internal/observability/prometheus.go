package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusHandler creates a Prometheus metrics exporter backed by an
// OTel MeterProvider and returns the http.Handler serving the /metrics
// scrape endpoint, plus the provider to hand instruments out of. Each
// call creates an independent registry to avoid collector conflicts.
func PrometheusHandler() (http.Handler, *sdkmetric.MeterProvider, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	// Attach the exporter as a reader so OTel instruments are collected.
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), provider, nil
}
