package observability_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/gitport/internal/observability"
)

func setupTestMeter(t *testing.T) (*observability.Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	metrics, err := observability.NewMetrics(meter)
	require.NoError(t, err)

	return metrics, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func TestMetrics_RecordStage(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)

	metrics.RecordStage(context.Background(), "export", "success", 3*time.Second)

	rm := collectMetrics(t, reader)

	duration := findMetric(rm, "gitport.stage.duration.seconds")
	require.NotNil(t, duration, "gitport.stage.duration.seconds metric not found")
}

func TestMetrics_RecordAction(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)

	metrics.RecordAction(context.Background(), "issue_create", "completed")
	metrics.RecordAction(context.Background(), "issue_create", "failed")

	rm := collectMetrics(t, reader)

	total := findMetric(rm, "gitport.actions.total")
	require.NotNil(t, total, "gitport.actions.total metric not found")
}

func TestMetrics_ObserverSurface(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)

	metrics.IncRequest("gitlab")
	metrics.IncRequest("gitlab")
	metrics.ObserveSleep("github", 250*time.Millisecond)

	rm := collectMetrics(t, reader)

	requests := findMetric(rm, "gitport.forge.requests.total")
	require.NotNil(t, requests, "gitport.forge.requests.total metric not found")

	sleeps := findMetric(rm, "gitport.forge.throttle.seconds")
	require.NotNil(t, sleeps, "gitport.forge.throttle.seconds metric not found")
}

func TestPrometheusHandlerServesScrape(t *testing.T) {
	t.Parallel()

	handler, provider, err := observability.PrometheusHandler()
	require.NoError(t, err)
	require.NotNil(t, provider)

	metrics, metricsErr := observability.NewMetrics(provider.Meter("test"))
	require.NoError(t, metricsErr)

	metrics.IncRequest("gitlab")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "gitport_forge_requests")
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	logger := observability.NewLogger(&buf, observability.Config{
		LogLevel: slog.LevelInfo,
		LogJSON:  true,
	})

	logger.Info("stage finished", "stage", "export")

	assert.Contains(t, buf.String(), `"stage":"export"`)

	logger.Debug("hidden")
	assert.NotContains(t, buf.String(), "hidden")
}
