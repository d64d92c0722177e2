package infrastructure

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestDefaultOTelConfig(t *testing.T) {
	cfg := DefaultOTelConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, ServiceVersion, cfg.ServiceVersion)
	assert.True(t, cfg.EnableTracing)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestInitializeOTel_Disabled(t *testing.T) {
	cfg := &OTelConfig{
		ServiceName:    "test",
		ServiceVersion: "0.0.0",
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "none",
		EnableTracing:  true,
		EnableMetrics:  true,
		SampleRatio:    1.0,
	}

	providers, err := InitializeOTel(cfg, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTel_UnsupportedExporter(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "jaeger"

	_, err := InitializeOTel(cfg, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported trace exporter")
}

func TestCreateBusinessMetrics(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	meter := mp.Meter("test")

	metrics, err := CreateBusinessMetrics(meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	require.NotNil(t, metrics.QueriesTotal)
	require.NotNil(t, metrics.QueryDuration)
	require.NotNil(t, metrics.RowsAggregated)
	require.NotNil(t, metrics.UnmappableRows)
	require.NotNil(t, metrics.IngestFilesTotal)
	require.NotNil(t, metrics.CacheHits)

	ctx := context.Background()

	// Recording helpers tolerate real instruments and nil metrics alike.
	RecordQueryMetrics(ctx, metrics, "Cardiology", 12, 3, 40*time.Millisecond, nil)
	RecordIngestMetrics(ctx, metrics, "mgma_2024", 250, nil)
	RecordDiagnostics(ctx, metrics, 2, 1)

	RecordQueryMetrics(ctx, nil, "Cardiology", 0, 0, 0, nil)
	RecordIngestMetrics(ctx, nil, "", 0, nil)
	RecordDiagnostics(ctx, nil, 0, 0)
}

func TestRecordError_NoopWithoutSpan(t *testing.T) {
	// Must not panic when the context carries no recording span.
	RecordError(context.Background(), assert.AnError)
	SetSpanAttributes(context.Background(), map[string]interface{}{"k": "v"})
}
