package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "benchmd"
	ServiceVersion = "1.2.0"
	MeterName      = "benchmd"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
	}
}

// InitializeOTel initializes tracing and metrics providers
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete")

	return providers, nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Benchmark query metrics
	QueriesTotal         metric.Int64Counter
	QueryDuration        metric.Float64Histogram
	RowsAggregated       metric.Int64Counter
	SectionsEmitted      metric.Int64Counter
	UnmappableRows       metric.Int64Counter
	MonotonicityWarnings metric.Int64Counter

	// Ingest metrics
	IngestFilesTotal    metric.Int64Counter
	IngestRowsTotal     metric.Int64Counter
	IngestFailuresTotal metric.Int64Counter

	// Cache metrics (mapping resolver + variable discovery)
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	// System metrics
	SystemErrors metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	queriesTotal, err := meter.Int64Counter(
		"benchmark_queries_total",
		metric.WithDescription("Total number of benchmark queries executed"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"benchmark_query_duration_seconds",
		metric.WithDescription("Benchmark query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	rowsAggregated, err := meter.Int64Counter(
		"benchmark_rows_aggregated_total",
		metric.WithDescription("Total number of survey rows stacked into benchmark output"),
	)
	if err != nil {
		return nil, err
	}

	sectionsEmitted, err := meter.Int64Counter(
		"benchmark_sections_emitted_total",
		metric.WithDescription("Total number of metric sections emitted"),
	)
	if err != nil {
		return nil, err
	}

	unmappableRows, err := meter.Int64Counter(
		"benchmark_unmappable_rows_total",
		metric.WithDescription("Total number of rows excluded because no specialty or metric survived normalization"),
	)
	if err != nil {
		return nil, err
	}

	monotonicityWarnings, err := meter.Int64Counter(
		"benchmark_monotonicity_warnings_total",
		metric.WithDescription("Total number of retained percentile-order violations"),
	)
	if err != nil {
		return nil, err
	}

	ingestFilesTotal, err := meter.Int64Counter(
		"ingest_files_total",
		metric.WithDescription("Total number of survey files ingested"),
	)
	if err != nil {
		return nil, err
	}

	ingestRowsTotal, err := meter.Int64Counter(
		"ingest_rows_total",
		metric.WithDescription("Total number of survey rows ingested"),
	)
	if err != nil {
		return nil, err
	}

	ingestFailuresTotal, err := meter.Int64Counter(
		"ingest_failures_total",
		metric.WithDescription("Total number of survey files rejected during ingestion"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"cache_hits_total",
		metric.WithDescription("Total number of mapping/discovery cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"cache_misses_total",
		metric.WithDescription("Total number of mapping/discovery cache misses"),
	)
	if err != nil {
		return nil, err
	}

	systemErrors, err := meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		HTTPRequestsTotal:    httpRequestsTotal,
		HTTPRequestDuration:  httpRequestDuration,
		HTTPActiveRequests:   httpActiveRequests,
		QueriesTotal:         queriesTotal,
		QueryDuration:        queryDuration,
		RowsAggregated:       rowsAggregated,
		SectionsEmitted:      sectionsEmitted,
		UnmappableRows:       unmappableRows,
		MonotonicityWarnings: monotonicityWarnings,
		IngestFilesTotal:     ingestFilesTotal,
		IngestRowsTotal:      ingestRowsTotal,
		IngestFailuresTotal:  ingestFailuresTotal,
		CacheHits:            cacheHits,
		CacheMisses:          cacheMisses,
		SystemErrors:         systemErrors,
	}, nil
}

// RecordQueryMetrics records metrics for one benchmark query execution
func RecordQueryMetrics(ctx context.Context, metrics *BusinessMetrics, specialty string, rows, sections int, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := []attribute.KeyValue{
		attribute.String("specialty", specialty),
		attribute.String("status", status),
	}

	metrics.QueriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.QueryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if err == nil {
		metrics.RowsAggregated.Add(ctx, int64(rows))
		metrics.SectionsEmitted.Add(ctx, int64(sections))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("benchmark.query_recorded",
			trace.WithAttributes(
				attribute.String("specialty", specialty),
				attribute.Int("rows", rows),
				attribute.Int("sections", sections),
				attribute.Float64("duration_seconds", duration.Seconds()),
			),
		)
	}
}

// RecordIngestMetrics records metrics for one ingested survey file
func RecordIngestMetrics(ctx context.Context, metrics *BusinessMetrics, source string, rows int, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("source", source)}
	if err != nil {
		metrics.IngestFailuresTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	metrics.IngestFilesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.IngestRowsTotal.Add(ctx, int64(rows), metric.WithAttributes(attrs...))
}

// RecordDiagnostics folds aggregation diagnostics counts into metrics
func RecordDiagnostics(ctx context.Context, metrics *BusinessMetrics, unmappable, monotonicity int) {
	if metrics == nil {
		return
	}
	if unmappable > 0 {
		metrics.UnmappableRows.Add(ctx, int64(unmappable))
	}
	if monotonicity > 0 {
		metrics.MonotonicityWarnings.Add(ctx, int64(monotonicity))
	}
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}
