// Package telemetry provides OpenTelemetry metrics and tracing integration for chunli.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// MetricsConfig holds configuration for the OpenTelemetry metrics pipeline.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. Default: false (no-op).
	Enabled bool

	// ServiceName is the name of the service for metric attribution.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// ExporterType specifies which exporter to use.
	ExporterType ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Attributes are additional attributes to add to all metrics.
	Attributes map[string]string
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "chunli",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps OpenTelemetry metrics functionality with chunli-specific helpers.
// A node records one call latency + one status observation per dispatched Call.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error
	mu            sync.RWMutex

	// Metric instruments
	callLatency  metric.Float64Histogram
	callCounter  metric.Int64Counter
	errorCounter metric.Int64Counter
	activeNodes  metric.Int64UpDownCounter
	waitTimeGap  metric.Float64Histogram
}

// globalMetrics is the singleton metrics instance.
var (
	globalMetrics   *Metrics
	globalMetricsMu sync.RWMutex
)

// NewMetrics creates a new Metrics instance with the given configuration.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{
		config: cfg,
	}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		// Use no-op meter when disabled
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := m.createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

// createExporter creates the appropriate metrics exporter based on configuration.
func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

// createResource creates the OpenTelemetry resource with service information.
func (m *Metrics) createResource(cfg *MetricsConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	m.callLatency, err = m.meter.Float64Histogram(
		"chunli.call.latency",
		metric.WithDescription("Latency of dispatched outbound HTTP calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create call latency histogram: %w", err)
	}

	m.callCounter, err = m.meter.Int64Counter(
		"chunli.calls",
		metric.WithDescription("Count of dispatched calls by HTTP status bucket"),
	)
	if err != nil {
		return fmt.Errorf("failed to create call counter: %w", err)
	}

	m.errorCounter, err = m.meter.Int64Counter(
		"chunli.errors",
		metric.WithDescription("Count of transport failures and 5xx responses"),
	)
	if err != nil {
		return fmt.Errorf("failed to create error counter: %w", err)
	}

	m.activeNodes, err = m.meter.Int64UpDownCounter(
		"chunli.nodes.running",
		metric.WithDescription("Number of dispatcher nodes currently running a load test"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active nodes counter: %w", err)
	}

	m.waitTimeGap, err = m.meter.Float64Histogram(
		"chunli.ratecontrol.wait_time",
		metric.WithDescription("Inter-call sleep computed by the rate controller"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wait-time histogram: %w", err)
	}

	return nil
}

// RecordCall records the latency and HTTP status of one dispatched call.
// statusCode is -1 for a transport failure.
func (m *Metrics) RecordCall(ctx context.Context, latencySeconds float64, statusCode int) {
	if m.callLatency != nil {
		m.callLatency.Record(ctx, latencySeconds)
	}
	if m.callCounter != nil {
		m.callCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("status_code", statusCode)))
	}
	if isErrorStatus(statusCode) && m.errorCounter != nil {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("status_code", statusCode)))
	}
}

// RecordWaitTime records the sleep duration the rate controller computed.
func (m *Metrics) RecordWaitTime(ctx context.Context, seconds float64) {
	if m.waitTimeGap != nil {
		m.waitTimeGap.Record(ctx, seconds)
	}
}

// NodeStarted increments the active-nodes gauge.
func (m *Metrics) NodeStarted(ctx context.Context) {
	if m.activeNodes != nil {
		m.activeNodes.Add(ctx, 1)
	}
}

// NodeFinished decrements the active-nodes gauge.
func (m *Metrics) NodeFinished(ctx context.Context) {
	if m.activeNodes != nil {
		m.activeNodes.Add(ctx, -1)
	}
}

func isErrorStatus(statusCode int) bool {
	switch statusCode {
	case -1, 500, 502, 503:
		return true
	default:
		return false
	}
}

// Shutdown gracefully shuts down the metrics provider, flushing any pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Enabled returns whether metrics collection is enabled.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled && m.config.ExporterType != ExporterNone
}

// MeterProvider returns the underlying meter provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

// SetGlobalMetrics sets the global metrics instance.
func SetGlobalMetrics(m *Metrics) {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	globalMetrics = m

	if m != nil && m.Enabled() {
		otel.SetMeterProvider(m.meterProvider)
	}
}

// GetGlobalMetrics returns the global metrics instance.
// Returns a no-op metrics instance if none has been set.
func GetGlobalMetrics() *Metrics {
	globalMetricsMu.RLock()
	defer globalMetricsMu.RUnlock()

	if globalMetrics == nil {
		return NoopMetrics()
	}

	return globalMetrics
}

// NoopMetrics returns a metrics instance that does nothing (for testing or when disabled).
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	return &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
}
