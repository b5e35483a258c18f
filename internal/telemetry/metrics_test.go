package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestDefaultMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	if cfg == nil {
		t.Fatal("DefaultMetricsConfig returned nil")
	}
	if cfg.Enabled {
		t.Error("expected metrics to be disabled by default")
	}
	if cfg.ServiceName != "chunli" {
		t.Errorf("expected service name 'chunli', got %q", cfg.ServiceName)
	}
	if cfg.ExporterType != ExporterNone {
		t.Errorf("expected ExporterNone, got %v", cfg.ExporterType)
	}
}

func TestNewMetrics_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultMetricsConfig()

	m, err := NewMetrics(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	defer m.Shutdown(ctx)

	if m.Enabled() {
		t.Error("expected metrics to be disabled")
	}
}

func TestNewMetrics_StdoutExporter(t *testing.T) {
	ctx := context.Background()
	cfg := &MetricsConfig{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: ExporterStdout,
	}

	m, err := NewMetrics(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	defer m.Shutdown(ctx)

	if !m.Enabled() {
		t.Error("expected metrics to be enabled")
	}
}

func TestRecordCall(t *testing.T) {
	ctx := context.Background()
	cfg := &MetricsConfig{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: ExporterStdout,
	}

	m, err := NewMetrics(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	defer m.Shutdown(ctx)

	m.RecordCall(ctx, 0.045, 200)
	m.RecordCall(ctx, 0.120, 500)
	m.RecordCall(ctx, 0.250, -1)
}

func TestIsErrorStatus(t *testing.T) {
	cases := map[int]bool{
		200: false,
		301: false,
		404: false,
		500: true,
		502: true,
		503: true,
		-1:  true,
	}
	for status, want := range cases {
		if got := isErrorStatus(status); got != want {
			t.Errorf("isErrorStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestRecordWaitTime(t *testing.T) {
	ctx := context.Background()
	m := NoopMetrics()
	m.RecordWaitTime(ctx, 0.01)
}

func TestNodeStartedFinished(t *testing.T) {
	ctx := context.Background()
	cfg := &MetricsConfig{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: ExporterStdout,
	}

	m, err := NewMetrics(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	defer m.Shutdown(ctx)

	m.NodeStarted(ctx)
	m.NodeStarted(ctx)
	m.NodeFinished(ctx)
}

func TestGlobalMetrics(t *testing.T) {
	ctx := context.Background()
	cfg := &MetricsConfig{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: ExporterStdout,
	}

	m, err := NewMetrics(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	defer m.Shutdown(ctx)

	SetGlobalMetrics(m)
	retrieved := GetGlobalMetrics()

	if retrieved != m {
		t.Error("GetGlobalMetrics did not return the set instance")
	}

	SetGlobalMetrics(nil)
}

func TestGetGlobalMetrics_Uninitialized(t *testing.T) {
	SetGlobalMetrics(nil)

	m := GetGlobalMetrics()
	if m == nil {
		t.Fatal("GetGlobalMetrics returned nil")
	}
	if m.Enabled() {
		t.Error("expected no-op metrics to be disabled")
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	if m == nil {
		t.Fatal("NoopMetrics returned nil")
	}
	if m.Enabled() {
		t.Error("expected no-op metrics to be disabled")
	}

	ctx := context.Background()

	m.RecordCall(ctx, 0.1, 200)
	m.RecordWaitTime(ctx, 0.1)
	m.NodeStarted(ctx)
	m.NodeFinished(ctx)

	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("NoopMetrics.Shutdown failed: %v", err)
	}
}

func TestMetricsShutdown(t *testing.T) {
	ctx := context.Background()
	cfg := &MetricsConfig{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: ExporterStdout,
	}

	m, err := NewMetrics(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordCall(ctx, 0.05, 200)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := m.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestMetricsWithCustomAttributes(t *testing.T) {
	ctx := context.Background()
	cfg := &MetricsConfig{
		Enabled:        true,
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		ExporterType:   ExporterStdout,
		Attributes: map[string]string{
			"environment": "test",
			"region":      "us-west-2",
		},
	}

	m, err := NewMetrics(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	defer m.Shutdown(ctx)

	if !m.Enabled() {
		t.Error("expected metrics to be enabled")
	}
}

func TestMetricsDisabledOperations(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultMetricsConfig()

	m, err := NewMetrics(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	defer m.Shutdown(ctx)

	m.RecordCall(ctx, 0.1, 500)
	m.RecordWaitTime(ctx, 0.1)
	m.NodeStarted(ctx)
	m.NodeFinished(ctx)
}
