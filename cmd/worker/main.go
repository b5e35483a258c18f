package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dutradda/chunli/internal/config"
	"github.com/dutradda/chunli/internal/coordinator"
	"github.com/dutradda/chunli/internal/dispatcher"
	"github.com/dutradda/chunli/internal/events"
	"github.com/dutradda/chunli/internal/httpclient"
	"github.com/dutradda/chunli/internal/telemetry"
)

func main() {
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP collector endpoint; empty disables OpenTelemetry export")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Debug != 0 {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		events.SetLevel(slog.LevelDebug)
	}

	store, err := coordinator.New(cfg.RedisTarget)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())

	metricsCfg := telemetry.DefaultMetricsConfig()
	tracerCfg := telemetry.DefaultConfig()
	if *otlpEndpoint != "" {
		metricsCfg.Enabled = true
		metricsCfg.ExporterType = telemetry.ExporterOTLPGRPC
		metricsCfg.OTLPEndpoint = *otlpEndpoint
		tracerCfg.Enabled = true
		tracerCfg.ExporterType = telemetry.ExporterOTLPGRPC
		tracerCfg.OTLPEndpoint = *otlpEndpoint
	}

	metrics, err := telemetry.NewMetrics(ctx, metricsCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry metrics: %v\n", err)
		os.Exit(1)
	}
	tracer, err := telemetry.NewTracer(ctx, tracerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry tracer: %v\n", err)
		os.Exit(1)
	}

	client := httpclient.New(cfg.HTTPMaxConnections, cfg.HTTPTimeout, httpclient.WithTracer(tracer))
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		nodeID := fmt.Sprintf("%s-%d", dispatcher.DefaultNodeID(), i)
		node := dispatcher.NewNode(nodeID, store, client,
			dispatcher.WithMetrics(metrics),
			dispatcher.WithTracer(tracer),
		)

		wg.Add(1)
		go func(n *dispatcher.Node, id string) {
			defer wg.Done()
			if err := n.Run(ctx); err != nil {
				slog.Error("dispatcher node stopped with error", "node_id", id, "error", err)
			}
		}(node, nodeID)
	}

	slog.Info("worker started", "workers", cfg.Workers, "redis_target", cfg.RedisTarget)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := store.PublishStop(shutdownCtx); err != nil {
		slog.Error("publish stop", "error", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		slog.Warn("shutdown timed out, forcing exit")
	}

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		slog.Error("tracer shutdown", "error", err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics shutdown", "error", err)
	}

	slog.Info("worker stopped")
}
