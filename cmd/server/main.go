package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dutradda/chunli/internal/aggregator"
	"github.com/dutradda/chunli/internal/chunli"
	"github.com/dutradda/chunli/internal/config"
	"github.com/dutradda/chunli/internal/controlapi"
	"github.com/dutradda/chunli/internal/coordinator"
	"github.com/dutradda/chunli/internal/events"
	"github.com/dutradda/chunli/internal/telemetry"
)

func main() {
	addr := flag.String("addr", ":8080", "control API listen address")
	resultsTimeout := flag.Duration("results-timeout", 10*time.Second, "extra time allowed after a run's duration for every node to report in")
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

	tracerCfg := telemetry.DefaultConfig()
	if *otlpEndpoint != "" {
		tracerCfg.Enabled = true
		tracerCfg.ExporterType = telemetry.ExporterOTLPGRPC
		tracerCfg.OTLPEndpoint = *otlpEndpoint
	}
	tracer, err := telemetry.NewTracer(context.Background(), tracerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry tracer: %v\n", err)
		os.Exit(1)
	}

	srv := controlapi.NewServer(store, func(ctx context.Context, duration, timeout time.Duration) chunli.Results {
		return aggregator.GetResults(ctx, store, duration, timeout+*resultsTimeout)
	}, controlapi.WithTracer(tracer))

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	go func() {
		slog.Info("control API listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "control API: %v\n", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down control API")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	if err := tracer.Shutdown(ctx); err != nil {
		slog.Error("tracer shutdown", "error", err)
	}
}
