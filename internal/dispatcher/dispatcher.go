// Package dispatcher implements the per-node control loop: subscribe to the
// distributed-run channel, receive a CallerConfig, drain the shared calls
// queue (or a local generator) at a paced rate, and publish this node's
// Results.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/dutradda/chunli/internal/chunli"
	"github.com/dutradda/chunli/internal/coordinator"
	"github.com/dutradda/chunli/internal/events"
	"github.com/dutradda/chunli/internal/generator"
	"github.com/dutradda/chunli/internal/ratecontrol"
	"github.com/dutradda/chunli/internal/stats"
	"github.com/dutradda/chunli/internal/telemetry"
)

// DefaultPoolSize is the bounded concurrency of outbound HTTP workers a
// single node runs per dispatch, matching spec.md §4.4.
const DefaultPoolSize = 100

// transportFailureStatus is the sentinel bucket for calls that never
// produced an HTTP status code.
const transportFailureStatus = -1

// Store is the subset of coordinator.Client the dispatcher needs.
type Store interface {
	PopCall(ctx context.Context) ([]byte, error)
	PushCall(ctx context.Context, group []byte) error
	AddRunning(ctx context.Context, runningID string) error
	RemoveRunning(ctx context.Context, runningID string) error
	SetResult(ctx context.Context, runningID string, payload []byte) error
	ClearScript(ctx context.Context) error
	Subscribe(ctx context.Context) *redis.PubSub
}

var _ Store = (*coordinator.Client)(nil)

// HTTPDoer issues one Call and reports its outcome. A non-nil error means
// the call never produced a status code (a transport failure).
type HTTPDoer interface {
	Do(ctx context.Context, call chunli.Call) (int, error)
}

// Node is one dispatcher instance subscribed to the shared coordinator. A
// process may run several Nodes (see config.Workers), each with its own
// node ID; cmd/worker hands them all the same HTTP client.
type Node struct {
	id       string
	store    Store
	http     HTTPDoer
	gen      generator.Generator
	poolSize int
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer

	stateMu sync.Mutex
	state   State
}

// setState moves the node to next, logging and discarding any transition
// CanTransition rejects (a programming error, never a run-time condition a
// caller should have to handle) rather than corrupting the tracked state.
func (n *Node) setState(next State) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if !CanTransition(n.state, next) {
		events.GetGlobalEventLogger().LogDispatchLoopError(
			fmt.Sprintf("invalid state transition %s -> %s", n.state, next))
		return
	}
	n.state = next
}

// State reports the node's current lifecycle stage (see state.go).
func (n *Node) State() State {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithGenerator makes the node drive calls from gen instead of the shared
// queue for every run it executes.
func WithGenerator(gen generator.Generator) Option {
	return func(n *Node) { n.gen = gen }
}

// WithPoolSize overrides DefaultPoolSize.
func WithPoolSize(size int) Option {
	return func(n *Node) {
		if size > 0 {
			n.poolSize = size
		}
	}
}

// WithMetrics attaches an OpenTelemetry metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(n *Node) { n.metrics = m }
}

// WithTracer attaches an OpenTelemetry tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(n *Node) { n.tracer = t }
}

// NewNode builds a Node identified by nodeID, issuing calls through http and
// rendezvousing through store.
func NewNode(nodeID string, store Store, httpDoer HTTPDoer, opts ...Option) *Node {
	n := &Node{
		id:       nodeID,
		store:    store,
		http:     httpDoer,
		poolSize: DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// DefaultNodeID derives a node identifier from the host name, falling back
// to a random UUID when the hostname is unavailable.
func DefaultNodeID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

// Run drives the node's outer SUBSCRIBED loop per spec.md §4.4: it
// subscribes, waits for either a CallerConfig or the stop payload, executes
// one full run on a config, and re-subscribes — until ctx is canceled or a
// stop payload arrives, at which point Run returns nil.
func (n *Node) Run(ctx context.Context) error {
	logger := events.GetGlobalEventLogger()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		sub := n.store.Subscribe(ctx)
		if _, err := sub.Receive(ctx); err != nil {
			sub.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dispatcher: subscribe: %w", err)
		}
		n.setState(StateSubscribed)
		logger.LogNodeSubscribed(coordinator.ChannelDistrib)

		cfg, stop, err := waitForMessage(ctx, sub)
		sub.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dispatcher: receive: %w", err)
		}
		if stop {
			n.setState(StateStop)
			logger.LogStopReceived()
			return nil
		}

		n.setState(StateReceivedConfig)
		if err := n.runOnce(ctx, *cfg); err != nil {
			return err
		}
		n.setState(StateIdle)
	}
}

// waitForMessage polls sub until a payload message arrives, distinguishing
// the stop payload from a CallerConfig.
func waitForMessage(ctx context.Context, sub *redis.PubSub) (*chunli.CallerConfig, bool, error) {
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		return nil, false, err
	}

	if msg.Payload == coordinator.StopPayload {
		return nil, true, nil
	}

	var cfg chunli.CallerConfig
	if err := json.Unmarshal([]byte(msg.Payload), &cfg); err != nil {
		return nil, false, fmt.Errorf("dispatcher: decode config: %w", err)
	}
	return &cfg, false, nil
}

// runOnce executes spec.md §4.4's RUNNING phase to completion: it registers
// a fresh running_id, paces calls against cfg for cfg.Duration seconds,
// publishes this node's Results, and deregisters.
func (n *Node) runOnce(ctx context.Context, cfg chunli.CallerConfig) error {
	n.setState(StateRunning)

	runningID := uuid.New().String()
	if err := n.store.AddRunning(ctx, runningID); err != nil {
		return fmt.Errorf("dispatcher: register running: %w", err)
	}
	defer n.store.RemoveRunning(ctx, runningID)

	logger := events.NewEventLogger(runningID, n.id)
	logger.LogDispatchStart(cfg.Duration, int(cfg.RPSPerNode))

	if n.metrics != nil {
		n.metrics.NodeStarted(ctx)
		defer n.metrics.NodeFinished(ctx)
	}

	spanCtx := ctx
	var span trace.Span
	if n.tracer != nil {
		spanCtx, span = n.tracer.StartDispatchSpan(ctx, telemetry.DispatchSpanOptions{
			RunningID: runningID,
			NodeID:    n.id,
			Duration:  cfg.Duration,
			RPSTarget: int(cfg.RPSPerNode),
		})
		defer span.End()
	}

	startTime := time.Now()
	duration := time.Duration(cfg.Duration) * time.Second
	rampup := time.Duration(cfg.RampupTime) * time.Second
	ctrl := ratecontrol.New(cfg.RPSPerNode, rampup, startTime)

	var mu sync.Mutex
	latencies := make([]float64, 0, 1024)
	statusCounts := make(map[int]int)
	recordOutcome := func(status int, latencySeconds float64) {
		mu.Lock()
		latencies = append(latencies, latencySeconds)
		statusCounts[status]++
		mu.Unlock()
		if n.metrics != nil {
			n.metrics.RecordCall(spanCtx, latencySeconds, status)
		}
	}

	sem := make(chan struct{}, n.poolSize)
	var wg sync.WaitGroup

	gen := n.gen

dispatchLoop:
	for time.Since(startTime) <= duration {
		group, ok, err := n.nextGroup(ctx, gen)
		if err != nil {
			logger.LogDispatchLoopError(err.Error())
			continue
		}
		if !ok {
			continue
		}

		for _, call := range group {
			if time.Since(startTime) > duration {
				break dispatchLoop
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(call chunli.Call) {
				defer wg.Done()
				defer func() { <-sem }()

				start := time.Now()
				status, err := n.http.Do(spanCtx, call)
				elapsed := time.Since(start).Seconds()
				if err != nil {
					recordOutcome(transportFailureStatus, elapsed)
					return
				}
				recordOutcome(status, elapsed)
			}(call)

			ctrl.RecordCall()
			wait := ctrl.WaitTime(time.Now())
			if n.metrics != nil {
				n.metrics.RecordWaitTime(spanCtx, wait.Seconds())
			}
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					break dispatchLoop
				}
			}
		}
	}

	wg.Wait()
	n.setState(StateReporting)

	results := buildResults(cfg, statusCounts, latencies)
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("dispatcher: encode results: %w", err)
	}
	if err := n.store.SetResult(ctx, runningID, payload); err != nil {
		return fmt.Errorf("dispatcher: publish results: %w", err)
	}
	logger.LogResultsPublished()
	logger.LogDispatchStop(results.RealizedRequests, results.ErrorsCount)

	return n.store.ClearScript(ctx)
}

// nextGroup obtains the next CallGroup to dispatch, either from gen (when
// set) or by popping-then-re-pushing the shared queue's head. ok is false
// when nothing was available and the caller should loop without sleeping.
func (n *Node) nextGroup(ctx context.Context, gen generator.Generator) (chunli.CallGroup, bool, error) {
	if gen != nil {
		group, err := gen.NextGroup()
		if errors.Is(err, generator.ErrExhausted) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return group, true, nil
	}

	raw, err := n.store.PopCall(ctx)
	if errors.Is(err, coordinator.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var group chunli.CallGroup
	if err := json.Unmarshal(raw, &group); err != nil {
		return nil, false, fmt.Errorf("decode call group: %w", err)
	}
	group.Normalize()

	// Ring semantics: the queue is a cyclic call corpus, not consumed.
	if err := n.store.PushCall(ctx, raw); err != nil {
		return nil, false, err
	}
	return group, true, nil
}

// buildResults folds the final status-count/latency state into a per-node
// Results, per spec.md §3/§4.4.
func buildResults(cfg chunli.CallerConfig, statusCounts map[int]int, latencies []float64) chunli.Results {
	realized := 0
	for _, n := range statusCounts {
		realized += n
	}

	var realizedRPS float64
	if cfg.Duration > 0 {
		realizedRPS = float64(realized) / float64(cfg.Duration)
	}

	errorsCount := statusCounts[500] + statusCounts[502] + statusCounts[503] + statusCounts[transportFailureStatus]

	return chunli.Results{
		Duration:            cfg.Duration,
		RampupTime:          cfg.RampupTime,
		RequestedRPSPerNode: cfg.RPSPerNode,
		RealizedRequests:    realized,
		RealizedRPS:         realizedRPS,
		Latency:             stats.Compute(latencies),
		ErrorsCount:         errorsCount,
	}
}
