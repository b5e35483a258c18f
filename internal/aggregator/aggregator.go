// Package aggregator implements spec.md §4.6's get_results: a barrier that
// waits for every dispatcher node to finish, then merges their per-node
// Results into one aggregate Results.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dutradda/chunli/internal/chunli"
	"github.com/dutradda/chunli/internal/coordinator"
	"github.com/dutradda/chunli/internal/events"
)

// PollInterval is the aggregator's wait-phase poll cadence.
const PollInterval = time.Second

// Store is the subset of coordinator.Client the aggregator needs.
type Store interface {
	RunningCount(ctx context.Context) (int64, error)
	AllResults(ctx context.Context) (map[string]string, error)
}

var _ Store = (*coordinator.Client)(nil)

// ErrTimeout is returned when the wait phase exhausts without every node
// reporting in. Its Error method yields the ResultsTimeoutError shape spec.md
// §7 assigns to the client-facing Results envelope.
type ErrTimeout struct {
	TotalTimeout time.Duration
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("aggregator: timed out waiting for results after %s", e.TotalTimeout)
}

// AsChunliError renders this timeout as the wire-level Error spec.md §7
// assigns to a failed aggregate Results.
func (e *ErrTimeout) AsChunliError() chunli.Error {
	return chunli.Error{
		Name: "ResultsTimeoutError",
		Args: []string{fmt.Sprintf("%g", e.TotalTimeout.Seconds())},
	}
}

// Wait implements the wait phase: it polls every PollInterval, continuing
// while any of (a) the running set is non-empty, (b) the results map is
// empty, or (c) the deadline hasn't passed — per spec.md §4.6's three-way OR
// — and fails with ErrTimeout if the first two still hold once it's done.
// The deadline is a hard cap: it stops the poll even if (a) or (b) still
// hold, which is what lets a run with no reporting node ever time out.
func Wait(ctx context.Context, store Store, duration, timeout time.Duration) error {
	deadline := time.Now().Add(duration + timeout)

	for {
		running, err := store.RunningCount(ctx)
		if err != nil {
			return fmt.Errorf("aggregator: running count: %w", err)
		}
		results, err := store.AllResults(ctx)
		if err != nil {
			return fmt.Errorf("aggregator: results: %w", err)
		}

		stillRunning := running > 0
		noResults := len(results) == 0
		beforeDeadline := time.Now().Before(deadline)

		// Keep polling while any of the three holds; the deadline also caps
		// the poll, so it never ends early just because results arrived.
		keepWaiting := stillRunning || noResults || beforeDeadline
		if !keepWaiting || !beforeDeadline {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(PollInterval):
		}
	}

	running, err := store.RunningCount(ctx)
	if err != nil {
		return fmt.Errorf("aggregator: running count: %w", err)
	}
	results, err := store.AllResults(ctx)
	if err != nil {
		return fmt.Errorf("aggregator: results: %w", err)
	}

	if running > 0 || len(results) == 0 {
		total := duration + timeout
		events.GetGlobalEventLogger().LogAggregationTimeout(len(results), int(running))
		return &ErrTimeout{TotalTimeout: total}
	}
	return nil
}

// GetResults runs the wait phase, then merges every entry of the results map
// into the aggregate Results. Failing the wait phase does not error out —
// per spec.md §7's propagation policy, an aggregate-level failure is
// reported through the Results envelope's Err field instead.
func GetResults(ctx context.Context, store Store, duration, timeout time.Duration) chunli.Results {
	if err := Wait(ctx, store, duration, timeout); err != nil {
		var chunliErr chunli.Error
		var timeoutErr *ErrTimeout
		if errors.As(err, &timeoutErr) {
			chunliErr = timeoutErr.AsChunliError()
		} else {
			chunliErr = chunli.Error{Name: "Fatal", Args: []string{err.Error()}}
		}
		return chunli.Results{Err: &chunliErr}
	}

	raw, err := store.AllResults(ctx)
	if err != nil {
		chunliErr := chunli.Error{Name: "Fatal", Args: []string{err.Error()}}
		return chunli.Results{Err: &chunliErr}
	}

	return Merge(raw)
}

// Merge folds every serialized per-node Results in raw into the aggregate
// Results, per spec.md §3's aggregation rules.
func Merge(raw map[string]string) chunli.Results {
	var nodes []chunli.Results
	for _, payload := range raw {
		var r chunli.Results
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			continue
		}
		nodes = append(nodes, r)
	}

	if len(nodes) == 0 {
		return chunli.Results{}
	}

	var (
		sumDuration   int
		sumRampup     int
		sumReqRPS     float64
		sumRealized   int
		sumMean       float64
		sumMedian     float64
		sumP95        float64
		sumP99        float64
		sumErrorCount int
	)
	for _, n := range nodes {
		sumDuration += n.Duration
		sumRampup += n.RampupTime
		sumReqRPS += n.RequestedRPSPerNode
		sumRealized += n.RealizedRequests
		sumMean += n.Latency.Mean
		sumMedian += n.Latency.Median
		sumP95 += n.Latency.Percentile95
		sumP99 += n.Latency.Percentile99
		sumErrorCount += n.ErrorsCount
	}

	count := float64(len(nodes))
	requestedDuration := sumDuration / len(nodes)

	var realizedRPS float64
	if requestedDuration > 0 {
		realizedRPS = float64(sumRealized) / float64(requestedDuration)
	}

	return chunli.Results{
		Duration:            requestedDuration,
		RampupTime:          int(math.Round(float64(sumRampup) / count)),
		RequestedRPSPerNode: sumReqRPS / count,
		RealizedRequests:    sumRealized,
		RealizedRPS:         realizedRPS,
		Latency: chunli.Latency{
			Mean:         sumMean / count,
			Median:       sumMedian / count,
			Percentile95: sumP95 / count,
			Percentile99: sumP99 / count,
		},
		ErrorsCount:   sumErrorCount,
		NodesQuantity: len(nodes),
	}
}
