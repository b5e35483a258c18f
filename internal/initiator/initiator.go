// Package initiator implements spec.md §4.3's start_distributed_calls: it
// resets run-scoped state and broadcasts a CallerConfig to every subscribed
// dispatcher node.
package initiator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dutradda/chunli/internal/chunli"
	"github.com/dutradda/chunli/internal/coordinator"
)

// Store is the subset of coordinator.Client the initiator needs.
type Store interface {
	ClearRunning(ctx context.Context) error
	ClearResults(ctx context.Context) error
	PublishConfig(ctx context.Context, payload []byte) error
}

var _ Store = (*coordinator.Client)(nil)

// Start clears the running set and results map, then publishes cfg exactly
// once on the distributed-run channel. It does not wait for subscribers:
// nodes not yet subscribed at publish time miss the run.
func Start(ctx context.Context, store Store, cfg chunli.CallerConfig) error {
	if err := store.ClearRunning(ctx); err != nil {
		return fmt.Errorf("initiator: clear running: %w", err)
	}
	if err := store.ClearResults(ctx); err != nil {
		return fmt.Errorf("initiator: clear results: %w", err)
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("initiator: encode config: %w", err)
	}

	if err := store.PublishConfig(ctx, payload); err != nil {
		return fmt.Errorf("initiator: publish config: %w", err)
	}
	return nil
}
