// Package catalog builds the shared calls queue from an uploaded text file,
// one call description per line.
package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dutradda/chunli/internal/chunli"
	"github.com/dutradda/chunli/internal/coordinator"
	"github.com/dutradda/chunli/internal/events"
)

// Store is the subset of coordinator.Client the catalog needs.
type Store interface {
	ClearCalls(ctx context.Context) error
	ClearScript(ctx context.Context) error
	PushCall(ctx context.Context, group []byte) error
}

var _ Store = (*coordinator.Client)(nil)

// SetCalls parses lines, one CallGroup candidate each, and writes the
// accepted groups to the shared queue in input order. Malformed lines are
// skipped, not fatal.
func SetCalls(ctx context.Context, store Store, lines []string) error {
	if err := store.ClearCalls(ctx); err != nil {
		return err
	}
	if err := store.ClearScript(ctx); err != nil {
		return err
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		group, ok := parseLine(line)
		if !ok {
			events.GetGlobalEventLogger().LogCallLineRejected(line, "neither valid JSON nor a bare URL")
			continue
		}

		encoded, err := json.Marshal(group)
		if err != nil {
			events.GetGlobalEventLogger().LogCallLineRejected(line, err.Error())
			continue
		}

		if err := store.PushCall(ctx, encoded); err != nil {
			return err
		}
	}

	return nil
}

// parseLine accepts three line shapes: a single JSON call object, a JSON
// array of call objects, or a bare URL beginning with "http".
func parseLine(line string) (chunli.CallGroup, bool) {
	var single chunli.Call
	if err := json.Unmarshal([]byte(line), &single); err == nil && single.URL != "" {
		single.Normalize()
		return chunli.CallGroup{single}, true
	}

	var group chunli.CallGroup
	if err := json.Unmarshal([]byte(line), &group); err == nil && len(group) > 0 {
		group.Normalize()
		return group, true
	}

	if strings.HasPrefix(line, "http") {
		call := chunli.Call{URL: line}
		call.Normalize()
		return chunli.CallGroup{call}, true
	}

	return nil, false
}
