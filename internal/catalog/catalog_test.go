package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dutradda/chunli/internal/chunli"
)

type fakeStore struct {
	cleared     bool
	scriptClear bool
	pushed      [][]byte
}

func (f *fakeStore) ClearCalls(ctx context.Context) error {
	f.cleared = true
	return nil
}

func (f *fakeStore) ClearScript(ctx context.Context) error {
	f.scriptClear = true
	return nil
}

func (f *fakeStore) PushCall(ctx context.Context, group []byte) error {
	cp := make([]byte, len(group))
	copy(cp, group)
	f.pushed = append(f.pushed, cp)
	return nil
}

func TestSetCallsBareURL(t *testing.T) {
	store := &fakeStore{}
	if err := SetCalls(context.Background(), store, []string{"http://x/a"}); err != nil {
		t.Fatalf("SetCalls: %v", err)
	}

	if len(store.pushed) != 1 {
		t.Fatalf("pushed %d groups, want 1", len(store.pushed))
	}

	var group chunli.CallGroup
	if err := json.Unmarshal(store.pushed[0], &group); err != nil {
		t.Fatalf("unmarshal pushed group: %v", err)
	}
	if len(group) != 1 || group[0].URL != "http://x/a" || group[0].Method != "GET" {
		t.Errorf("group = %+v", group)
	}
}

func TestSetCallsGroupedCalls(t *testing.T) {
	store := &fakeStore{}
	line := `[{"url":"http://x/a"},{"url":"http://x/b","method":"POST"}]`
	if err := SetCalls(context.Background(), store, []string{line}); err != nil {
		t.Fatalf("SetCalls: %v", err)
	}

	if len(store.pushed) != 1 {
		t.Fatalf("pushed %d groups, want 1", len(store.pushed))
	}

	var group chunli.CallGroup
	json.Unmarshal(store.pushed[0], &group)
	if len(group) != 2 {
		t.Fatalf("group len = %d, want 2", len(group))
	}
	if group[0].Method != "GET" || group[1].Method != "POST" {
		t.Errorf("methods = %q %q", group[0].Method, group[1].Method)
	}
}

func TestSetCallsInvalidLineSkipped(t *testing.T) {
	store := &fakeStore{}
	err := SetCalls(context.Background(), store, []string{"garbage", "http://x/ok"})
	if err != nil {
		t.Fatalf("SetCalls: %v", err)
	}

	if len(store.pushed) != 1 {
		t.Fatalf("pushed %d groups, want 1", len(store.pushed))
	}

	var group chunli.CallGroup
	json.Unmarshal(store.pushed[0], &group)
	if group[0].URL != "http://x/ok" {
		t.Errorf("surviving group = %+v", group)
	}
}

func TestSetCallsClearsPriorState(t *testing.T) {
	store := &fakeStore{}
	SetCalls(context.Background(), store, nil)

	if !store.cleared {
		t.Error("expected ClearCalls to be invoked")
	}
	if !store.scriptClear {
		t.Error("expected ClearScript to be invoked")
	}
}

func TestSetCallsBlankLinesSkippedSilently(t *testing.T) {
	store := &fakeStore{}
	err := SetCalls(context.Background(), store, []string{"", "   ", "http://x/a"})
	if err != nil {
		t.Fatalf("SetCalls: %v", err)
	}
	if len(store.pushed) != 1 {
		t.Fatalf("pushed %d groups, want 1", len(store.pushed))
	}
}
