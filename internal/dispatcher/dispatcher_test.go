package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dutradda/chunli/internal/chunli"
	"github.com/dutradda/chunli/internal/coordinator"
	"github.com/dutradda/chunli/internal/generator"
	"github.com/dutradda/chunli/internal/httpclient"
	"github.com/dutradda/chunli/internal/mockhttp"
)

func newTestStore(t *testing.T) *coordinator.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return coordinator.NewFromRedis(rdb)
}

func TestNodeRunOnceDrainsQueueAndPublishesResults(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sink := mockhttp.New(mockhttp.BehaviorProfile{StatusCode: http.StatusOK})
	defer sink.Close()

	group := chunli.CallGroup{{URL: sink.URL(), Method: "GET"}}
	group.Normalize()
	encoded, _ := json.Marshal(group)
	if err := store.PushCall(ctx, encoded); err != nil {
		t.Fatalf("PushCall: %v", err)
	}

	client := httpclient.New(16, time.Second)
	defer client.Close()

	node := NewNode("test-node", store, client, WithPoolSize(10))
	// Walk the node to RECEIVED_CONFIG the way Run does, so runOnce's
	// RUNNING/REPORTING transitions are accepted.
	node.setState(StateSubscribed)
	node.setState(StateReceivedConfig)

	cfg := chunli.CallerConfig{Duration: 2, RPSPerNode: 20, RampupTime: 0}
	if err := node.runOnce(ctx, cfg); err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	if got := node.State(); got != StateReporting {
		t.Errorf("node.State() after runOnce = %s, want %s", got, StateReporting)
	}

	running, err := store.RunningCount(ctx)
	if err != nil {
		t.Fatalf("RunningCount: %v", err)
	}
	if running != 0 {
		t.Errorf("RunningCount = %d, want 0 after run completes", running)
	}

	all, err := store.AllResults(ctx)
	if err != nil {
		t.Fatalf("AllResults: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("AllResults has %d entries, want 1", len(all))
	}

	var results chunli.Results
	for _, raw := range all {
		if err := json.Unmarshal([]byte(raw), &results); err != nil {
			t.Fatalf("decode results: %v", err)
		}
	}

	if results.RealizedRequests == 0 {
		t.Error("expected at least one realized request")
	}
	if results.ErrorsCount != 0 {
		t.Errorf("ErrorsCount = %d, want 0 (sink always answers 200)", results.ErrorsCount)
	}
	wantRPS := float64(results.RealizedRequests) / float64(cfg.Duration)
	if results.RealizedRPS != wantRPS {
		t.Errorf("RealizedRPS = %v, want %v", results.RealizedRPS, wantRPS)
	}

	// The queue is a cyclic corpus: popping then re-pushing leaves it intact.
	n, err := store.CallsLen(ctx)
	if err != nil {
		t.Fatalf("CallsLen: %v", err)
	}
	if n != 1 {
		t.Errorf("CallsLen after run = %d, want 1 (ring semantics)", n)
	}
}

func TestNodeRunOnceCountsErrorStatuses(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sink := mockhttp.New(mockhttp.BehaviorProfile{StatusCode: http.StatusInternalServerError})
	defer sink.Close()

	group := chunli.CallGroup{{URL: sink.URL(), Method: "GET"}}
	group.Normalize()
	encoded, _ := json.Marshal(group)
	store.PushCall(ctx, encoded)

	client := httpclient.New(16, time.Second)
	defer client.Close()

	node := NewNode("test-node", store, client, WithPoolSize(10))

	cfg := chunli.CallerConfig{Duration: 1, RPSPerNode: 20, RampupTime: 0}
	if err := node.runOnce(ctx, cfg); err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	all, _ := store.AllResults(ctx)
	var results chunli.Results
	for _, raw := range all {
		json.Unmarshal([]byte(raw), &results)
	}

	if results.ErrorsCount != results.RealizedRequests {
		t.Errorf("ErrorsCount = %d, want %d (sink always answers 500)", results.ErrorsCount, results.RealizedRequests)
	}
}

func TestNodeNextGroupUsesGeneratorExclusively(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// The queue has one group, but a generator is attached — it must win.
	queued := chunli.CallGroup{{URL: "http://queue/x", Method: "GET"}}
	encoded, _ := json.Marshal(queued)
	store.PushCall(ctx, encoded)

	genGroup := chunli.CallGroup{{URL: "http://generator/y", Method: "GET"}}
	gen := generator.NewCycleGenerator([]chunli.CallGroup{genGroup})

	client := httpclient.New(16, time.Second)
	defer client.Close()

	node := NewNode("test-node", store, client, WithGenerator(gen))

	group, ok, err := node.nextGroup(ctx, node.gen)
	if err != nil {
		t.Fatalf("nextGroup: %v", err)
	}
	if !ok {
		t.Fatal("expected a group from the generator")
	}
	if group[0].URL != "http://generator/y" {
		t.Errorf("nextGroup returned %+v, want the generator's group", group)
	}
}

func TestNodeNextGroupEmptyQueueReportsNotOK(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	client := httpclient.New(16, time.Second)
	defer client.Close()

	node := NewNode("test-node", store, client)

	_, ok, err := node.nextGroup(ctx, nil)
	if err != nil {
		t.Fatalf("nextGroup: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false on an empty queue")
	}
}
