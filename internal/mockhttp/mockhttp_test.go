package mockhttp

import (
	"net/http"
	"testing"
	"time"
)

func TestServerDefaultBehavior(t *testing.T) {
	s := New(DefaultBehaviorProfile())
	defer s.Close()

	resp, err := http.Get(s.URL())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if s.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", s.RequestCount())
	}
}

func TestServerFraction500All(t *testing.T) {
	s := New(BehaviorProfile{StatusCode: http.StatusOK, Fraction500: 1})
	defer s.Close()

	resp, err := http.Get(s.URL())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestServerSetBehaviorLive(t *testing.T) {
	s := New(BehaviorProfile{StatusCode: http.StatusOK})
	defer s.Close()

	s.SetBehavior(BehaviorProfile{StatusCode: http.StatusTeapot})
	resp, err := http.Get(s.URL())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", resp.StatusCode)
	}
}

func TestServerLatency(t *testing.T) {
	s := New(BehaviorProfile{StatusCode: http.StatusOK, Latency: 10 * time.Millisecond})
	defer s.Close()

	start := time.Now()
	resp, err := http.Get(s.URL())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if time.Since(start) < 10*time.Millisecond {
		t.Error("expected at least 10ms latency")
	}
}
