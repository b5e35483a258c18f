// Package mockhttp provides a deterministic HTTP sink for exercising the
// dispatcher and rate controller without real network calls, adapted from
// the teacher's httptest-backed mock server.
package mockhttp

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// BehaviorProfile controls how the mock sink responds to every request.
type BehaviorProfile struct {
	// StatusCode is returned when Fraction500 is 0.
	StatusCode int
	// Fraction500 is the fraction (0..1) of requests answered with 500
	// instead of StatusCode. 0 disables it.
	Fraction500 float64
	// Latency is the fixed delay added before responding.
	Latency time.Duration
}

// DefaultBehaviorProfile always answers 200 with no added latency.
func DefaultBehaviorProfile() BehaviorProfile {
	return BehaviorProfile{StatusCode: http.StatusOK}
}

// Server is a configurable mock HTTP sink.
type Server struct {
	httpServer *httptest.Server
	behavior   atomic.Pointer[BehaviorProfile]
	requests   atomic.Int64

	mu         sync.Mutex
	lastHeader http.Header
}

// New starts a mock sink with the given behavior.
func New(behavior BehaviorProfile) *Server {
	s := &Server{}
	s.SetBehavior(behavior)
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// SetBehavior swaps the active behavior profile, safe for concurrent use
// while requests are in flight.
func (s *Server) SetBehavior(behavior BehaviorProfile) {
	s.behavior.Store(&behavior)
}

// URL is the base URL of the running mock sink.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// RequestCount returns the number of requests handled so far.
func (s *Server) RequestCount() int64 {
	return s.requests.Load()
}

// Close shuts down the sink.
func (s *Server) Close() {
	s.httpServer.Close()
}

// LastHeader returns the headers of the most recently handled request.
func (s *Server) LastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeader
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.mu.Lock()
	s.lastHeader = r.Header.Clone()
	s.mu.Unlock()

	behavior := *s.behavior.Load()

	if behavior.Latency > 0 {
		time.Sleep(behavior.Latency)
	}

	status := behavior.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if behavior.Fraction500 > 0 && rand.Float64() < behavior.Fraction500 {
		status = http.StatusInternalServerError
	}

	w.WriteHeader(status)
}
