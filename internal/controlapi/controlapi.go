// Package controlapi is the HTTP control plane that accepts a run request
// and reports aggregate Results — the "external collaborator" spec.md §1
// marks out of scope for the core, given its own concrete implementation so
// the repository is runnable end to end.
package controlapi

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/dutradda/chunli/internal/catalog"
	"github.com/dutradda/chunli/internal/chunli"
	"github.com/dutradda/chunli/internal/coordinator"
	"github.com/dutradda/chunli/internal/hostinfo"
	"github.com/dutradda/chunli/internal/initiator"
	"github.com/dutradda/chunli/internal/telemetry"
)

// chunLiMoves is the set of special-move names GET /status rotates through,
// carried forward from the original author's liveness payload (see
// SPEC_FULL.md's SUPPLEMENTED FEATURES).
var chunLiMoves = []string{
	"kikoken",
	"spinning_bird_kick",
	"hyakuretsukyaku",
	"senretsukyaku",
	"houyoku_sen",
}

// Store is the subset of coordinator.Client the control API needs, threaded
// through to the catalog and initiator packages it delegates to.
type Store interface {
	catalog.Store
	initiator.Store
}

var _ Store = (*coordinator.Client)(nil)

// Aggregator runs the barrier-and-merge phase and returns the aggregate
// Results, per spec.md §4.6. Implemented by aggregator.GetResults.
type Aggregator func(ctx context.Context, duration, timeout time.Duration) chunli.Results

// Server exposes the control HTTP API: POST /run and GET /status.
type Server struct {
	store      Store
	aggregator Aggregator
	tracer     *telemetry.Tracer
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithTracer makes Handler wrap every route in telemetry.Middleware, so each
// control-plane request gets a server span and propagates the incoming
// traceparent into the run it kicks off.
func WithTracer(tracer *telemetry.Tracer) ServerOption {
	return func(s *Server) { s.tracer = tracer }
}

// NewServer builds a Server whose /run handler delegates to store for the
// catalog/initiator steps and to aggregator for the results-wait/merge step.
func NewServer(store Store, aggregator Aggregator, opts ...ServerOption) *Server {
	s := &Server{store: store, aggregator: aggregator}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the *http.ServeMux routing POST /run and GET /status,
// wrapped in the tracing middleware when a tracer was configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/status", s.handleStatus)

	if s.tracer != nil {
		return telemetry.Middleware(s.tracer)(mux)
	}
	return mux
}

// statusResponse is GET /status's liveness payload: spec.md §6.2 only
// requires "a trivial JSON object"; SPEC_FULL.md supplements it with a
// rotating in-joke field and a best-effort host snapshot.
type statusResponse struct {
	Chunli string            `json:"chunli"`
	Host   hostinfo.Snapshot `json:"host"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		Chunli: chunLiMoves[rand.Intn(len(chunLiMoves))],
		Host:   hostinfo.Collect(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg, err := parseCallerConfig(r)
	if err != nil {
		writeResultsError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	lines, err := readGzippedLines(r.Body)
	if err != nil {
		writeResultsError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	ctx := r.Context()

	if err := catalog.SetCalls(ctx, s.store, lines); err != nil {
		writeResultsError(w, http.StatusInternalServerError, "Fatal", err.Error())
		return
	}

	if err := initiator.Start(ctx, s.store, cfg); err != nil {
		writeResultsError(w, http.StatusInternalServerError, "Fatal", err.Error())
		return
	}

	duration := time.Duration(cfg.Duration) * time.Second
	results := s.aggregator(ctx, duration, 0)
	writeJSON(w, http.StatusOK, results)
}

// parseCallerConfig reads duration, rps_per_node, and the optional
// rampup_time from the query string, per spec.md §6.2.
func parseCallerConfig(r *http.Request) (chunli.CallerConfig, error) {
	q := r.URL.Query()

	duration, err := strconv.Atoi(q.Get("duration"))
	if err != nil || duration < 1 {
		return chunli.CallerConfig{}, fmt.Errorf("duration must be an integer >= 1")
	}

	rps, err := strconv.ParseFloat(q.Get("rps_per_node"), 64)
	if err != nil || rps <= 0 {
		return chunli.CallerConfig{}, fmt.Errorf("rps_per_node must be a positive number")
	}

	rampup := 0
	if v := q.Get("rampup_time"); v != "" {
		rampup, err = strconv.Atoi(v)
		if err != nil || rampup < 0 {
			return chunli.CallerConfig{}, fmt.Errorf("rampup_time must be an integer >= 0")
		}
	}

	return chunli.CallerConfig{Duration: duration, RPSPerNode: rps, RampupTime: rampup}, nil
}

// readGzippedLines decompresses body and splits it into text lines, per
// spec.md §6.2's gzip-compressed call file.
func readGzippedLines(body io.Reader) ([]string, error) {
	gz, err := gzip.NewReader(body)
	if err != nil {
		return nil, fmt.Errorf("decompress body: %w", err)
	}
	defer gz.Close()

	var lines []string
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return lines, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeResultsError(w http.ResponseWriter, status int, name, message string) {
	results := chunli.Results{Err: &chunli.Error{Name: name, Args: []string{message}}}
	writeJSON(w, status, results)
}
