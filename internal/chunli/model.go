// Package chunli defines the wire-level data model shared across chunli's
// coordinator, dispatcher, and aggregator packages.
package chunli

import "encoding/json"

// Call is a single HTTP request description. Headers and Body are never
// omitted on encode, even when empty/nil: a Python fleet node reads them by
// direct key access (see original_source/chunli/caller.py), so a group a Go
// node pops must always carry both keys.
type Call struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

// Normalize fills in defaults required by the data model's invariants.
// The url must already be non-empty; callers validate that separately.
func (c *Call) Normalize() {
	if c.Method == "" {
		c.Method = "GET"
	}
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
}

// CallGroup is an ordered sequence of Calls treated as one atomic unit of
// work pulled from the shared queue.
type CallGroup []Call

// Normalize defaults every Call in the group.
func (g CallGroup) Normalize() {
	for i := range g {
		g[i].Normalize()
	}
}

// CallerConfig carries the parameters of a single run.
type CallerConfig struct {
	Duration   int     `json:"duration"`
	RPSPerNode float64 `json:"rps_per_node"`
	RampupTime int     `json:"rampup_time"`
}

// Latency summarizes a latency sample, all fields in seconds.
type Latency struct {
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	Percentile95 float64 `json:"percentile95"`
	Percentile99 float64 `json:"percentile99"`
}

// Error describes a failure surfaced to a client through a Results envelope.
type Error struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

// Results is a per-node (or aggregate, via the embedded extra fields) run
// outcome. NodesQuantity and Err are zero-valued for a per-node Results.
type Results struct {
	Duration            int     `json:"duration"`
	RampupTime          int     `json:"rampup_time"`
	RequestedRPSPerNode float64 `json:"requested_rps_per_node"`
	RealizedRequests    int     `json:"realized_requests"`
	RealizedRPS         float64 `json:"realized_rps"`
	Latency             Latency `json:"latency"`
	ErrorsCount         int     `json:"errors_count"`

	// NodesQuantity is only meaningful on the aggregate variant: the number
	// of per-node Results folded into this one.
	NodesQuantity int `json:"nodes_quantity,omitempty"`

	// Err carries a top-level failure for the aggregate Results envelope.
	Err *Error `json:"error,omitempty"`
}
