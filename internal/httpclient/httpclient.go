// Package httpclient is the outbound HTTP client dispatcher nodes share for
// every Call in a run: cmd/worker builds one *http.Client per process and
// shares it across all of that process's Nodes, its transport sized from
// HTTP_MAX_CONNECTIONS, its deadline from HTTP_TIMEOUT.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dutradda/chunli/internal/chunli"
	"github.com/dutradda/chunli/internal/telemetry"
)

// Client issues the Calls a dispatcher node pulls off the shared queue. Its
// underlying transport's connection pool is safe for concurrent use by
// every worker in the node's dispatch pool.
type Client struct {
	http   *http.Client
	tracer *telemetry.Tracer
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTracer makes Do inject the active span's W3C traceparent header into
// every outbound request, so a traced call carries context across the wire.
func WithTracer(tracer *telemetry.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// New builds a Client with a transport capped at maxConnections total idle
// and per-host connections, and a per-request deadline of timeout.
func New(maxConnections int, timeout time.Duration, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        maxConnections,
		MaxIdleConnsPerHost: maxConnections,
		MaxConnsPerHost:     maxConnections,
	}
	c := &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues call and returns the response status code. A non-nil error
// means the request never produced a status code (connect failure, timeout,
// TLS failure, a canceled context) — the spec's TransportFailure kind,
// reported by callers under the -1 status bucket.
func (c *Client) Do(ctx context.Context, call chunli.Call) (int, error) {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	var body *bytes.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return 0, fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}
	if len(call.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	telemetry.InjectHeaders(ctx, req.Header, c.tracer)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpclient: do request: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
