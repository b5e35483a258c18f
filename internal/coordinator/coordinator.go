// Package coordinator wraps the shared key-value/pub-sub store that lets an
// arbitrary number of dispatcher nodes run one synchronized load test.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Well-known keys, shared verbatim by every node in the fleet (see §3/§6.3).
const (
	KeyCalls       = "chunli:calls"
	KeyScript      = "chunli:script"
	ChannelDistrib = "chunli:distributed"
	KeyRunning     = "chunli:running"
	KeyResults     = "chunli:results"
)

// StopPayload is the literal ASCII message that tells idle subscribers to
// shed their subscription loop.
const StopPayload = "stop"

// ErrNotFound is returned by Pop/Get/Script lookups that find nothing.
var ErrNotFound = errors.New("coordinator: not found")

// Client is a typed wrapper over the shared store's operations.
type Client struct {
	rdb *redis.Client
}

// New connects a Client to target, a redis:// URL.
func New(target string) (*Client, error) {
	opts, err := redis.ParseURL(target)
	if err != nil {
		return nil, fmt.Errorf("coordinator: parse target: %w", err)
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// NewFromRedis wraps an already-constructed redis.Client, used by tests
// against an in-memory miniredis instance.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ClearCalls empties the calls queue.
func (c *Client) ClearCalls(ctx context.Context) error {
	return c.rdb.Del(ctx, KeyCalls).Err()
}

// PushCall appends one JSON-encoded CallGroup to the tail of the queue.
func (c *Client) PushCall(ctx context.Context, group []byte) error {
	return c.rdb.RPush(ctx, KeyCalls, group).Err()
}

// PopCall removes and returns the head of the queue. Returns ErrNotFound
// when the queue is empty.
func (c *Client) PopCall(ctx context.Context) ([]byte, error) {
	v, err := c.rdb.LPop(ctx, KeyCalls).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// CallsLen returns the current queue length.
func (c *Client) CallsLen(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, KeyCalls).Result()
}

// SetScript stores the inline generator source, replacing any prior value.
func (c *Client) SetScript(ctx context.Context, source string) error {
	return c.rdb.Set(ctx, KeyScript, source, 0).Err()
}

// GetScript returns the inline generator source. Returns ErrNotFound if
// none is set.
func (c *Client) GetScript(ctx context.Context) (string, error) {
	v, err := c.rdb.Get(ctx, KeyScript).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

// ClearScript deletes the inline generator source.
func (c *Client) ClearScript(ctx context.Context) error {
	return c.rdb.Del(ctx, KeyScript).Err()
}

// PublishConfig broadcasts a JSON-encoded CallerConfig exactly once.
func (c *Client) PublishConfig(ctx context.Context, payload []byte) error {
	return c.rdb.Publish(ctx, ChannelDistrib, payload).Err()
}

// PublishStop broadcasts the stop signal so idle subscribers exit gracefully.
func (c *Client) PublishStop(ctx context.Context) error {
	return c.rdb.Publish(ctx, ChannelDistrib, StopPayload).Err()
}

// Subscribe returns a subscription to the distributed-run channel.
func (c *Client) Subscribe(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, ChannelDistrib)
}

// AddRunning registers runningID as an executing node.
func (c *Client) AddRunning(ctx context.Context, runningID string) error {
	return c.rdb.SAdd(ctx, KeyRunning, runningID).Err()
}

// RemoveRunning deregisters runningID.
func (c *Client) RemoveRunning(ctx context.Context, runningID string) error {
	return c.rdb.SRem(ctx, KeyRunning, runningID).Err()
}

// RunningCount returns the current size of the running set.
func (c *Client) RunningCount(ctx context.Context) (int64, error) {
	return c.rdb.SCard(ctx, KeyRunning).Result()
}

// ClearRunning empties the running set.
func (c *Client) ClearRunning(ctx context.Context) error {
	return c.rdb.Del(ctx, KeyRunning).Err()
}

// SetResult writes one node's serialized Results under its runningID.
func (c *Client) SetResult(ctx context.Context, runningID string, payload []byte) error {
	return c.rdb.HSet(ctx, KeyResults, runningID, payload).Err()
}

// AllResults returns every field/value pair currently in the results map.
func (c *Client) AllResults(ctx context.Context) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, KeyResults).Result()
}

// ResultsLen returns the number of entries in the results map.
func (c *Client) ResultsLen(ctx context.Context) (int64, error) {
	return c.rdb.HLen(ctx, KeyResults).Result()
}

// ClearResults empties the results map.
func (c *Client) ClearResults(ctx context.Context) error {
	return c.rdb.Del(ctx, KeyResults).Err()
}
