// Package config loads chunli's process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the environment-driven settings shared by the control process
// and dispatcher nodes.
type Config struct {
	// RedisTarget is the address of the shared key/value/pub-sub store.
	RedisTarget string

	// Workers is the number of dispatcher threads per process.
	Workers int

	// Debug enables verbose logging when non-zero.
	Debug int

	// HTTPMaxConnections caps outbound client connections.
	HTTPMaxConnections int

	// HTTPTimeout is the per-outbound-request timeout.
	HTTPTimeout time.Duration
}

// Load builds a Config from the environment, falling back to spec defaults
// for any variable that isn't set.
func Load() (*Config, error) {
	cfg := &Config{
		RedisTarget:        DefaultRedisTarget,
		Workers:            DefaultWorkers,
		Debug:              DefaultDebug,
		HTTPMaxConnections: DefaultHTTPMaxConnections,
		HTTPTimeout:        time.Duration(DefaultHTTPTimeoutSeconds) * time.Second,
	}

	if v, ok := os.LookupEnv("REDIS_TARGET"); ok && v != "" {
		cfg.RedisTarget = v
	}

	if v, ok := os.LookupEnv("WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid WORKERS %q: %w", v, err)
		}
		cfg.Workers = n
	}

	if v, ok := os.LookupEnv("DEBUG"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid DEBUG %q: %w", v, err)
		}
		cfg.Debug = n
	}

	if v, ok := os.LookupEnv("HTTP_MAX_CONNECTIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid HTTP_MAX_CONNECTIONS %q: %w", v, err)
		}
		cfg.HTTPMaxConnections = n
	}

	if v, ok := os.LookupEnv("HTTP_TIMEOUT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		cfg.HTTPTimeout = time.Duration(n) * time.Second
	}

	return cfg, nil
}
