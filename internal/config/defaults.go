package config

// Default configuration constants, mirrored by Load's fallback values.
const (
	DefaultRedisTarget        = "redis://"
	DefaultWorkers            = 1
	DefaultDebug              = 0
	DefaultHTTPMaxConnections = 4096
	DefaultHTTPTimeoutSeconds = 5
)
