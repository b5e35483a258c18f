package events

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// level is the shared verbosity for every EventLogger's own handler,
// distinct from the root logger slog.SetLogLoggerLevel controls. SetLevel
// lets §6.1's DEBUG env var raise it so event logging, not just the root
// logger, gets verbose.
var level = &slog.LevelVar{}

// SetLevel adjusts the minimum level every EventLogger emits at, including
// ones already constructed (they share this LevelVar).
func SetLevel(l slog.Level) {
	level.Set(l)
}

// EventLogger provides structured logging for key events in chunli.
type EventLogger struct {
	logger    *slog.Logger
	runningID string
	nodeID    string
}

// NewEventLogger creates a new EventLogger with JSON output to stdout.
// It includes base attributes: running_id and node_id.
func NewEventLogger(runningID, nodeID string) *EventLogger {
	return NewEventLoggerWithWriter(runningID, nodeID, os.Stdout)
}

// NewEventLoggerWithWriter creates a new EventLogger with JSON output to a custom writer.
// Useful for testing or redirecting output.
func NewEventLoggerWithWriter(runningID, nodeID string, w io.Writer) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler).With(
		"running_id", runningID,
		"node_id", nodeID,
	)
	return &EventLogger{
		logger:    logger,
		runningID: runningID,
		nodeID:    nodeID,
	}
}

// LogNodeSubscribed logs a node entering SUBSCRIBED state.
// event: "node_subscribed"
func (el *EventLogger) LogNodeSubscribed(channel string) {
	el.logger.Info("node_subscribed", "channel", channel)
}

// LogDispatchStart logs the beginning of a node's RUNNING phase.
// event: "dispatch_start"
func (el *EventLogger) LogDispatchStart(duration int, rpsPerNode int) {
	el.logger.Info("dispatch_start",
		"duration", duration,
		"rps_per_node", rpsPerNode,
	)
}

// LogDispatchStop logs the end of a node's RUNNING phase.
// event: "dispatch_stop"
func (el *EventLogger) LogDispatchStop(realizedRequests int, errorsCount int) {
	el.logger.Info("dispatch_stop",
		"realized_requests", realizedRequests,
		"errors_count", errorsCount,
	)
}

// LogCallLineRejected logs a malformed line skipped while building the call catalog.
// event: "call_line_rejected"
func (el *EventLogger) LogCallLineRejected(line string, reason string) {
	el.logger.Warn("call_line_rejected",
		"line", line,
		"reason", reason,
	)
}

// LogResultsPublished logs a node publishing its per-node Results to the results hash.
// event: "results_published"
func (el *EventLogger) LogResultsPublished() {
	el.logger.Info("results_published")
}

// LogAggregationTimeout logs the aggregator giving up waiting for all nodes to report.
// event: "aggregation_timeout"
func (el *EventLogger) LogAggregationTimeout(nodesReported int, nodesRunning int) {
	el.logger.Warn("aggregation_timeout",
		"nodes_reported", nodesReported,
		"nodes_running", nodesRunning,
	)
}

// LogStopReceived logs a node receiving the "stop" control message.
// event: "stop_received"
func (el *EventLogger) LogStopReceived() {
	el.logger.Info("stop_received")
}

// LogDispatchLoopError logs a non-fatal error raised while popping, parsing,
// or dispatching a CallGroup. The dispatch loop continues after logging.
// event: "dispatch_loop_error"
func (el *EventLogger) LogDispatchLoopError(reason string) {
	el.logger.Warn("dispatch_loop_error", "reason", reason)
}

// Global logger management
var (
	globalLogger *EventLogger
	globalMu     sync.RWMutex
	noopLogger   = newNoopEventLogger()
)

// SetGlobalEventLogger sets the global event logger instance.
func SetGlobalEventLogger(l *EventLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalEventLogger returns the global event logger instance.
// If no logger is set, returns a no-op logger.
func GetGlobalEventLogger() *EventLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return noopLogger
}

// NoopEventLogger returns an event logger that discards all events.
// Useful for testing or when event logging is disabled.
func NoopEventLogger() *EventLogger {
	return noopLogger
}

func newNoopEventLogger() *EventLogger {
	handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &EventLogger{
		logger: slog.New(handler),
	}
}
