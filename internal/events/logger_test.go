package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestGetGlobalEventLoggerReturnsSingletonNoopWhenUnset(t *testing.T) {
	SetGlobalEventLogger(nil)

	a := GetGlobalEventLogger()
	b := GetGlobalEventLogger()

	if a == nil || b == nil {
		t.Fatal("expected non-nil noop logger")
	}
	if a != b {
		t.Fatal("expected singleton noop logger instance")
	}
}

func TestSetLevelRaisesEveryEventLoggersVerbosity(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	SetLevel(slog.LevelInfo)
	el := NewEventLoggerWithWriter("run-1", "node-1", io.Discard)
	if el.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled at LevelInfo")
	}

	SetLevel(slog.LevelDebug)
	if !el.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled after SetLevel(LevelDebug), even for an already-constructed logger")
	}
}
