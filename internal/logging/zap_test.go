package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestLogger(t *testing.T) (*ZapLogger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapLogger(zap.New(core)), logs
}

func TestZapLogger_Levels_WriteExpectedEntries(t *testing.T) {
	log, logs := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	tests := []struct {
		level zapcore.Level
		msg   string
		key   string
	}{
		{zapcore.DebugLevel, "dbg", "a"},
		{zapcore.InfoLevel, "inf", "b"},
		{zapcore.WarnLevel, "wrn", "c"},
		{zapcore.ErrorLevel, "err", "d"},
	}

	entries := logs.All()
	if len(entries) != len(tests) {
		t.Fatalf("expected %d entries, got %d", len(tests), len(entries))
	}
	for i, tc := range tests {
		e := entries[i]
		if e.Level != tc.level || e.Message != tc.msg {
			t.Fatalf("entry %d: got %s %q, want %s %q", i, e.Level, e.Message, tc.level, tc.msg)
		}
		if _, ok := e.ContextMap()[tc.key]; !ok {
			t.Fatalf("entry %d: missing field %q in %v", i, tc.key, e.ContextMap())
		}
	}
}

func TestZapLogger_With_AddsFields(t *testing.T) {
	log, logs := newTestLogger(t)

	log.With("tab", "a1").Info(context.Background(), "hello", "k", "v")

	e := logs.All()[0]
	fields := e.ContextMap()
	if fields["tab"] != "a1" || fields["k"] != "v" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "verbose", App: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	core := l.l.Desugar().Core()
	if core.Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug must be disabled at default level")
	}
	if !core.Enabled(zapcore.InfoLevel) {
		t.Fatalf("info must be enabled")
	}
}

func TestNewNop_DoesNotPanic(t *testing.T) {
	log := NewNop()
	ctx := context.TODO()
	log.Info(ctx, "ok")
	log.With("x", 1).Error(ctx, "ok")
}
