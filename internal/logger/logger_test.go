package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "warn"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if l == nil {
		t.Fatal("New returned nil logger")
	}
	l.Debug("filtered")
}

func TestFromZapWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(String("component", "ledger"))

	l.Warn("storage write failed", Error(errors.New("quota exceeded")), Int("events", 3))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["component"] != "ledger" {
		t.Errorf("component field = %v, want ledger", ctx["component"])
	}
	if ctx["error"] != "quota exceeded" {
		t.Errorf("error field = %v", ctx["error"])
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Info("ignored", String("k", "v"))
	if l.With(Bool("b", true)) != l {
		t.Error("NoOpLogger.With should return itself")
	}
	if err := l.Sync(); err != nil {
		t.Errorf("Sync returned %v", err)
	}
}
