package logsink

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	z := NewZap(zap.New(core))

	l := New(Multi(z))
	l.Infof("listening on %d", 8080)
	l.Warnf("already running")
	l.Errorf("accept failed")
	l.Debugf("relay closed: %s", "reset")

	tests := []struct {
		msg   string
		level zapcore.Level
	}{
		{msg: "listening on 8080", level: zapcore.InfoLevel},
		{msg: "already running", level: zapcore.WarnLevel},
		{msg: "accept failed", level: zapcore.ErrorLevel},
		{msg: "relay closed: reset", level: zapcore.DebugLevel},
	}

	entries := logs.AllUntimed()
	if len(entries) != len(tests) {
		t.Fatalf("expected %d entries got %d", len(tests), len(entries))
	}
	for i, tt := range tests {
		if entries[i].Message != tt.msg || entries[i].Level != tt.level {
			t.Fatalf("entry %d: expected %s %q got %s %q", i, tt.level, tt.msg, entries[i].Level, entries[i].Message)
		}
	}
}

func TestNewZapNil(t *testing.T) {
	z := NewZap(nil)
	z.Append("dropped", Error)
	if z.Logger() == nil {
		t.Fatal("expected nop logger")
	}
}
