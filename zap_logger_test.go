package geobase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "count", 3)
	logger.Warn("warn message")
	logger.Error("error message", "error", "boom")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, wantLevels[i])
		}
	}

	if fields := entries[1].ContextMap(); fields["count"] != int64(3) {
		t.Errorf("structured field not kept: %v", fields)
	}
}

func TestZapLogger_With(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	parent := NewZapLogger(zap.New(core))
	child := parent.With("component", "loader")

	child.Info("record skipped", "index", 2)
	parent.Info("plain")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "loader" || fields["index"] != int64(2) {
		t.Errorf("child fields = %v", fields)
	}
	if _, ok := entries[1].ContextMap()["component"]; ok {
		t.Error("child fields leaked into the parent")
	}
	if child.Desugar() == nil {
		t.Error("Desugar returned nil")
	}
}

func TestNewZapLoggerWithOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      LogOptions
		debugOn   bool
		infoOn    bool
		wantError bool
	}{
		{name: "Default", opts: LogOptions{}, infoOn: true},
		{name: "Debug", opts: LogOptions{Level: "debug"}, debugOn: true, infoOn: true},
		{name: "Warn", opts: LogOptions{Level: "warn"}},
		{name: "Development", opts: LogOptions{Development: true}, debugOn: true, infoOn: true},
		{name: "DevelopmentAtError", opts: LogOptions{Level: "error", Development: true}},
		{name: "UnknownLevel", opts: LogOptions{Level: "loud"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewZapLoggerWithOptions(tt.opts)
			if tt.wantError {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewZapLoggerWithOptions failed: %v", err)
			}
			core := logger.Desugar().Core()
			if got := core.Enabled(zapcore.DebugLevel); got != tt.debugOn {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugOn)
			}
			if got := core.Enabled(zapcore.InfoLevel); got != tt.infoOn {
				t.Errorf("info enabled = %v, want %v", got, tt.infoOn)
			}
		})
	}
}

func TestZapLogger_ConnectorEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	conn := NewConnector(testConfig(t), WithLogger(NewZapLogger(zap.New(core))))

	if _, err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	success := logs.FilterMessage("document store connection successful").All()
	if len(success) != 1 {
		t.Fatalf("expected a connection success entry, got %v", logs.All())
	}
	if got := success[0].ContextMap()["component"]; got != "connector" {
		t.Errorf("component = %v, want connector", got)
	}
}
