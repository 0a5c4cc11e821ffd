package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func newBufferLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: level, Format: "json"}, "agentflow", &buf)
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got nothing")
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNew_ServiceNameFromConfig(t *testing.T) {
	l := New(&Config{ServiceName: "agentflow", Level: "debug", Format: "json"}, "")
	if l.service != "agentflow" {
		t.Errorf("expected service from config, got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	l, buf := newBufferLogger(t, "invalid-level")
	l.Debug("hidden")
	l.Info("visible")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("invalid level should fall back to info")
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Error("expected info line to be written")
	}
}

func TestNewFromEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")
	defer os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("LOG_FORMAT")

	l := NewFromEnv("env-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn")
	l.Info("info line")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("warn line")
	if m := decodeLine(t, buf); m["message"] != "warn line" {
		t.Errorf("unexpected message: %v", m["message"])
	}
}

func TestWithComponent(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	l.WithComponent("scheduler").Info("started")
	m := decodeLine(t, buf)
	if m[FieldComponent] != "scheduler" {
		t.Errorf("expected component=scheduler, got %v", m[FieldComponent])
	}
	if m["service"] != "agentflow" {
		t.Errorf("expected service=agentflow, got %v", m["service"])
	}
}

func TestWithContext(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithRunID(ctx, "run-1")
	ctx = ContextWithRequestID(ctx, "req-1")

	l.WithContext(ctx).Info("node started")
	m := decodeLine(t, buf)

	want := map[string]string{
		FieldTraceID:   "4bf92f3577b34da6a3ce929d0e0e4736",
		FieldSpanID:    "00f067aa0ba902b7",
		FieldRunID:     "run-1",
		FieldRequestID: "req-1",
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("expected %s=%s, got %v", k, v, m[k])
		}
	}
}

func TestWithContext_Empty(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	l.WithContext(context.Background()).Info("plain")
	m := decodeLine(t, buf)
	for _, k := range []string{FieldTraceID, FieldRunID, FieldRequestID} {
		if _, ok := m[k]; ok {
			t.Errorf("did not expect %s in an empty context", k)
		}
	}
}

func TestContextIDs(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "abc")
	if got := RunIDFromContext(ctx); got != "abc" {
		t.Errorf("expected run id abc, got %q", got)
	}
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}
}

func TestWithFieldsAndError(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	l.WithFields(NodeFields("run-9", "summarize", 2)).WithError(fmt.Errorf("boom")).Error("node failed")
	m := decodeLine(t, buf)
	if m[FieldNode] != "summarize" {
		t.Errorf("expected node=summarize, got %v", m[FieldNode])
	}
	if m[FieldLayer] != float64(2) {
		t.Errorf("expected layer=2, got %v", m[FieldLayer])
	}
	if m[FieldError] != "boom" {
		t.Errorf("expected error=boom, got %v", m[FieldError])
	}
}

func TestInit(t *testing.T) {
	cfg := Config{ServiceName: "agentflow", Format: "json"}
	Init(&cfg)
	gl := GetGlobalLogger()
	if gl == nil {
		t.Fatal("expected global logger to be set after Init")
	}
	if gl.service != "agentflow" {
		t.Errorf("expected service agentflow, got %q", gl.service)
	}
	if cfg.Level != "info" {
		t.Errorf("Init should apply defaults, got level %q", cfg.Level)
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
}

func TestSetGlobalLogger(t *testing.T) {
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")
	SetGlobalLogger(l)
	defer SetGlobalLogger(nil)

	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Errorf("expected 4 log lines, got %d", len(lines))
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected output 'stderr', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stdout"}, false},
		{"valid console", Config{Level: "debug", Format: "console", Output: "stderr"}, false},
		{"invalid level", Config{Level: "bad", Format: "json", Output: "stdout"}, true},
		{"invalid format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"invalid output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConsoleLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "console", NoColor: true}, "agentflow", &buf)
	l.Info("hello")
	out := buf.String()
	if !strings.Contains(out, "[AGE][INF]") {
		t.Errorf("expected service and level tags, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := NewDefault("custom-component")
	Register("my-component", l)

	if Get("my-component") != l {
		t.Error("expected Get to return the registered logger")
	}
	if Get("unregistered-component") == nil {
		t.Fatal("expected non-nil logger for unregistered component")
	}
}

func TestRegisterDefaults(t *testing.T) {
	Init(&Config{Level: "info", Format: "json", Output: "stdout"})
	RegisterDefaults()

	for _, name := range []string{"workflow", "scheduler", "executor", "api", "cli"} {
		registry.mu.RLock()
		_, ok := registry.loggers[name]
		registry.mu.RUnlock()
		if !ok {
			t.Errorf("expected %q to be registered", name)
		}
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		kvs  []interface{}
		want map[string]interface{}
	}{
		{"pairs", []interface{}{"a", 1, "b", "two"}, map[string]interface{}{"a": 1, "b": "two"}},
		{"odd count drops tail", []interface{}{"a", 1, "b"}, map[string]interface{}{"a": 1}},
		{"non-string key skipped", []interface{}{42, "x", "k", "v"}, map[string]interface{}{"k": "v"}},
		{"empty", nil, map[string]interface{}{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Fields(tc.kvs...)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d fields, got %d (%v)", len(tc.want), len(got), got)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("expected %s=%v, got %v", k, v, got[k])
				}
			}
		})
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	ef := ErrorFields("execute", fmt.Errorf("failed"))
	if ef[FieldOperation] != "execute" || ef[FieldError] != "failed" {
		t.Errorf("unexpected error fields: %v", ef)
	}

	df := DurationFields("run", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("expected duration 1500, got %v", df[FieldDuration])
	}
}

func TestMergeHelpers(t *testing.T) {
	m := MergeWithError(nil, fmt.Errorf("oops"))
	if m[FieldError] != "oops" {
		t.Errorf("expected error=oops, got %v", m[FieldError])
	}
	m = MergeWithDuration(m, 2*time.Second)
	if m[FieldDuration] != int64(2000) {
		t.Errorf("expected duration 2000, got %v", m[FieldDuration])
	}
	if m[FieldError] != "oops" {
		t.Error("merge should keep existing fields")
	}
}
