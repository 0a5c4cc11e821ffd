package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/agentflow/config"
	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/observability"
)

// testConfig is a minimal config for testing that satisfies the Config interface.
type testConfig struct {
	config.ServiceConfig
}

// mockComponent implements component.Component for testing.
type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	status   observability.HealthStatus
	events   *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	m.record("start " + m.name)
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	m.record("stop " + m.name)
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) observability.Health {
	status := m.status
	if status == "" {
		status = observability.HealthStatusUp
	}
	return observability.Health{Name: m.name, Status: status}
}
func (m *mockComponent) record(e string) {
	if m.events != nil {
		*m.events = append(*m.events, e)
	}
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "test-svc", Version: "1.0.0"}}
	quiet := logger.NewWithWriter(&logger.Config{Level: "error", Format: "json"}, "test-svc", io.Discard)
	app, err := NewApp(cfg, append([]Option{WithLogger(quiet), WithSummaryWriter(io.Discard)}, opts...)...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "test-svc" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %q %q", app.Name, app.Version)
	}
	if app.Components == nil || app.Logger == nil || app.Summary == nil {
		t.Error("expected components, logger and summary to be set")
	}
	// Defaults were applied to the typed config.
	if app.Cfg.Environment != "development" {
		t.Errorf("expected development environment, got %q", app.Cfg.Environment)
	}
	if app.gracefulTimeout != 15*time.Second {
		t.Errorf("expected default 15s, got %v", app.gracefulTimeout)
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "svc", Environment: "qa"}}
	if _, err := NewApp(cfg); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app := newTestApp(t, WithGracefulTimeout(5*time.Second))
	if app.gracefulTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", app.gracefulTimeout)
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  observability.HealthStatus
		wantErr bool
	}{
		{name: "up", status: observability.HealthStatusUp},
		{name: "degraded", status: observability.HealthStatusDegraded, wantErr: true},
		{name: "down", status: observability.HealthStatusDown, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			_ = app.RegisterComponent(&mockComponent{name: "http", status: tt.status})
			if err := app.ReadyCheck(context.Background()); (err != nil) != tt.wantErr {
				t.Errorf("ReadyCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunTaskLifecycleOrder(t *testing.T) {
	app := newTestApp(t)
	events := []string{}
	_ = app.RegisterComponent(&mockComponent{name: "telemetry", events: &events})
	app.OnStart(func(ctx context.Context) error { events = append(events, "onStart"); return nil })
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		events = append(events, "configure")
		return a.RegisterComponent(&mockComponent{name: "http", events: &events})
	})
	app.OnReady(func(ctx context.Context) error { events = append(events, "onReady"); return nil })
	app.OnStop(func(ctx context.Context) error { events = append(events, "onStop"); return nil })

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		events = append(events, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}

	want := "start telemetry,onStart,configure,start http,onReady,task,onStop,stop http,stop telemetry"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRunTaskErrors(t *testing.T) {
	boom := fmt.Errorf("boom")
	tests := []struct {
		name  string
		setup func(app *App[*testConfig])
		task  func(ctx context.Context) error
		want  string
	}{
		{
			name: "task error is returned as is",
			task: func(context.Context) error { return boom },
			want: "boom",
		},
		{
			name:  "start hook",
			setup: func(app *App[*testConfig]) { app.OnStart(func(context.Context) error { return boom }) },
			want:  "onStart hook failed: hook 0 failed: boom",
		},
		{
			name: "configure",
			setup: func(app *App[*testConfig]) {
				app.OnConfigure(func(context.Context, *App[*testConfig]) error { return boom })
			},
			want: "configuration failed: boom",
		},
		{
			name:  "ready hook",
			setup: func(app *App[*testConfig]) { app.OnReady(func(context.Context) error { return boom }) },
			want:  "onReady hook failed: hook 0 failed: boom",
		},
		{
			name:  "stop hook after successful task",
			setup: func(app *App[*testConfig]) { app.OnStop(func(context.Context) error { return boom }) },
			want:  "hook 0 failed: boom",
		},
		{
			name: "component start",
			setup: func(app *App[*testConfig]) {
				_ = app.RegisterComponent(&mockComponent{name: "http", startErr: boom})
			},
			want: "initialization failed: failed to start http: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			if tt.setup != nil {
				tt.setup(app)
			}
			task := tt.task
			if task == nil {
				task = func(context.Context) error { return nil }
			}
			err := app.RunTask(context.Background(), task)
			if err == nil || err.Error() != tt.want {
				t.Errorf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRunTaskStopsComponentsAfterStartFailure(t *testing.T) {
	app := newTestApp(t)
	events := []string{}
	_ = app.RegisterComponent(&mockComponent{name: "telemetry", events: &events})
	_ = app.RegisterComponent(&mockComponent{name: "http", startErr: fmt.Errorf("address in use"), events: &events})

	if err := app.RunTask(context.Background(), func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected start error")
	}
	want := "start telemetry,start http,stop telemetry"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	events := []string{}
	_ = app.RegisterComponent(&mockComponent{name: "http", events: &events})

	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error { cancel(); return nil })

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := strings.Join(events, ","); got != "start http,stop http" {
		t.Errorf("unexpected events %s", got)
	}
}

func TestSummaryDisplay(t *testing.T) {
	app := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "http"})
	_ = app.RegisterComponent(&mockComponent{name: "telemetry", status: observability.HealthStatusDegraded})
	app.Summary.TrackExecutors("critic (http)", "writer (command)")
	app.Summary.SetStartupDuration(1500 * time.Millisecond)

	var buf bytes.Buffer
	app.Summary.Display(&buf, app.Components)
	out := buf.String()

	for _, want := range []string{
		"test-svc 1.0.0 started in 1.50s",
		"├── ✓ http (up)",
		"└── ! telemetry (degraded)",
		"Executors",
		"└── writer (command)",
		"Some components have issues (1/2 healthy)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected summary to contain %q, got:\n%s", want, out)
		}
	}
}
