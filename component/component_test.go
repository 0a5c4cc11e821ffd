package component

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/kbukum/agentflow/errors"
	"github.com/kbukum/agentflow/observability"
)

// mockComponent implements Component for testing.
type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	status     observability.HealthStatus
	startOrder *[]string
	stopOrder  *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) observability.Health {
	status := m.status
	if status == "" {
		status = observability.HealthStatusUp
	}
	return observability.Health{Name: m.name, Status: status}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&mockComponent{name: "http"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := r.Register(&mockComponent{name: "http"})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeAlreadyExists {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "http"})

	if got := r.Get("http"); got == nil || got.Name() != "http" {
		t.Fatalf("expected registered component, got %v", got)
	}
	if got := r.Get("missing"); got != nil {
		t.Error("expected nil for unregistered component")
	}
}

func TestStartAll(t *testing.T) {
	r := NewRegistry()
	order := []string{}
	_ = r.Register(&mockComponent{name: "telemetry", startOrder: &order})
	_ = r.Register(&mockComponent{name: "http", startOrder: &order})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if len(order) != 2 || order[0] != "telemetry" || order[1] != "http" {
		t.Errorf("expected start order [telemetry, http], got %v", order)
	}

	// A second StartAll does not restart anything.
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if len(order) != 2 {
		t.Errorf("expected no restarts, got %v", order)
	}
}

func TestStartAllErrorStopsStartedOnes(t *testing.T) {
	r := NewRegistry()
	stops := []string{}
	_ = r.Register(&mockComponent{name: "telemetry", stopOrder: &stops})
	_ = r.Register(&mockComponent{name: "http", startErr: fmt.Errorf("address in use"), stopOrder: &stops})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected error from StartAll")
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(stops) != 1 || stops[0] != "telemetry" {
		t.Errorf("expected only the started component stopped, got %v", stops)
	}
}

func TestStopAllReverseOrder(t *testing.T) {
	r := NewRegistry()
	order := []string{}
	for _, name := range []string{"telemetry", "executors", "http"} {
		_ = r.Register(&mockComponent{name: name, stopOrder: &order})
	}

	_ = r.StartAll(context.Background())
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 3 || order[0] != "http" || order[1] != "executors" || order[2] != "telemetry" {
		t.Errorf("expected reverse stop order, got %v", order)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := NewRegistry()
	order := []string{}
	_ = r.Register(&mockComponent{name: "http", stopOrder: &order})

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected 0 stops for unstarted components, got %d", len(order))
	}
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "a", stopErr: fmt.Errorf("flush failed")})
	_ = r.Register(&mockComponent{name: "b", stopErr: fmt.Errorf("shutdown timed out")})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected error from StopAll")
	}
	want := "failed to stop b: shutdown timed out\nfailed to stop a: flush failed"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestHealthAllAndCheckers(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "http"})
	_ = r.Register(&mockComponent{name: "telemetry", status: observability.HealthStatusDegraded})

	results := r.HealthAll(context.Background())
	if len(results) != 2 || results[1].Status != observability.HealthStatusDegraded {
		t.Fatalf("unexpected health %v", results)
	}

	h := observability.CheckAll(context.Background(), "agentflow", "test", time.Now(), r.Checkers()...)
	if h.Status != observability.HealthStatusDegraded || len(h.Components) != 2 {
		t.Errorf("unexpected service health %+v", h)
	}
}
