package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// holdSlot occupies one bulkhead slot until the returned func is called.
func holdSlot(t *testing.T, b *Bulkhead) func() {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	return func() {
		close(release)
		<-done
	}
}

func TestBulkhead_BoundsConcurrency(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "run", MaxConcurrent: 2})

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Execute(context.Background(), func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if peak != 2 {
		t.Errorf("expected peak concurrency 2, got %d", peak)
	}
	if b.InUse() != 0 || b.Available() != 2 {
		t.Errorf("expected all slots released, in use %d available %d", b.InUse(), b.Available())
	}
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxWait: -1})
	release := holdSlot(t, b)
	defer release()

	called := false
	err := b.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}
	if called {
		t.Error("fn must not run when rejected")
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxWait: time.Second})
	release := holdSlot(t, b)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	if err := b.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("expected slot after release, got %v", err)
	}
}

func TestBulkhead_WaitTimeout(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})
	release := holdSlot(t, b)
	defer release()

	err := b.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrBulkheadTimeout) {
		t.Errorf("expected ErrBulkheadTimeout, got %v", err)
	}
}

func TestBulkhead_BlocksUntilContextDone(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1})
	release := holdSlot(t, b)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := b.Execute(ctx, func() error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

func TestBulkhead_CancelledContextNeverAcquires(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 4})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if b.InUse() != 0 {
		t.Errorf("expected no slot taken, got %d", b.InUse())
	}
}

func TestBulkhead_PropagatesError(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 2})
	want := errors.New("executor failed")
	if err := b.Execute(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("expected fn error, got %v", err)
	}
	if b.InUse() != 0 {
		t.Error("slot must be released after an error")
	}
}

func TestExecuteWithResult(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1})
	got, err := ExecuteWithResult(b, context.Background(), func() (string, error) {
		return "output", nil
	})
	if err != nil || got != "output" {
		t.Errorf("expected output, got %q (%v)", got, err)
	}
}

func TestNewBulkhead_Defaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "d"})
	if b.MaxConcurrent() != 10 {
		t.Errorf("expected default 10, got %d", b.MaxConcurrent())
	}
	if b.Name() != "d" {
		t.Errorf("expected name d, got %q", b.Name())
	}
}
