package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Common bulkhead errors.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent calls.
	MaxConcurrent int
	// MaxWait bounds how long a caller waits for a slot. 0 waits until the
	// context is done; a negative value fails immediately when full.
	MaxWait time.Duration
}

// Bulkhead bounds the number of concurrent calls. It is backed by a
// weighted semaphore so waiters are served in FIFO order.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted
	inUse  atomic.Int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Execute runs the given function within the bulkhead.
// Returns ErrBulkheadFull, ErrBulkheadTimeout or the context error if no
// slot could be acquired; fn is not called in that case.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return fn()
}

// ExecuteWithResult runs a function that returns a value.
func ExecuteWithResult[T any](b *Bulkhead, ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// Acquire takes a slot, honouring MaxWait. Every successful Acquire must be
// paired with a Release.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	b.inUse.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (b *Bulkhead) Release() {
	b.inUse.Add(-1)
	b.sem.Release(1)
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	// A cancelled context never gets a slot, even if one is free.
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.sem.TryAcquire(1) {
		return nil
	}

	switch {
	case b.config.MaxWait < 0:
		return ErrBulkheadFull
	case b.config.MaxWait == 0:
		return b.sem.Acquire(ctx, 1)
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.config.MaxWait)
	defer cancel()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBulkheadTimeout
	}
	return nil
}

// Available returns the number of available slots.
func (b *Bulkhead) Available() int {
	return b.config.MaxConcurrent - b.InUse()
}

// InUse returns the number of slots currently in use.
func (b *Bulkhead) InUse() int {
	return int(b.inUse.Load())
}

// MaxConcurrent returns the maximum concurrent calls allowed.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}

// Name returns the bulkhead name.
func (b *Bulkhead) Name() string {
	return b.config.Name
}
