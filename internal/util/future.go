package util

import (
	"context"
	"errors"
	"sync"
)

// ErrFutureCancelled is returned by Future.Wait after Cancel won.
var ErrFutureCancelled = errors.New("future cancelled")

// Future is a single-assignment result slot. The first call to Resolve or
// Cancel wins; later calls are no-ops and report false.
type Future[T any] struct {
	once      sync.Once
	done      chan struct{}
	value     T
	cancelled bool
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve sets the value. It reports whether this call completed the future.
func (f *Future[T]) Resolve(v T) bool {
	won := false
	f.once.Do(func() {
		f.value = v
		won = true
		close(f.done)
	})
	return won
}

// Cancel completes the future without a value. It reports whether this call
// completed the future.
func (f *Future[T]) Cancel() bool {
	won := false
	f.once.Do(func() {
		f.cancelled = true
		won = true
		close(f.done)
	})
	return won
}

// Done is closed once the future is completed.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the future completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		if f.cancelled {
			var zero T
			return zero, ErrFutureCancelled
		}
		return f.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
