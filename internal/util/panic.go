package util

import (
	"fmt"
	"runtime/debug"
)

// PanicError wraps a recovered panic value together with the stack of the
// goroutine that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError converts a recovered value into an error. Call it from the
// deferred function that called recover so the stack is still meaningful.
func NewPanicError(r any) *PanicError {
	return &PanicError{Value: r, Stack: debug.Stack()}
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic recovered: %v", p.Value) }

// SafeCall runs fn and converts a panic into a *PanicError.
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return fn()
}
