package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
)

// WaitTimeout bounds every WaitFor call.
const WaitTimeout = 3 * time.Second

// Recorder captures every event emitted on a bus.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

// NewRecorder subscribes a new Recorder to bus.
func NewRecorder(bus *eventbus.Bus) *Recorder {
	r := &Recorder{}
	eventbus.SubscribeAny(bus, func(_ context.Context, ev core.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
		return nil
	})
	return r
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Of returns the recorded events of type T.
func Of[T core.Event](r *Recorder) []T {
	var out []T
	for _, ev := range r.Events() {
		if typed, ok := ev.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// Where returns the recorded events of type T matching pred.
func Where[T core.Event](r *Recorder, pred func(T) bool) []T {
	var out []T
	for _, ev := range Of[T](r) {
		if pred(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// WaitFor blocks until an event of type T matching pred was recorded and
// returns the first such event. It fails the test after WaitTimeout.
func WaitFor[T core.Event](t testing.TB, r *Recorder, pred func(T) bool) T {
	t.Helper()
	var found T
	require.Eventually(t, func() bool {
		matches := Where(r, pred)
		if len(matches) == 0 {
			return false
		}
		found = matches[0]
		return true
	}, WaitTimeout, 5*time.Millisecond)
	return found
}

// Any matches every event.
func Any[T core.Event](T) bool { return true }
