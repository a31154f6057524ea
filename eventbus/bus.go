// Package eventbus implements the typed publish/subscribe bus connecting the
// launcher runtimes.
//
// Handlers are registered per concrete event type with Subscribe, or for
// every event with SubscribeAny. Emit looks up the handlers of the event's
// type and starts one goroutine per handler without waiting for them, then
// starts the per-task hook (if any) the same way. Handler errors and panics
// are logged and never reach the emitter or sibling handlers.
//
// Emit returning does not mean handlers ran. Use Wait (tests, shutdown) to
// block until in-flight handlers are done.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/internal/util"
	"github.com/hupe1980/agentlauncher/logging"
)

// Verbosity gates logging of emitted events.
type Verbosity int

const (
	// Silent logs nothing on emit.
	Silent Verbosity = iota
	// Basic logs the event name and agent id.
	Basic
	// Detailed additionally logs the full payload.
	Detailed
)

func (v Verbosity) String() string {
	switch v {
	case Silent:
		return "silent"
	case Basic:
		return "basic"
	case Detailed:
		return "detailed"
	default:
		return fmt.Sprintf("verbosity(%d)", int(v))
	}
}

// ParseVerbosity maps silent, basic or detailed to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "silent":
		return Silent, nil
	case "basic":
		return Basic, nil
	case "detailed":
		return Detailed, nil
	default:
		return Silent, fmt.Errorf("unknown verbosity %q", s)
	}
}

// ErrClosed is returned by Close when the bus was already closed.
var ErrClosed = errors.New("eventbus: closed")

// Handler processes one event.
type Handler func(ctx context.Context, ev core.Event) error

// Options configures a Bus.
type Options struct {
	Logger    logging.Logger
	Verbosity Verbosity
}

// Bus is the in-process event bus. The zero value is not usable; call New.
type Bus struct {
	logger    logging.Logger
	verbosity Verbosity

	mu       sync.RWMutex
	handlers map[reflect.Type][]Handler
	wildcard []Handler

	hooksMu sync.Mutex
	hooks   map[string]core.Hook

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a Bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		Logger:    logging.NoOpLogger{},
		Verbosity: Silent,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		logger:    opts.Logger,
		verbosity: opts.Verbosity,
		handlers:  make(map[reflect.Type][]Handler),
		hooks:     make(map[string]core.Hook),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Subscribe registers h for events of concrete type T. Subscribing with an
// interface type (core.Event) registers a wildcard handler.
func Subscribe[T core.Event](b *Bus, h func(ctx context.Context, ev T) error) {
	eventType := reflect.TypeFor[T]()
	wrapped := func(ctx context.Context, ev core.Event) error {
		typed, ok := ev.(T)
		if !ok {
			return nil
		}
		return h(ctx, typed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if eventType.Kind() == reflect.Interface {
		b.wildcard = append(b.wildcard, wrapped)
		return
	}
	b.handlers[eventType] = append(b.handlers[eventType], wrapped)
}

// SubscribeAny registers h for every event.
func SubscribeAny(b *Bus, h func(ctx context.Context, ev core.Event) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, h)
}

// AddHook registers a per-task hook. Events whose agent id equals id, or
// resolves to id as its primary, are delivered to it. A later AddHook for the
// same id replaces the previous hook.
func (b *Bus) AddHook(id string, hook core.Hook) {
	b.hooksMu.Lock()
	defer b.hooksMu.Unlock()
	b.hooks[id] = hook
}

// RemoveHook removes the hook registered for id.
func (b *Bus) RemoveHook(id string) {
	b.hooksMu.Lock()
	defer b.hooksMu.Unlock()
	delete(b.hooks, id)
}

func (b *Bus) hookFor(id string) core.Hook {
	b.hooksMu.Lock()
	defer b.hooksMu.Unlock()
	if h, ok := b.hooks[id]; ok {
		return h
	}
	if h, ok := b.hooks[agentid.PrimaryOf(id)]; ok {
		return h
	}
	return nil
}

// Emit dispatches ev to its subscribers and the matching hook. It returns
// as soon as the handler goroutines have been started.
func (b *Bus) Emit(ev core.Event) {
	if ev == nil {
		return
	}
	// Close flips closed under the write lock, so every handler started
	// here is counted before Close waits.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed.Load() {
		b.logger.Debug("eventbus.emit.closed", "event", ev.EventName(), "agent_id", ev.GetAgentID())
		return
	}

	b.logEmit(ev)

	typed := b.handlers[reflect.TypeOf(ev)]
	for _, h := range typed {
		b.spawn("handler", ev, h)
	}
	for _, h := range b.wildcard {
		b.spawn("handler", ev, h)
	}

	if hook := b.hookFor(ev.GetAgentID()); hook != nil {
		b.spawn("hook", ev, Handler(hook))
	}
}

func (b *Bus) spawn(kind string, ev core.Event, h Handler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := util.SafeCall(func() error { return h(b.ctx, ev) })
		if err == nil {
			return
		}
		var perr *util.PanicError
		if errors.As(err, &perr) {
			b.logger.Error("eventbus."+kind+".panic",
				"event", ev.EventName(),
				"agent_id", ev.GetAgentID(),
				"recover", fmt.Sprint(perr.Value),
				"stack", string(perr.Stack),
			)
			return
		}
		b.logger.Error("eventbus."+kind+".error",
			"event", ev.EventName(),
			"agent_id", ev.GetAgentID(),
			"error", err.Error(),
		)
	}()
}

func (b *Bus) logEmit(ev core.Event) {
	switch b.verbosity {
	case Basic:
		b.logger.Info("eventbus.emit", "event", ev.EventName(), "agent_id", ev.GetAgentID())
	case Detailed:
		b.logger.Info("eventbus.emit", "event", ev.EventName(), "agent_id", ev.GetAgentID(), "payload", ev)
	}
}

// Wait blocks until every handler started so far (and every handler those
// handlers started) has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Close stops accepting events, cancels the context handed to handlers and
// waits for in-flight handlers until ctx is done.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed.CompareAndSwap(false, true) {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ core.Emitter = (*Bus)(nil)
