// Package natsbridge mirrors launcher events onto NATS.
//
// Every event emitted on the bus is wrapped in a core.Envelope and published
// to the subject
//
//	<prefix>.<primary agent id>.<event name>
//
// so a consumer can follow one task with "<prefix>.<primary>.>" or every
// task with "<prefix>.>". When Persist is set the subjects are captured by a
// JetStream stream and History replays the events of a finished task.
package natsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hupe1980/agentlauncher/agentid"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/logging"
)

// DefaultPrefix is the subject prefix used when Options.Prefix is empty.
const DefaultPrefix = "agentlauncher"

// DrainTimeout bounds Close's wait for buffered publishes.
const DrainTimeout = 2 * time.Second

// FlushTimeout bounds History's flush when ctx carries no deadline.
const FlushTimeout = 2 * time.Second

// ErrNotPersistent is returned by History when the bridge has no stream.
var ErrNotPersistent = errors.New("natsbridge: persistence disabled")

// Options configures a Bridge.
type Options struct {
	Logger logging.Logger
	// Prefix is the first subject token.
	Prefix string
	// Persist captures the published subjects in a JetStream stream.
	Persist bool
	// StreamName names the stream (defaults to the upper-cased prefix plus
	// "_EVENTS").
	StreamName string
	// MaxAge is the stream retention (0 = unlimited).
	MaxAge time.Duration
}

// Bridge publishes bus events to a NATS connection.
type Bridge struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	opts   Options
	logger logging.Logger
	closed atomic.Bool
}

// New subscribes a Bridge to every event on bus.
func New(ctx context.Context, bus *eventbus.Bus, nc *nats.Conn, optFns ...func(o *Options)) (*Bridge, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Prefix: DefaultPrefix,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.StreamName == "" {
		opts.StreamName = streamName(opts.Prefix)
	}

	b := &Bridge{nc: nc, opts: opts, logger: opts.Logger}

	if opts.Persist {
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("natsbridge: jetstream: %w", err)
		}
		stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     opts.StreamName,
			Subjects: []string{opts.Prefix + ".>"},
			Storage:  jetstream.FileStorage,
			MaxAge:   opts.MaxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("natsbridge: stream %s: %w", opts.StreamName, err)
		}
		b.js, b.stream = js, stream
	}

	eventbus.SubscribeAny(bus, b.publish)
	return b, nil
}

// Subject returns the subject of event name for the task primaryID.
func (b *Bridge) Subject(primaryID, name string) string {
	return b.opts.Prefix + "." + primaryID + "." + name
}

// TaskSubjects returns the wildcard subject covering one task.
func (b *Bridge) TaskSubjects(primaryID string) string {
	return b.opts.Prefix + "." + primaryID + ".>"
}

func (b *Bridge) publish(_ context.Context, ev core.Event) error {
	if b.closed.Load() {
		return nil
	}
	data, err := core.MarshalEvent(ev)
	if err != nil {
		b.logger.Warn("natsbridge.marshal_failed", "event", ev.EventName(), "error", err)
		return err
	}
	primary := agentid.PrimaryOf(ev.GetAgentID())
	if primary == "" {
		primary = "_"
	}
	if err := b.nc.Publish(b.Subject(primary, ev.EventName()), data); err != nil {
		b.logger.Warn("natsbridge.publish_failed", "event", ev.EventName(), "agent_id", ev.GetAgentID(), "error", err)
		return err
	}
	return nil
}

// History replays the persisted events of the task primaryID in stream
// order.
func (b *Bridge) History(ctx context.Context, primaryID string) ([]core.Envelope, error) {
	if b.stream == nil {
		return nil, ErrNotPersistent
	}
	if err := b.flush(ctx); err != nil {
		return nil, fmt.Errorf("natsbridge: flush: %w", err)
	}

	cons, err := b.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: b.TaskSubjects(primaryID),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("natsbridge: consumer: %w", err)
	}
	defer func() {
		if err := b.stream.DeleteConsumer(context.WithoutCancel(ctx), cons.CachedInfo().Name); err != nil {
			b.logger.Debug("natsbridge.consumer.delete_failed", "error", err)
		}
	}()

	var out []core.Envelope
	for {
		batch, err := cons.FetchNoWait(100)
		if err != nil {
			break
		}
		n := 0
		for msg := range batch.Messages() {
			n++
			var env core.Envelope
			if err := json.Unmarshal(msg.Data(), &env); err != nil {
				b.logger.Warn("natsbridge.history.malformed", "subject", msg.Subject(), "error", err)
				_ = msg.Ack()
				continue
			}
			_ = msg.Ack()
			out = append(out, env)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

// flush waits for the server to process pending publishes. FlushWithContext
// rejects a context without deadline.
func (b *Bridge) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, FlushTimeout)
		defer cancel()
	}
	return b.nc.FlushWithContext(ctx)
}

// Close stops publishing and drains the connection, closing it outright
// when draining does not finish within DrainTimeout.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- b.nc.Drain() }()

	select {
	case err := <-done:
		if err != nil {
			b.logger.Warn("natsbridge.drain_failed", "error", err)
			b.nc.Close()
		}
		return err
	case <-time.After(DrainTimeout):
		b.logger.Warn("natsbridge.drain_timeout")
		b.nc.Close()
		return nil
	}
}

func streamName(prefix string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToUpper(r)
		default:
			return '_'
		}
	}, prefix) + "_EVENTS"
}
