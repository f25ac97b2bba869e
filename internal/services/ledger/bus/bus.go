// Package bus is the in-process publish/subscribe fan-out for ledger events.
//
// Publish optionally appends to the journal first and then runs every handler
// subscribed to the event's type on a bounded worker pool, returning after all
// of them finish. Handler failures and panics are logged per handler and never
// reach the publisher or sibling handlers.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/louisbranch/meeting.ledger/internal/platform/otel"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("event bus closed")

// Handler consumes one delivered event.
type Handler func(ctx context.Context, rec event.Record) error

// Journal persists events before dispatch.
type Journal interface {
	AppendEvent(ctx context.Context, evt event.Event, expected event.ExpectedVersion) (event.Record, error)
}

// ErrorSink observes isolated handler failures.
type ErrorSink func(ctx context.Context, subscription string, rec event.Record, err error)

// Bus dispatches published events to subscribers by type.
type Bus struct {
	mu            sync.RWMutex
	nextID        int64
	closed        bool
	subscriptions map[event.Type]map[int64]*Subscription

	journal Journal
	workers int
	logger  *slog.Logger
	onError ErrorSink
	tracer  trace.Tracer
}

// Option configures a Bus.
type Option func(*Bus)

// WithJournal sets the journal used when publishing with persistence.
func WithJournal(journal Journal) Option {
	return func(b *Bus) {
		b.journal = journal
	}
}

// WithWorkers bounds how many handlers run at once for one publish.
func WithWorkers(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLogger sets the logger for handler failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithErrorSink registers a callback invoked for every handler failure.
func WithErrorSink(sink ErrorSink) Option {
	return func(b *Bus) {
		b.onError = sink
	}
}

// New builds a bus with no subscribers.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[event.Type]map[int64]*Subscription),
		workers:       defaultWorkers,
		logger:        slog.Default(),
		tracer:        otel.Tracer("bus"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscription is one registered handler.
type Subscription struct {
	id        int64
	name      string
	eventType event.Type
	handler   Handler
	bus       *Bus
}

// Name returns the subscription name used in logs.
func (s *Subscription) Name() string {
	return s.name
}

// Type returns the subscribed event type.
func (s *Subscription) Type() event.Type {
	return s.eventType
}

// Close unsubscribes; it is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.Unsubscribe(s)
}

// Subscribe registers handler for events of eventType. An empty name gets a
// generated one.
func (b *Bus) Subscribe(eventType event.Type, name string, handler Handler) (*Subscription, error) {
	if eventType == "" {
		return nil, fmt.Errorf("subscribe %s: event type is required", name)
	}
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", name)
	}

	id := atomic.AddInt64(&b.nextID, 1)
	if name == "" {
		name = fmt.Sprintf("%s-%d", eventType, id)
	}
	sub := &Subscription{id: id, name: name, eventType: eventType, handler: handler, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("subscribe %s: %w", name, ErrClosed)
	}
	byID, ok := b.subscriptions[eventType]
	if !ok {
		byID = make(map[int64]*Subscription)
		b.subscriptions[eventType] = byID
	}
	byID[id] = sub
	return sub, nil
}

// Unsubscribe removes sub, reporting whether it was registered.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	byID, ok := b.subscriptions[sub.eventType]
	if !ok {
		return false
	}
	if _, ok := byID[sub.id]; !ok {
		return false
	}
	delete(byID, sub.id)
	if len(byID) == 0 {
		delete(b.subscriptions, sub.eventType)
	}
	return true
}

// SubscriberCount returns the number of handlers registered for eventType.
func (b *Bus) SubscriberCount(eventType event.Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[eventType])
}

// Close drops every subscription and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscriptions = make(map[event.Type]map[int64]*Subscription)
}

// Publish delivers evt to its subscribers. With persist set it first appends
// to the journal and dispatches nothing if the append fails. The returned
// record carries the journal sequence and version when persisted.
func (b *Bus) Publish(ctx context.Context, evt event.Event, persist bool) (event.Record, error) {
	return b.publish(ctx, evt, event.AnyVersion, persist)
}

// PublishVersioned persists evt with an optimistic-concurrency precondition
// before dispatching it.
func (b *Bus) PublishVersioned(ctx context.Context, evt event.Event, expected event.ExpectedVersion) (event.Record, error) {
	return b.publish(ctx, evt, expected, true)
}

func (b *Bus) publish(ctx context.Context, evt event.Event, expected event.ExpectedVersion, persist bool) (event.Record, error) {
	evt = event.Normalize(evt)
	ctx, span := b.tracer.Start(ctx, "bus.publish", trace.WithAttributes(
		attribute.String("event.type", string(evt.Type)),
		attribute.String("event.aggregate_id", evt.AggregateID),
		attribute.Bool("event.persist", persist),
	))
	defer span.End()

	subs, err := b.snapshot(evt.Type)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return event.Record{}, fmt.Errorf("publish event %s: %w", evt.Type, err)
	}

	rec := event.Record{Event: evt}
	if persist {
		if b.journal == nil {
			err := fmt.Errorf("publish event %s: journal is not configured", evt.Type)
			span.SetStatus(codes.Error, err.Error())
			return event.Record{}, err
		}
		rec, err = b.journal.AppendEvent(ctx, evt, expected)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "append failed")
			return event.Record{}, fmt.Errorf("publish event %s: %w", evt.Type, err)
		}
		span.SetAttributes(attribute.Int64("event.seq", int64(rec.Seq)))
	}

	b.dispatch(ctx, rec, subs)
	span.SetAttributes(attribute.Int("bus.handlers", len(subs)))
	return rec, nil
}

// Dispatch delivers an already stored record to its subscribers without
// touching the journal.
func (b *Bus) Dispatch(ctx context.Context, rec event.Record) error {
	subs, err := b.snapshot(rec.Type)
	if err != nil {
		return fmt.Errorf("dispatch event %s: %w", rec.Type, err)
	}
	b.dispatch(ctx, rec, subs)
	return nil
}

func (b *Bus) dispatch(ctx context.Context, rec event.Record, subs []*Subscription) {
	if len(subs) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(b.workers)
	for _, sub := range subs {
		g.Go(func() error {
			if err := sub.handle(ctx, rec); err != nil {
				b.reportHandlerError(ctx, sub.name, rec, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// snapshot returns a stable copy of the handlers for eventType so dispatch
// runs without holding the lock.
func (b *Bus) snapshot(eventType event.Type) ([]*Subscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	byID := b.subscriptions[eventType]
	subs := make([]*Subscription, 0, len(byID))
	for _, sub := range byID {
		subs = append(subs, sub)
	}
	return subs, nil
}

func (b *Bus) reportHandlerError(ctx context.Context, name string, rec event.Record, err error) {
	b.logger.ErrorContext(ctx, "event handler failed",
		slog.String("subscription", name),
		slog.String("event_type", string(rec.Type)),
		slog.String("event_id", rec.ID),
		slog.String("aggregate_id", rec.AggregateID),
		slog.Any("error", err),
	)
	if b.onError != nil {
		b.onError(ctx, name, rec, err)
	}
}
