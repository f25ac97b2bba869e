package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
)

type fakeJournal struct {
	mu       sync.Mutex
	appended []event.Event
	seq      uint64
	appendFn func(evt event.Event, expected event.ExpectedVersion) error
}

func (f *fakeJournal) AppendEvent(_ context.Context, evt event.Event, expected event.ExpectedVersion) (event.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendFn != nil {
		if err := f.appendFn(evt, expected); err != nil {
			return event.Record{}, err
		}
	}
	f.seq++
	f.appended = append(f.appended, evt)
	return event.Record{Event: evt, Seq: f.seq, Version: 1}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func meetingEvent(id string) event.Event {
	return event.Event{
		Type:        event.TypeMeetingCreated,
		AggregateID: id,
		PayloadJSON: []byte(`{"title":"Sync","participant_count":3}`),
	}
}

func TestPublishPersistsThenDispatches(t *testing.T) {
	journal := &fakeJournal{}
	b := New(WithJournal(journal), WithLogger(quietLogger()))

	var got []event.Record
	var mu sync.Mutex
	if _, err := b.Subscribe(event.TypeMeetingCreated, "projection", func(_ context.Context, rec event.Record) error {
		mu.Lock()
		defer mu.Unlock()
		if len(journal.appended) != 1 {
			t.Errorf("handler ran before append")
		}
		got = append(got, rec)
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	rec, err := b.Publish(context.Background(), meetingEvent("m-1"), true)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.Seq != 1 || rec.ID == "" {
		t.Fatalf("record = %+v", rec)
	}
	if len(got) != 1 || got[0].Seq != 1 || got[0].AggregateID != "m-1" {
		t.Fatalf("delivered = %+v", got)
	}
}

func TestPublishWithoutPersistSkipsJournal(t *testing.T) {
	journal := &fakeJournal{}
	b := New(WithJournal(journal), WithLogger(quietLogger()))
	var calls atomic.Int32
	if _, err := b.Subscribe(event.TypeMeetingCreated, "", func(context.Context, event.Record) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	rec, err := b.Publish(context.Background(), meetingEvent("m-1"), false)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.Seq != 0 || rec.ID == "" {
		t.Fatalf("record = %+v", rec)
	}
	if len(journal.appended) != 0 {
		t.Fatalf("journal appended %d events", len(journal.appended))
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestPublishAppendFailureSkipsDispatch(t *testing.T) {
	appendErr := errors.New("disk full")
	journal := &fakeJournal{appendFn: func(event.Event, event.ExpectedVersion) error { return appendErr }}
	b := New(WithJournal(journal), WithLogger(quietLogger()))
	var calls atomic.Int32
	if _, err := b.Subscribe(event.TypeMeetingCreated, "", func(context.Context, event.Record) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_, err := b.Publish(context.Background(), meetingEvent("m-1"), true)
	if !errors.Is(err, appendErr) {
		t.Fatalf("error = %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("handler ran after failed append")
	}
}

func TestPublishVersionedPropagatesConflict(t *testing.T) {
	journal := &fakeJournal{appendFn: func(evt event.Event, expected event.ExpectedVersion) error {
		return &event.ConcurrencyError{AggregateID: evt.AggregateID, Expected: int64(expected), Actual: 3}
	}}
	b := New(WithJournal(journal), WithLogger(quietLogger()))

	_, err := b.PublishVersioned(context.Background(), meetingEvent("m-1"), event.ExactVersion(2))
	var conflict *event.ConcurrencyError
	if !errors.As(err, &conflict) || conflict.Expected != 2 {
		t.Fatalf("error = %v", err)
	}
}

func TestPublishRequiresJournalToPersist(t *testing.T) {
	b := New(WithLogger(quietLogger()))
	if _, err := b.Publish(context.Background(), meetingEvent("m-1"), true); err == nil {
		t.Fatal("expected error without journal")
	}
}

func TestHandlerFailuresAreIsolated(t *testing.T) {
	var (
		mu       sync.Mutex
		failures []string
	)
	b := New(WithLogger(quietLogger()), WithErrorSink(func(_ context.Context, name string, _ event.Record, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, name)
	}))

	var healthy atomic.Int32
	subscribe := func(name string, h Handler) {
		t.Helper()
		if _, err := b.Subscribe(event.TypeMeetingCreated, name, h); err != nil {
			t.Fatalf("subscribe %s: %v", name, err)
		}
	}
	subscribe("fails", func(context.Context, event.Record) error { return errors.New("boom") })
	subscribe("panics", func(context.Context, event.Record) error { panic("kaboom") })
	subscribe("healthy", func(context.Context, event.Record) error {
		healthy.Add(1)
		return nil
	})

	if _, err := b.Publish(context.Background(), meetingEvent("m-1"), false); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if healthy.Load() != 1 {
		t.Fatalf("healthy handler calls = %d", healthy.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 2 {
		t.Fatalf("failures = %v", failures)
	}
}

func TestHandlersRunConcurrently(t *testing.T) {
	b := New(WithWorkers(2), WithLogger(quietLogger()))
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	var timedOut atomic.Bool

	handler := func(context.Context, event.Record) error {
		arrived <- struct{}{}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
			timedOut.Store(true)
		}
		return nil
	}
	for _, name := range []string{"a", "b"} {
		if _, err := b.Subscribe(event.TypeMeetingCreated, name, handler); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := b.Publish(context.Background(), meetingEvent("m-1"), false); err != nil {
			t.Errorf("publish: %v", err)
		}
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-arrived:
		case <-time.After(time.Second):
			t.Fatal("handlers did not start concurrently")
		}
	}
	close(release)
	<-done
	if timedOut.Load() {
		t.Fatal("handler timed out waiting for release")
	}
}

func TestPublishWaitsForAllHandlers(t *testing.T) {
	b := New(WithWorkers(1), WithLogger(quietLogger()))
	var finished atomic.Int32
	for i := 0; i < 5; i++ {
		if _, err := b.Subscribe(event.TypeMeetingCreated, "", func(context.Context, event.Record) error {
			time.Sleep(5 * time.Millisecond)
			finished.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	if _, err := b.Publish(context.Background(), meetingEvent("m-1"), false); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if finished.Load() != 5 {
		t.Fatalf("finished = %d, want 5", finished.Load())
	}
}

func TestSerializedPublisherSeesOrder(t *testing.T) {
	b := New(WithLogger(quietLogger()))
	var order []string
	if _, err := b.Subscribe(event.TypeMeetingCreated, "", func(_ context.Context, rec event.Record) error {
		order = append(order, rec.AggregateID)
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for _, id := range []string{"m-1", "m-2", "m-3"} {
		if _, err := b.Publish(context.Background(), meetingEvent(id), false); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if diff := cmp.Diff([]string{"m-1", "m-2", "m-3"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(WithLogger(quietLogger()))
	var calls atomic.Int32
	sub, err := b.Subscribe(event.TypeMeetingCreated, "once", func(context.Context, event.Record) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if b.SubscriberCount(event.TypeMeetingCreated) != 1 {
		t.Fatal("expected one subscriber")
	}
	if !b.Unsubscribe(sub) {
		t.Fatal("expected unsubscribe to remove subscription")
	}
	sub.Close()
	if b.Unsubscribe(sub) {
		t.Fatal("second unsubscribe should report false")
	}
	if _, err := b.Publish(context.Background(), meetingEvent("m-1"), false); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestOnlyMatchingTypeIsDelivered(t *testing.T) {
	b := New(WithLogger(quietLogger()))
	var calls atomic.Int32
	if _, err := b.Subscribe(event.TypeRiskExtracted, "", func(context.Context, event.Record) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := b.Publish(context.Background(), meetingEvent("m-1"), false); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestClosedBusRejects(t *testing.T) {
	b := New(WithLogger(quietLogger()))
	b.Close()
	if _, err := b.Publish(context.Background(), meetingEvent("m-1"), false); !errors.Is(err, ErrClosed) {
		t.Fatalf("publish error = %v", err)
	}
	if _, err := b.Subscribe(event.TypeMeetingCreated, "", func(context.Context, event.Record) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("subscribe error = %v", err)
	}
}

func TestSubscribeValidates(t *testing.T) {
	b := New()
	if _, err := b.Subscribe("", "x", func(context.Context, event.Record) error { return nil }); err == nil {
		t.Fatal("expected error for empty type")
	}
	if _, err := b.Subscribe(event.TypeMeetingCreated, "x", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestDispatchDeliversStoredRecord(t *testing.T) {
	b := New(WithLogger(quietLogger()))
	var got event.Record
	if _, err := b.Subscribe(event.TypeMeetingCreated, "", func(_ context.Context, rec event.Record) error {
		got = rec
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	rec := event.Record{Event: meetingEvent("m-9"), Seq: 42, Version: 1}
	if err := b.Dispatch(context.Background(), rec); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got.Seq != 42 {
		t.Fatalf("got = %+v", got)
	}
}
