package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
)

func openTestEventsStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.sqlite")
	store, err := OpenEvents(path)
	if err != nil {
		t.Fatalf("open events store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close events store: %v", err)
		}
	})
	return store
}

func openTestProjectionsStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projections.sqlite")
	store, err := OpenProjections(path)
	if err != nil {
		t.Fatalf("open projections store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close projections store: %v", err)
		}
	})
	return store
}

func mustEvent(t *testing.T, typ event.Type, aggregateID string, payload any) event.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return event.Event{
		ID:            event.NewID(),
		Type:          typ,
		AggregateID:   aggregateID,
		AggregateType: typ.AggregateType(),
		PayloadJSON:   data,
	}
}

func mustAppend(t *testing.T, store *Store, evt event.Event) event.Record {
	t.Helper()
	rec, err := store.AppendEvent(context.Background(), evt, event.AnyVersion)
	if err != nil {
		t.Fatalf("append %s: %v", evt.Type, err)
	}
	return rec
}
