package projection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
)

type fakeProjectionStore struct {
	mu       sync.Mutex
	meetings map[string]storage.MeetingRecord
	items    map[string]storage.RaidItemRecord
	resets   int
	rebuilds int
	putErr   error
}

func newFakeProjectionStore() *fakeProjectionStore {
	return &fakeProjectionStore{
		meetings: make(map[string]storage.MeetingRecord),
		items:    make(map[string]storage.RaidItemRecord),
	}
}

func (f *fakeProjectionStore) PutMeeting(_ context.Context, m storage.MeetingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.meetings[m.ID] = m
	return nil
}

func (f *fakeProjectionStore) GetMeeting(_ context.Context, id string) (storage.MeetingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return storage.MeetingRecord{}, storage.ErrNotFound
	}
	return m, nil
}

func (f *fakeProjectionStore) PreviousMeetingInSeries(context.Context, string) (storage.MeetingRecord, error) {
	return storage.MeetingRecord{}, storage.ErrNotFound
}

func (f *fakeProjectionStore) PutRaidItem(_ context.Context, item storage.RaidItemRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeProjectionStore) GetRaidItem(_ context.Context, id string) (storage.RaidItemRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return storage.RaidItemRecord{}, storage.ErrNotFound
	}
	return item, nil
}

func (f *fakeProjectionStore) UpdateRaidItemStatus(_ context.Context, id, status string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return false, nil
	}
	item.Status = status
	f.items[id] = item
	return true, nil
}

func (f *fakeProjectionStore) ListRaidItems(context.Context, storage.RaidItemFilter) ([]storage.RaidItemRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]storage.RaidItemRecord, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeProjectionStore) ResetProjections(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.meetings = make(map[string]storage.MeetingRecord)
	f.items = make(map[string]storage.RaidItemRecord)
	return nil
}

func (f *fakeProjectionStore) RebuildSearchIndexes(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds++
	return nil
}

type fakeEventReader struct {
	records []event.Record
	calls   int
	failAt  int
	err     error
}

func (f *fakeEventReader) ListEvents(_ context.Context, _ *time.Time, afterSeq uint64, limit int) ([]event.Record, error) {
	f.calls++
	if f.err != nil && f.calls >= f.failAt {
		return nil, f.err
	}
	var page []event.Record
	for _, rec := range f.records {
		if rec.Seq <= afterSeq {
			continue
		}
		page = append(page, rec)
		if limit > 0 && len(page) == limit {
			break
		}
	}
	return page, nil
}
