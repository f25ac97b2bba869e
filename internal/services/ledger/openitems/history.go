package openitems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
)

// HistoryKind classifies a journal entry relative to one item.
type HistoryKind string

const (
	HistoryCreated   HistoryKind = "created"
	HistoryUpdated   HistoryKind = "updated"
	HistoryMentioned HistoryKind = "mentioned"
)

// HistoryEntry is one journal event touching an item.
type HistoryEntry struct {
	EventID      string
	EventType    event.Type
	Kind         HistoryKind
	Timestamp    time.Time
	Seq          uint64
	MeetingID    string
	MeetingTitle string
	MeetingDate  string
}

// History is the current item snapshot plus its journal entries, oldest first.
type History struct {
	Item    storage.RaidItemRecord
	Entries []HistoryEntry
}

// GetItemHistory returns nil when the item is unknown.
func (v *View) GetItemHistory(ctx context.Context, itemID string) (*History, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	if v.history == nil {
		return nil, fmt.Errorf("event history is not configured")
	}
	item, err := v.store.GetRaidItem(ctx, strings.TrimSpace(itemID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get raid item: %w", err)
	}

	records, err := v.history.ListEventsReferencing(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list item events: %w", err)
	}

	meetings := map[string]storage.MeetingRecord{}
	out := &History{Item: item, Entries: make([]HistoryEntry, 0, len(records))}
	for _, rec := range records {
		entry := HistoryEntry{
			EventID:   rec.ID,
			EventType: rec.Type,
			Kind:      classify(rec.Type),
			Timestamp: rec.Timestamp,
			Seq:       rec.Seq,
			MeetingID: meetingIDOf(rec),
		}
		if entry.MeetingID != "" {
			m, ok := meetings[entry.MeetingID]
			if !ok {
				m, err = v.store.GetMeeting(ctx, entry.MeetingID)
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					return nil, fmt.Errorf("get meeting: %w", err)
				}
				meetings[entry.MeetingID] = m
			}
			entry.MeetingTitle = m.Title
			entry.MeetingDate = m.Date
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func classify(t event.Type) HistoryKind {
	name := string(t)
	switch {
	case strings.HasSuffix(name, "Created"), strings.HasSuffix(name, "Extracted"):
		return HistoryCreated
	case strings.Contains(name, "Updated"), strings.Contains(name, "Changed"), strings.Contains(name, "Closed"):
		return HistoryUpdated
	default:
		return HistoryMentioned
	}
}

func meetingIDOf(rec event.Record) string {
	if rec.Type == event.TypeMeetingCreated {
		return rec.AggregateID
	}
	var ref struct {
		MeetingID string `json:"meeting_id"`
	}
	if err := json.Unmarshal(rec.PayloadJSON, &ref); err != nil {
		return ""
	}
	return ref.MeetingID
}
