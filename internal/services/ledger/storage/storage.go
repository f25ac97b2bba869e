package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/meeting.ledger/internal/platform/errors"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// EventStore is the append-only journal. Appends assign a global sequence and
// a per-aggregate version; readers never see a partially written event.
type EventStore interface {
	// AppendEvent stores evt atomically. When expected is checked and the
	// aggregate's current version differs, it returns *event.ConcurrencyError
	// and stores nothing.
	AppendEvent(ctx context.Context, evt event.Event, expected event.ExpectedVersion) (event.Record, error)
	// GetEvent returns the stored record for an event id.
	GetEvent(ctx context.Context, eventID string) (event.Record, error)
	// ListAggregateEvents returns events for one aggregate with version >
	// afterVersion, ascending by version.
	ListAggregateEvents(ctx context.Context, aggregateID string, afterVersion int64) ([]event.Record, error)
	// ListEventsByType returns a page of events of one type, newest first.
	ListEventsByType(ctx context.Context, eventType event.Type, limit, offset int) ([]event.Record, error)
	// ListEvents returns events with seq > afterSeq and timestamp >= since
	// (when set), oldest first in append order, up to limit (0 means
	// unlimited). Replays page through it by the last seen seq.
	ListEvents(ctx context.Context, since *time.Time, afterSeq uint64, limit int) ([]event.Record, error)
	// ListEventsFiltered returns events matching an AIP-160 filter, newest first.
	ListEventsFiltered(ctx context.Context, filter string, limit, offset int) ([]event.Record, error)
	// ListEventsReferencing returns events whose aggregate id is id or whose
	// payload carries id as a top-level value, in append order.
	ListEventsReferencing(ctx context.Context, id string) ([]event.Record, error)
	// CountEvents counts events, optionally restricted to one type.
	CountEvents(ctx context.Context, eventType event.Type) (int64, error)
	// LatestVersion returns the aggregate's current version, 0 when empty.
	LatestVersion(ctx context.Context, aggregateID string) (int64, error)
}

// MeetingRecord is the meeting projection.
type MeetingRecord struct {
	ID               string
	Title            string
	Date             string
	ParticipantCount int
}

// RaidItemRecord is the unified projection row for actions, decisions, risks,
// and issues. Owner, DueDate, and Status are empty when absent; DueDate is a
// calendar date in YYYY-MM-DD form.
type RaidItemRecord struct {
	ID          string
	MeetingID   string
	ItemType    raid.ItemType
	Description string
	Owner       string
	DueDate     string
	Status      string
	Confidence  float64
}

// TranscriptRecord is one transcript segment.
type TranscriptRecord struct {
	ID        string
	MeetingID string
	Speaker   string
	Text      string
	StartTime *float64
}

// RaidItemFilter narrows RAID item listings. Zero fields match everything.
type RaidItemFilter struct {
	ItemType  raid.ItemType
	Owner     string
	MeetingID string
}

// MeetingStore owns the meeting projection.
type MeetingStore interface {
	PutMeeting(ctx context.Context, m MeetingRecord) error
	GetMeeting(ctx context.Context, id string) (MeetingRecord, error)
	// PreviousMeetingInSeries returns the latest meeting before meetingID's
	// date whose normalized title matches it.
	PreviousMeetingInSeries(ctx context.Context, meetingID string) (MeetingRecord, error)
}

// RaidItemStore owns the RAID item projection.
type RaidItemStore interface {
	PutRaidItem(ctx context.Context, item RaidItemRecord) error
	GetRaidItem(ctx context.Context, id string) (RaidItemRecord, error)
	// UpdateRaidItemStatus sets an item's status, reporting whether a row matched.
	UpdateRaidItemStatus(ctx context.Context, id, status string) (bool, error)
	ListRaidItems(ctx context.Context, filter RaidItemFilter) ([]RaidItemRecord, error)
}

// TranscriptStore owns transcript segments, which arrive through ingestion
// rather than events.
type TranscriptStore interface {
	PutTranscript(ctx context.Context, t TranscriptRecord) error
}

// RejectionStore remembers pairs a user declared not to be duplicates.
type RejectionStore interface {
	// PutRejection records the pair, reporting whether it was new.
	PutRejection(ctx context.Context, itemID, rejectedID string, at time.Time) (bool, error)
	// ListRejectedIDs returns the ids recorded as rejected for itemID.
	ListRejectedIDs(ctx context.Context, itemID string) ([]string, error)
	// ListRejectionPeers returns every id paired with itemID in either direction.
	ListRejectionPeers(ctx context.Context, itemID string) ([]string, error)
}

// RaidSearchQuery is a full-text query over RAID items.
type RaidSearchQuery struct {
	Match    string
	ItemType raid.ItemType
	Owner    string
	Status   string
	Limit    int
}

// TranscriptSearchQuery is a full-text query over transcript segments.
type TranscriptSearchQuery struct {
	Match   string
	Speaker string
	Limit   int
}

// RaidItemHit is a ranked RAID search match. Score grows with relevance.
type RaidItemHit struct {
	Item         RaidItemRecord
	MeetingTitle string
	Snippet      string
	Score        float64
}

// TranscriptHit is a ranked transcript search match.
type TranscriptHit struct {
	Transcript   TranscriptRecord
	MeetingTitle string
	Snippet      string
	Score        float64
}

// SearchIndex answers full-text queries. Match is an already escaped
// full-text expression.
type SearchIndex interface {
	SearchRaidItems(ctx context.Context, q RaidSearchQuery) ([]RaidItemHit, error)
	SearchTranscripts(ctx context.Context, q TranscriptSearchQuery) ([]TranscriptHit, error)
}

// RebuildStore supports a full projection rebuild.
type RebuildStore interface {
	// ResetProjections removes every meeting and RAID item row. Transcripts
	// and rejections are not derived from events and are kept.
	ResetProjections(ctx context.Context) error
	// RebuildSearchIndexes regenerates the full-text indexes from their tables.
	RebuildSearchIndexes(ctx context.Context) error
}

// ProjectionStore is the full read-model surface.
type ProjectionStore interface {
	MeetingStore
	RaidItemStore
	TranscriptStore
	RejectionStore
	SearchIndex
	RebuildStore
}
