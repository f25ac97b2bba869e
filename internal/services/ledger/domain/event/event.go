package event

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/louisbranch/meeting.ledger/internal/platform/id"
)

// Type identifies an event kind.
type Type string

const (
	TypeMeetingCreated        Type = "MeetingCreated"
	TypeTranscriptParsed      Type = "TranscriptParsed"
	TypeActionItemExtracted   Type = "ActionItemExtracted"
	TypeDecisionExtracted     Type = "DecisionExtracted"
	TypeRiskExtracted         Type = "RiskExtracted"
	TypeIssueExtracted        Type = "IssueExtracted"
	TypeRaidItemStatusChanged Type = "RaidItemStatusChanged"
)

// Aggregate types addressed by the known event types.
const (
	AggregateMeeting    = "meeting"
	AggregateActionItem = "action_item"
	AggregateDecision   = "decision"
	AggregateRisk       = "risk"
	AggregateIssue      = "issue"
	AggregateRaidItem   = "raid_item"
)

// definition ties a type to the aggregate it addresses and a payload decoder
// used for append-time validation.
type definition struct {
	aggregateType string
	validate      func([]byte) error
}

var definitions = map[Type]definition{
	TypeMeetingCreated:        {aggregateType: AggregateMeeting, validate: validatorFor[MeetingCreatedPayload]()},
	TypeTranscriptParsed:      {aggregateType: AggregateMeeting, validate: validatorFor[TranscriptParsedPayload]()},
	TypeActionItemExtracted:   {aggregateType: AggregateActionItem, validate: validatorFor[ActionItemExtractedPayload]()},
	TypeDecisionExtracted:     {aggregateType: AggregateDecision, validate: validatorFor[DecisionExtractedPayload]()},
	TypeRiskExtracted:         {aggregateType: AggregateRisk, validate: validatorFor[RiskExtractedPayload]()},
	TypeIssueExtracted:        {aggregateType: AggregateIssue, validate: validatorFor[IssueExtractedPayload]()},
	TypeRaidItemStatusChanged: {aggregateType: AggregateRaidItem, validate: validatorFor[RaidItemStatusChangedPayload]()},
}

// Known reports whether t is one of the closed set of event types.
func (t Type) Known() bool {
	_, ok := definitions[t]
	return ok
}

// AggregateType returns the aggregate kind addressed by t, or "" when unknown.
func (t Type) AggregateType() string {
	return definitions[t].aggregateType
}

// Event is the immutable envelope written to the event log.
type Event struct {
	ID            string
	Type          Type
	Timestamp     time.Time
	AggregateID   string
	AggregateType string
	PayloadJSON   []byte
	Metadata      map[string]string
}

// Record is an Event as stored: the log-assigned global sequence plus the
// per-aggregate version (0 when the event has no aggregate).
type Record struct {
	Event
	Seq     uint64
	Version int64
}

// HasAggregate reports whether the event addresses an aggregate.
func (e Event) HasAggregate() bool {
	return strings.TrimSpace(e.AggregateID) != ""
}

// New builds an event of type t addressed to aggregateID with a JSON-encoded
// payload. The aggregate type is derived from t; id and timestamp are fresh.
func New(t Type, aggregateID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Event{
		ID:            NewID(),
		Type:          t,
		Timestamp:     time.Now().UTC(),
		AggregateID:   aggregateID,
		AggregateType: t.AggregateType(),
		PayloadJSON:   data,
	}, nil
}

// NewID returns a fresh globally unique event id.
func NewID() string {
	return id.MustNewID()
}

// WithMetadata returns a copy of e with key set in its metadata.
func (e Event) WithMetadata(key, value string) Event {
	next := make(map[string]string, len(e.Metadata)+1)
	maps.Copy(next, e.Metadata)
	next[key] = value
	e.Metadata = next
	return e
}

// Normalize fills defaults for append: a fresh id when missing, a UTC
// millisecond timestamp, and the aggregate type implied by the event type.
func Normalize(e Event) Event {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Millisecond)
	e.AggregateID = strings.TrimSpace(e.AggregateID)
	if e.AggregateID != "" && strings.TrimSpace(e.AggregateType) == "" {
		e.AggregateType = e.Type.AggregateType()
	}
	if len(e.PayloadJSON) == 0 {
		e.PayloadJSON = []byte("{}")
	}
	return e
}

// Validate checks an event before append. Unknown types are accepted so newer
// producers can write events older readers skip; known types must carry a
// payload that decodes into their shape.
func Validate(e Event) error {
	if strings.TrimSpace(string(e.Type)) == "" {
		return ErrTypeRequired
	}
	if len(e.PayloadJSON) > 0 && !json.Valid(e.PayloadJSON) {
		return fmt.Errorf("%w: %s payload is not valid json", ErrInvalidPayload, e.Type)
	}
	def, ok := definitions[e.Type]
	if !ok {
		return nil
	}
	if err := def.validate(e.PayloadJSON); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, e.Type, err)
	}
	return nil
}

// Decode unmarshals the event payload into P.
func Decode[P any](e Event) (P, error) {
	var payload P
	if err := json.Unmarshal(e.PayloadJSON, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return payload, nil
}

func validatorFor[P any]() func([]byte) error {
	return func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		var payload P
		return json.Unmarshal(data, &payload)
	}
}
