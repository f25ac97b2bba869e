package projection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
)

// StatusPending is the status every extracted RAID item starts with.
const StatusPending = "pending"

// Applier applies event journal entries to projection stores.
type Applier struct {
	// Meeting writes meeting read models.
	Meeting storage.MeetingStore
	// RaidItem writes RAID item read models.
	RaidItem storage.RaidItemStore
}

// Apply routes rec to its handler. Unknown types are a no-op.
func (a Applier) Apply(ctx context.Context, rec event.Record) error {
	entry, ok := handlers[rec.Type]
	if !ok {
		return nil
	}
	if err := a.validatePreconditions(rec, entry); err != nil {
		return err
	}
	if entry.apply == nil {
		return nil
	}
	return entry.apply(a, ctx, rec)
}

// Handles reports whether t has a registered handler.
func Handles(t event.Type) bool {
	_, ok := handlers[t]
	return ok
}

func (a Applier) validatePreconditions(rec event.Record, entry handlerEntry) error {
	if entry.stores&needMeeting != 0 && a.Meeting == nil {
		return fmt.Errorf("apply %s: meeting store is not configured", rec.Type)
	}
	if entry.stores&needRaidItem != 0 && a.RaidItem == nil {
		return fmt.Errorf("apply %s: raid item store is not configured", rec.Type)
	}
	if entry.requireAggregate && strings.TrimSpace(rec.AggregateID) == "" {
		return fmt.Errorf("apply %s: aggregate id is required", rec.Type)
	}
	return nil
}

func (a Applier) applyMeetingCreated(ctx context.Context, rec event.Record) error {
	payload, err := event.Decode[event.MeetingCreatedPayload](rec.Event)
	if err != nil {
		return err
	}
	return a.Meeting.PutMeeting(ctx, storage.MeetingRecord{
		ID:               rec.AggregateID,
		Title:            strings.TrimSpace(payload.Title),
		Date:             normalizeDate(payload.MeetingDate),
		ParticipantCount: max(payload.ParticipantCount, 0),
	})
}

func (a Applier) applyActionItemExtracted(ctx context.Context, rec event.Record) error {
	payload, err := event.Decode[event.ActionItemExtractedPayload](rec.Event)
	if err != nil {
		return err
	}
	return a.RaidItem.PutRaidItem(ctx, storage.RaidItemRecord{
		ID:          firstNonEmpty(payload.ActionItemID, rec.AggregateID),
		MeetingID:   payload.MeetingID,
		ItemType:    raid.ItemAction,
		Description: strings.TrimSpace(payload.Description),
		Owner:       strings.TrimSpace(payload.AssigneeName),
		DueDate:     normalizeDate(payload.DueDate),
		Status:      StatusPending,
		Confidence:  clampConfidence(payload.Confidence),
	})
}

func (a Applier) applyDecisionExtracted(ctx context.Context, rec event.Record) error {
	payload, err := event.Decode[event.DecisionExtractedPayload](rec.Event)
	if err != nil {
		return err
	}
	return a.putExtracted(ctx, raid.ItemDecision, firstNonEmpty(payload.DecisionID, rec.AggregateID), payload.MeetingID, payload.Description, payload.Confidence)
}

func (a Applier) applyRiskExtracted(ctx context.Context, rec event.Record) error {
	payload, err := event.Decode[event.RiskExtractedPayload](rec.Event)
	if err != nil {
		return err
	}
	return a.putExtracted(ctx, raid.ItemRisk, firstNonEmpty(payload.RiskID, rec.AggregateID), payload.MeetingID, payload.Description, payload.Confidence)
}

func (a Applier) applyIssueExtracted(ctx context.Context, rec event.Record) error {
	payload, err := event.Decode[event.IssueExtractedPayload](rec.Event)
	if err != nil {
		return err
	}
	return a.putExtracted(ctx, raid.ItemIssue, firstNonEmpty(payload.IssueID, rec.AggregateID), payload.MeetingID, payload.Description, payload.Confidence)
}

func (a Applier) putExtracted(ctx context.Context, itemType raid.ItemType, id, meetingID, description string, confidence float64) error {
	return a.RaidItem.PutRaidItem(ctx, storage.RaidItemRecord{
		ID:          id,
		MeetingID:   meetingID,
		ItemType:    itemType,
		Description: strings.TrimSpace(description),
		Status:      StatusPending,
		Confidence:  clampConfidence(confidence),
	})
}

// applyRaidItemStatusChanged updates status in place. A change for an item
// the projection has not seen is dropped.
func (a Applier) applyRaidItemStatusChanged(ctx context.Context, rec event.Record) error {
	payload, err := event.Decode[event.RaidItemStatusChangedPayload](rec.Event)
	if err != nil {
		return err
	}
	id := firstNonEmpty(payload.ItemID, rec.AggregateID)
	if id == "" {
		return fmt.Errorf("apply %s: item id is required", rec.Type)
	}
	_, err = a.RaidItem.UpdateRaidItemStatus(ctx, id, strings.TrimSpace(payload.Status))
	return err
}

// normalizeDate reduces date or timestamp strings to YYYY-MM-DD. Values that
// do not parse are kept as given.
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano, "2006-01-02T15:04:05", time.DateTime} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return value
}

func clampConfidence(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
