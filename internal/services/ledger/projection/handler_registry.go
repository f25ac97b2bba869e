package projection

import (
	"context"
	"slices"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
)

// storeRequirement specifies which stores a handler depends on.
type storeRequirement uint8

const (
	needMeeting storeRequirement = 1 << iota
	needRaidItem
)

// handlerEntry declares the preconditions and apply function for one event type.
type handlerEntry struct {
	stores           storeRequirement
	requireAggregate bool
	apply            func(Applier, context.Context, event.Record) error
}

// handlers maps each known event type to its handler entry. TranscriptParsed
// carries metadata only; utterances are ingested separately.
var handlers = map[event.Type]handlerEntry{
	event.TypeMeetingCreated: {
		stores:           needMeeting,
		requireAggregate: true,
		apply:            func(a Applier, ctx context.Context, rec event.Record) error { return a.applyMeetingCreated(ctx, rec) },
	},
	event.TypeTranscriptParsed: {},
	event.TypeActionItemExtracted: {
		stores: needRaidItem,
		apply:  func(a Applier, ctx context.Context, rec event.Record) error { return a.applyActionItemExtracted(ctx, rec) },
	},
	event.TypeDecisionExtracted: {
		stores: needRaidItem,
		apply:  func(a Applier, ctx context.Context, rec event.Record) error { return a.applyDecisionExtracted(ctx, rec) },
	},
	event.TypeRiskExtracted: {
		stores: needRaidItem,
		apply:  func(a Applier, ctx context.Context, rec event.Record) error { return a.applyRiskExtracted(ctx, rec) },
	},
	event.TypeIssueExtracted: {
		stores: needRaidItem,
		apply:  func(a Applier, ctx context.Context, rec event.Record) error { return a.applyIssueExtracted(ctx, rec) },
	},
	event.TypeRaidItemStatusChanged: {
		stores: needRaidItem,
		apply:  func(a Applier, ctx context.Context, rec event.Record) error { return a.applyRaidItemStatusChanged(ctx, rec) },
	},
}

// HandledTypes returns the registered event types in a stable order.
func HandledTypes() []event.Type {
	types := make([]event.Type, 0, len(handlers))
	for t := range handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
