package maintenance

import (
	"context"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/openitems"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/projection"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/search"
)

type projectionRebuilder interface {
	RebuildAll(ctx context.Context) (projection.RebuildResult, error)
}

type searcher interface {
	Search(ctx context.Context, query string, limit int) search.Results
}

type summarizer interface {
	GetSummary(ctx context.Context) (openitems.Summary, error)
}

type eventLister interface {
	ListEventsFiltered(ctx context.Context, filter string, limit, offset int) ([]event.Record, error)
}

// services is the slice of the ledger each maintenance action needs.
type services struct {
	rebuild projectionRebuilder
	search  searcher
	summary summarizer
	events  eventLister
}
