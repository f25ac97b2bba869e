package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/louisbranch/meeting.ledger/internal/platform/otel"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/bus"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a rebuild without a journal.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrProjectionStoreRequired indicates a builder without a projection store.
	ErrProjectionStoreRequired = errors.New("projection store is required")
)

// EventReader pages through the journal for replay.
type EventReader interface {
	ListEvents(ctx context.Context, since *time.Time, afterSeq uint64, limit int) ([]event.Record, error)
}

// Store is the projection surface the builder writes.
type Store interface {
	storage.MeetingStore
	storage.RaidItemStore
	storage.RebuildStore
}

// RebuildResult counts what a rebuild replayed.
type RebuildResult struct {
	Events        int
	Meetings      int
	ActionItems   int
	Decisions     int
	Risks         int
	Issues        int
	StatusChanges int
	Skipped       int
	LastSeq       uint64
}

// Builder keeps projections current from live delivery and rebuilds them
// from the journal on demand.
type Builder struct {
	applier  Applier
	store    Store
	events   EventReader
	logger   *slog.Logger
	tracer   trace.Tracer
	pageSize int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPageSize sets how many events a rebuild reads per page.
func WithPageSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// NewBuilder wires a builder over store, reading replays from events.
func NewBuilder(store Store, events EventReader, opts ...BuilderOption) (*Builder, error) {
	if store == nil {
		return nil, ErrProjectionStoreRequired
	}
	b := &Builder{
		applier:  Applier{Meeting: store, RaidItem: store},
		store:    store,
		events:   events,
		logger:   slog.Default(),
		tracer:   otel.Tracer("projection"),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Apply applies one record. Live delivery and rebuild both go through here.
func (b *Builder) Apply(ctx context.Context, rec event.Record) error {
	if err := b.applier.Apply(ctx, rec); err != nil {
		return fmt.Errorf("apply event %s (%s): %w", rec.ID, rec.Type, err)
	}
	return nil
}

// Register subscribes the builder to every handled event type on eventBus.
// Handler errors surface to the bus, which isolates and logs them.
func (b *Builder) Register(eventBus *bus.Bus) ([]*bus.Subscription, error) {
	if eventBus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	var subs []*bus.Subscription
	for _, t := range HandledTypes() {
		sub, err := eventBus.Subscribe(t, "projection."+string(t), b.Apply)
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			return nil, fmt.Errorf("register projection handlers: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// RebuildAll wipes the event-derived projections, replays the whole journal
// oldest first through Apply, and rebuilds the search indexes. A failure
// stops the replay and leaves projections partially rebuilt; rerun to recover.
func (b *Builder) RebuildAll(ctx context.Context) (result RebuildResult, err error) {
	if b.events == nil {
		return RebuildResult{}, ErrEventStoreRequired
	}
	ctx, span := b.tracer.Start(ctx, "projection.rebuild")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rebuild failed")
			b.logger.ErrorContext(ctx, "projection rebuild failed",
				slog.Uint64("last_seq", result.LastSeq),
				slog.Any("error", err),
			)
		}
		span.SetAttributes(attribute.Int("rebuild.events", result.Events))
		span.End()
	}()

	start := time.Now()
	if err := b.store.ResetProjections(ctx); err != nil {
		return result, fmt.Errorf("reset projections: %w", err)
	}

	afterSeq := uint64(0)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		page, err := b.events.ListEvents(ctx, nil, afterSeq, b.pageSize)
		if err != nil {
			return result, fmt.Errorf("list events after %d: %w", afterSeq, err)
		}
		for _, rec := range page {
			if err := b.Apply(ctx, rec); err != nil {
				return result, err
			}
			result.count(rec.Type)
			afterSeq = rec.Seq
			result.LastSeq = rec.Seq
		}
		if len(page) < b.pageSize {
			break
		}
	}

	if err := b.store.RebuildSearchIndexes(ctx); err != nil {
		return result, fmt.Errorf("rebuild search indexes: %w", err)
	}

	b.logger.InfoContext(ctx, "projections rebuilt",
		slog.Int("events", result.Events),
		slog.Int("meetings", result.Meetings),
		slog.Int("action_items", result.ActionItems),
		slog.Int("decisions", result.Decisions),
		slog.Int("risks", result.Risks),
		slog.Int("issues", result.Issues),
		slog.Int("skipped", result.Skipped),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (r *RebuildResult) count(t event.Type) {
	r.Events++
	switch t {
	case event.TypeMeetingCreated:
		r.Meetings++
	case event.TypeActionItemExtracted:
		r.ActionItems++
	case event.TypeDecisionExtracted:
		r.Decisions++
	case event.TypeRiskExtracted:
		r.Risks++
	case event.TypeIssueExtracted:
		r.Issues++
	case event.TypeRaidItemStatusChanged:
		r.StatusChanges++
	default:
		if !Handles(t) {
			r.Skipped++
		}
	}
}
