package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/bus"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/duplicates"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/openitems"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/projection"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/search"
	storagesqlite "github.com/louisbranch/meeting.ledger/internal/services/ledger/storage/sqlite"
)

// Ledger owns every long-lived ledger component.
type Ledger struct {
	Events      *storagesqlite.Store
	Projections *storagesqlite.Store
	Bus         *bus.Bus
	Builder     *projection.Builder
	Search      *search.Service
	Duplicates  *duplicates.Detector
	OpenItems   *openitems.View

	logger *slog.Logger
	subs   []*bus.Subscription
}

type openOptions struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures Open.
type Option func(*openOptions)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for due dates and rejection timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *openOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Open builds a Ledger from cfg. Callers must Close it.
func Open(ctx context.Context, cfg Config, opts ...Option) (ledger *Ledger, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	options := openOptions{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Ledger{logger: options.logger}
	defer func() {
		if err != nil {
			_ = l.Close()
		}
	}()

	l.Events, err = storagesqlite.OpenEvents(cfg.EventsDBPath)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	l.Projections, err = storagesqlite.OpenProjections(cfg.ProjectionsDBPath)
	if err != nil {
		return nil, fmt.Errorf("open projection store: %w", err)
	}

	l.Bus = bus.New(
		bus.WithJournal(l.Events),
		bus.WithWorkers(cfg.HandlerWorkers),
		bus.WithLogger(options.logger),
	)
	l.Builder, err = projection.NewBuilder(l.Projections, l.Events, projection.WithLogger(options.logger))
	if err != nil {
		return nil, fmt.Errorf("build projection builder: %w", err)
	}
	l.subs, err = l.Builder.Register(l.Bus)
	if err != nil {
		return nil, fmt.Errorf("register projection handlers: %w", err)
	}

	l.Search = search.NewService(l.Projections, options.logger)
	l.Duplicates = duplicates.NewDetector(l.Projections,
		duplicates.WithThreshold(cfg.DuplicateThreshold),
		duplicates.WithClock(options.now),
	)
	l.OpenItems = openitems.NewView(l.Projections,
		openitems.WithHistory(l.Events),
		openitems.WithJournal(l.Events),
		openitems.WithClock(options.now),
		openitems.WithLogger(options.logger),
	)

	options.logger.InfoContext(ctx, "ledger opened",
		slog.String("events_db", cfg.EventsDBPath),
		slog.String("projections_db", cfg.ProjectionsDBPath),
	)
	return l, nil
}

// Publish journals evt and delivers it to the projection handlers.
func (l *Ledger) Publish(ctx context.Context, evt event.Event) (event.Record, error) {
	return l.Bus.Publish(ctx, evt, true)
}

// Close stops delivery and closes both stores.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	for _, sub := range l.subs {
		l.Bus.Unsubscribe(sub)
	}
	l.subs = nil
	if l.Bus != nil {
		l.Bus.Close()
	}
	var errs []error
	if l.Projections != nil {
		if err := l.Projections.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close projection store: %w", err))
		}
	}
	if l.Events != nil {
		if err := l.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event store: %w", err))
		}
	}
	return errors.Join(errs...)
}
