// Package openitems serves the open RAID item views: filtered listings, a
// due-date summary, status changes, and per-item history assembled from the
// event journal.
package openitems

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
)

// DefaultCloseStatus is used by CloseItem when no status is given.
const DefaultCloseStatus = "completed"

// GroupBy orders GetItems results.
type GroupBy string

const (
	GroupByNone     GroupBy = ""
	GroupByDueDate  GroupBy = "due_date"
	GroupByOwner    GroupBy = "owner"
	GroupByItemType GroupBy = "item_type"
)

// ParseGroupBy validates a textual grouping.
func ParseGroupBy(raw string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(raw))); g {
	case GroupByNone, GroupByDueDate, GroupByOwner, GroupByItemType:
		return g, nil
	default:
		return GroupByNone, fmt.Errorf("unknown group by %q", raw)
	}
}

// Filter narrows GetItems. Zero fields match everything; closed items are
// always excluded.
type Filter struct {
	ItemType      raid.ItemType
	Owner         string
	MeetingID     string
	OverdueOnly   bool
	DueWithinDays int
}

// Summary aggregates open items.
type Summary struct {
	Total          int
	Overdue        int
	DueToday       int
	DueWithin7Days int
	ByType         map[raid.ItemType]int
}

// Store is the projection surface the view reads and writes.
type Store interface {
	storage.MeetingStore
	storage.RaidItemStore
}

// EventHistory reads the journal entries related to an id.
type EventHistory interface {
	ListEventsReferencing(ctx context.Context, id string) ([]event.Record, error)
}

// Journal records status changes so they survive a rebuild.
type Journal interface {
	AppendEvent(ctx context.Context, evt event.Event, expected event.ExpectedVersion) (event.Record, error)
}

// View answers open-item queries.
type View struct {
	store   Store
	history EventHistory
	journal Journal
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a View.
type Option func(*View)

// WithHistory enables GetItemHistory.
func WithHistory(history EventHistory) Option {
	return func(v *View) {
		v.history = history
	}
}

// WithJournal makes CloseItem append a status change event.
func WithJournal(journal Journal) Option {
	return func(v *View) {
		v.journal = journal
	}
}

// WithClock sets the clock that defines "today".
func WithClock(now func() time.Time) Option {
	return func(v *View) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the view logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewView builds a view over store.
func NewView(store Store, opts ...Option) *View {
	v := &View{store: store, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

func (v *View) ready() error {
	if v == nil || v.store == nil {
		return fmt.Errorf("open items view is not configured")
	}
	return nil
}

func (v *View) today() time.Time {
	now := v.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// GetSummary counts open items by due-date bucket and type in one pass.
func (v *View) GetSummary(ctx context.Context) (Summary, error) {
	if err := v.ready(); err != nil {
		return Summary{}, err
	}
	items, err := v.store.ListRaidItems(ctx, storage.RaidItemFilter{})
	if err != nil {
		return Summary{}, fmt.Errorf("list raid items: %w", err)
	}

	today := v.today()
	summary := Summary{ByType: map[raid.ItemType]int{}}
	for _, item := range items {
		if !IsItemOpen(item.Status) {
			continue
		}
		summary.Total++
		summary.ByType[item.ItemType]++
		due, ok := parseDue(item.DueDate)
		if !ok {
			continue
		}
		switch days := daysBetween(today, due); {
		case days < 0:
			summary.Overdue++
		case days == 0:
			summary.DueToday++
		case days <= 7:
			summary.DueWithin7Days++
		}
	}
	return summary, nil
}

// GetItems lists open items matching filter, ordered by groupBy.
func (v *View) GetItems(ctx context.Context, filter Filter, groupBy GroupBy) ([]storage.RaidItemRecord, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	items, err := v.store.ListRaidItems(ctx, storage.RaidItemFilter{
		ItemType:  filter.ItemType,
		Owner:     filter.Owner,
		MeetingID: filter.MeetingID,
	})
	if err != nil {
		return nil, fmt.Errorf("list raid items: %w", err)
	}

	today := v.today()
	open := make([]storage.RaidItemRecord, 0, len(items))
	for _, item := range items {
		if !IsItemOpen(item.Status) {
			continue
		}
		if filter.OverdueOnly || filter.DueWithinDays > 0 {
			due, ok := parseDue(item.DueDate)
			if !ok {
				continue
			}
			days := daysBetween(today, due)
			if filter.OverdueOnly && days >= 0 {
				continue
			}
			if filter.DueWithinDays > 0 && (days < 0 || days > filter.DueWithinDays) {
				continue
			}
		}
		open = append(open, item)
	}

	sortItems(open, groupBy)
	return open, nil
}

// CloseItem sets an item's status (DefaultCloseStatus when empty). It
// reports false, without error, when no such item exists. With a journal
// configured the change is appended as an event before the projection moves.
func (v *View) CloseItem(ctx context.Context, itemID, status string) (bool, error) {
	if err := v.ready(); err != nil {
		return false, err
	}
	itemID = strings.TrimSpace(itemID)
	status = strings.TrimSpace(status)
	if status == "" {
		status = DefaultCloseStatus
	}
	if itemID == "" {
		return false, nil
	}

	if v.journal != nil {
		if _, err := v.store.GetRaidItem(ctx, itemID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("get raid item: %w", err)
		}
		evt, err := event.New(event.TypeRaidItemStatusChanged, itemID, event.RaidItemStatusChangedPayload{
			ItemID: itemID,
			Status: status,
		})
		if err != nil {
			return false, err
		}
		if _, err := v.journal.AppendEvent(ctx, evt, event.AnyVersion); err != nil {
			return false, fmt.Errorf("journal status change: %w", err)
		}
	}

	updated, err := v.store.UpdateRaidItemStatus(ctx, itemID, status)
	if err != nil {
		return false, fmt.Errorf("update raid item status: %w", err)
	}
	if updated {
		v.logger.InfoContext(ctx, "raid item status changed", slog.String("item_id", itemID), slog.String("status", status))
	}
	return updated, nil
}

func sortItems(items []storage.RaidItemRecord, groupBy GroupBy) {
	byDue := func(a, b storage.RaidItemRecord) int {
		switch {
		case a.DueDate == "" && b.DueDate != "":
			return 1
		case a.DueDate != "" && b.DueDate == "":
			return -1
		}
		return cmp.Compare(a.DueDate, b.DueDate)
	}
	var order func(a, b storage.RaidItemRecord) int
	switch groupBy {
	case GroupByDueDate:
		order = byDue
	case GroupByOwner:
		order = func(a, b storage.RaidItemRecord) int {
			ao, bo := strings.ToLower(a.Owner), strings.ToLower(b.Owner)
			switch {
			case ao == "" && bo != "":
				return 1
			case ao != "" && bo == "":
				return -1
			}
			if c := cmp.Compare(ao, bo); c != 0 {
				return c
			}
			return byDue(a, b)
		}
	case GroupByItemType:
		order = func(a, b storage.RaidItemRecord) int {
			if c := cmp.Compare(typeRank(a.ItemType), typeRank(b.ItemType)); c != 0 {
				return c
			}
			return byDue(a, b)
		}
	default:
		return
	}
	slices.SortStableFunc(items, func(a, b storage.RaidItemRecord) int {
		if c := order(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func typeRank(t raid.ItemType) int {
	if i := slices.Index(raid.ItemTypes(), t); i >= 0 {
		return i
	}
	return len(raid.ItemTypes())
}

func parseDue(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
