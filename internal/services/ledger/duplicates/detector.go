// Package duplicates finds existing RAID items that likely restate a new
// one, and remembers pairs a user has declared distinct.
package duplicates

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
)

// DefaultThreshold is the minimum similarity reported as a duplicate.
const DefaultThreshold = 0.85

const defaultLimit = 5

// Store is the projection surface the detector reads and writes.
type Store interface {
	storage.MeetingStore
	storage.RaidItemStore
	storage.RejectionStore
}

// Match is a candidate duplicate with its score.
type Match struct {
	Item         storage.RaidItemRecord
	MeetingTitle string
	Similarity   float64
}

// Detector scores RAID items against a description.
type Detector struct {
	store     Store
	threshold float64
	now       func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides DefaultThreshold. Values outside (0,1] are ignored.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold > 0 && threshold <= 1 {
			d.threshold = threshold
		}
	}
}

// WithClock sets the clock used to stamp rejections.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDetector builds a detector over store.
func NewDetector(store Store, opts ...Option) *Detector {
	d := &Detector{store: store, threshold: DefaultThreshold, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Threshold returns the configured minimum similarity.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// FindDuplicates returns up to limit items whose token-set similarity to
// description clears the threshold, best first. When excludeItemID is set,
// that item and every item rejected against it are skipped. An empty result
// is not an error.
func (d *Detector) FindDuplicates(ctx context.Context, description string, itemType raid.ItemType, limit int, excludeItemID string) ([]Match, error) {
	if d == nil || d.store == nil {
		return nil, fmt.Errorf("duplicate detector is not configured")
	}
	if strings.TrimSpace(description) == "" {
		return []Match{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	candidates, err := d.store.ListRaidItems(ctx, storage.RaidItemFilter{ItemType: itemType})
	if err != nil {
		return nil, fmt.Errorf("load duplicate candidates: %w", err)
	}

	excluded := map[string]struct{}{}
	if excludeItemID = strings.TrimSpace(excludeItemID); excludeItemID != "" {
		excluded[excludeItemID] = struct{}{}
		rejected, err := d.store.ListRejectionPeers(ctx, excludeItemID)
		if err != nil {
			return nil, fmt.Errorf("load rejections: %w", err)
		}
		for _, id := range rejected {
			excluded[id] = struct{}{}
		}
	}

	matches := []Match{}
	for _, candidate := range candidates {
		if _, skip := excluded[candidate.ID]; skip {
			continue
		}
		score := TokenSetSimilarity(description, candidate.Description)
		if score < d.threshold {
			continue
		}
		matches = append(matches, Match{Item: candidate, Similarity: score})
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return strings.Compare(a.Item.ID, b.Item.ID)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	titles := map[string]string{}
	for i := range matches {
		meetingID := matches[i].Item.MeetingID
		title, ok := titles[meetingID]
		if !ok {
			meeting, err := d.store.GetMeeting(ctx, meetingID)
			switch {
			case err == nil:
				title = meeting.Title
			case errors.Is(err, storage.ErrNotFound):
			default:
				return nil, fmt.Errorf("load meeting %s: %w", meetingID, err)
			}
			titles[meetingID] = title
		}
		matches[i].MeetingTitle = title
	}
	return matches, nil
}

// RecordRejection remembers that duplicateID is not a duplicate of itemID.
// Recording the same pair again is a no-op.
func (d *Detector) RecordRejection(ctx context.Context, itemID, duplicateID string) error {
	if d == nil || d.store == nil {
		return fmt.Errorf("duplicate detector is not configured")
	}
	if _, err := d.store.PutRejection(ctx, itemID, duplicateID, d.now().UTC()); err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}

// GetRejections returns the ids recorded as rejected for itemID, sorted.
// Pairs recorded the other way round are not included.
func (d *Detector) GetRejections(ctx context.Context, itemID string) ([]string, error) {
	if d == nil || d.store == nil {
		return nil, fmt.Errorf("duplicate detector is not configured")
	}
	ids, err := d.store.ListRejectedIDs(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get rejections: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}
