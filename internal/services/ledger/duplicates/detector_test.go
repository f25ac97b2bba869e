package duplicates

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.OpenProjections(filepath.Join(t.TempDir(), "projections.db"))
	if err != nil {
		t.Fatalf("open projections: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.PutMeeting(ctx, storage.MeetingRecord{ID: "M1", Title: "Launch Planning", Date: "2026-03-02"}); err != nil {
		t.Fatalf("put meeting: %v", err)
	}
	items := []storage.RaidItemRecord{
		{ID: "A1", MeetingID: "M1", ItemType: raid.ItemAction, Description: "Ship the v2 release"},
		{ID: "A2", MeetingID: "M1", ItemType: raid.ItemAction, Description: "Ship v2 release to customers"},
		{ID: "A3", MeetingID: "M9", ItemType: raid.ItemAction, Description: "ship v2 release"},
		{ID: "R1", MeetingID: "M1", ItemType: raid.ItemRisk, Description: "Ship v2 release slips"},
		{ID: "D1", MeetingID: "M1", ItemType: raid.ItemDecision, Description: "Adopt weekly demos"},
	}
	for _, item := range items {
		if err := store.PutRaidItem(ctx, item); err != nil {
			t.Fatalf("put item: %v", err)
		}
	}
}

func ids(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Item.ID)
	}
	return out
}

func TestFindDuplicatesAndRejection(t *testing.T) {
	store := openStore(t)
	seed(t, store)
	ctx := context.Background()
	detector := NewDetector(store)

	matches, err := detector.FindDuplicates(ctx, "Ship the v2 release", raid.ItemAction, 10, "A1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if diff := cmp.Diff([]string{"A3", "A2"}, ids(matches)); diff != "" {
		t.Fatalf("matches mismatch (-want +got):\n%s", diff)
	}
	if matches[1].Similarity < DefaultThreshold {
		t.Fatalf("A2 similarity = %v", matches[1].Similarity)
	}
	if matches[1].MeetingTitle != "Launch Planning" || matches[0].MeetingTitle != "" {
		t.Fatalf("titles = %q, %q", matches[0].MeetingTitle, matches[1].MeetingTitle)
	}

	if err := detector.RecordRejection(ctx, "A1", "A2"); err != nil {
		t.Fatalf("record rejection: %v", err)
	}
	if err := detector.RecordRejection(ctx, "A1", "A2"); err != nil {
		t.Fatalf("record rejection again: %v", err)
	}
	rejections, err := detector.GetRejections(ctx, "A1")
	if err != nil {
		t.Fatalf("get rejections: %v", err)
	}
	if diff := cmp.Diff([]string{"A2"}, rejections); diff != "" {
		t.Fatalf("rejections mismatch (-want +got):\n%s", diff)
	}

	matches, err = detector.FindDuplicates(ctx, "Ship the v2 release", raid.ItemAction, 10, "A1")
	if err != nil {
		t.Fatalf("find again: %v", err)
	}
	if diff := cmp.Diff([]string{"A3"}, ids(matches)); diff != "" {
		t.Fatalf("matches after rejection (-want +got):\n%s", diff)
	}

	// The pair is remembered from the other side too.
	matches, err = detector.FindDuplicates(ctx, "Ship v2 release to customers", raid.ItemAction, 10, "A2")
	if err != nil {
		t.Fatalf("find reverse: %v", err)
	}
	for _, m := range matches {
		if m.Item.ID == "A1" {
			t.Fatal("rejected pair resurfaced in reverse direction")
		}
	}
}

func TestFindDuplicatesAcrossTypesAndLimit(t *testing.T) {
	store := openStore(t)
	seed(t, store)
	detector := NewDetector(store)

	matches, err := detector.FindDuplicates(context.Background(), "ship v2 release", "", 2, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %v", ids(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Fatalf("not sorted: %v", matches)
		}
	}
}

func TestFindDuplicatesEmptyResults(t *testing.T) {
	store := openStore(t)
	detector := NewDetector(store)
	ctx := context.Background()

	matches, err := detector.FindDuplicates(ctx, "anything at all", "", 5, "")
	if err != nil {
		t.Fatalf("find on empty store: %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Fatalf("matches = %v", matches)
	}

	seed(t, store)
	matches, err = detector.FindDuplicates(ctx, "completely unrelated budget topic", raid.ItemDecision, 5, "")
	if err != nil {
		t.Fatalf("find unrelated: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("matches = %v", ids(matches))
	}
}

func TestThresholdOption(t *testing.T) {
	store := openStore(t)
	seed(t, store)
	strict := NewDetector(store, WithThreshold(0.95))
	if strict.Threshold() != 0.95 {
		t.Fatalf("threshold = %v", strict.Threshold())
	}
	matches, err := strict.FindDuplicates(context.Background(), "Ship the v2 release", raid.ItemAction, 10, "A1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if diff := cmp.Diff([]string{"A3"}, ids(matches)); diff != "" {
		t.Fatalf("strict matches (-want +got):\n%s", diff)
	}
	if NewDetector(store, WithThreshold(2)).Threshold() != DefaultThreshold {
		t.Fatal("out-of-range threshold should be ignored")
	}
}

func TestRecordRejectionUsesClock(t *testing.T) {
	store := openStore(t)
	fixed := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	detector := NewDetector(store, WithClock(func() time.Time { return fixed }))
	if err := detector.RecordRejection(context.Background(), "X", "Y"); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := detector.GetRejections(context.Background(), "X")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff([]string{"Y"}, got); diff != "" {
		t.Fatalf("rejections mismatch (-want +got):\n%s", diff)
	}
	reverse, err := detector.GetRejections(context.Background(), "Y")
	if err != nil {
		t.Fatalf("get reverse: %v", err)
	}
	if len(reverse) != 0 {
		t.Fatalf("expected no rejections recorded for Y, got %v", reverse)
	}
}
