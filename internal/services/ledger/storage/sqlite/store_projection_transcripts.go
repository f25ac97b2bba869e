package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
)

// PutTranscript upserts one transcript segment.
func (s *Store) PutTranscript(ctx context.Context, t storage.TranscriptRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transcript id is required")
	}
	if strings.TrimSpace(t.MeetingID) == "" {
		return fmt.Errorf("transcript meeting id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO transcripts (id, meeting_id, speaker, text, start_time)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    meeting_id = excluded.meeting_id,
    speaker = excluded.speaker,
    text = excluded.text,
    start_time = excluded.start_time`,
		t.ID, t.MeetingID, toNullString(t.Speaker), t.Text, toNullFloat(t.StartTime),
	); err != nil {
		return fmt.Errorf("put transcript: %w", err)
	}
	return nil
}
