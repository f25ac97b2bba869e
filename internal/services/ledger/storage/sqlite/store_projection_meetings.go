package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
	"golang.org/x/text/cases"
)

var titleFolder = cases.Fold()

// PutMeeting upserts a meeting row.
func (s *Store) PutMeeting(ctx context.Context, m storage.MeetingRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("meeting id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO meetings (id, title, meeting_date, participant_count)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    meeting_date = excluded.meeting_date,
    participant_count = excluded.participant_count`,
		m.ID, m.Title, m.Date, m.ParticipantCount,
	); err != nil {
		return fmt.Errorf("put meeting: %w", err)
	}
	return nil
}

// GetMeeting returns a meeting by id.
func (s *Store) GetMeeting(ctx context.Context, id string) (storage.MeetingRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MeetingRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, title, meeting_date, participant_count FROM meetings WHERE id = ?", id)
	m, err := scanMeeting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MeetingRecord{}, storage.ErrNotFound
		}
		return storage.MeetingRecord{}, fmt.Errorf("get meeting: %w", err)
	}
	return m, nil
}

// PreviousMeetingInSeries finds the most recent earlier meeting with the same
// seriesKey.
func (s *Store) PreviousMeetingInSeries(ctx context.Context, meetingID string) (storage.MeetingRecord, error) {
	current, err := s.GetMeeting(ctx, meetingID)
	if err != nil {
		return storage.MeetingRecord{}, err
	}
	want := seriesKey(current.Title)
	if want == "" || current.Date == "" {
		return storage.MeetingRecord{}, storage.ErrNotFound
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, title, meeting_date, participant_count FROM meetings
WHERE id != ? AND meeting_date != '' AND meeting_date < ?
ORDER BY meeting_date DESC, id DESC`,
		current.ID, current.Date,
	)
	if err != nil {
		return storage.MeetingRecord{}, fmt.Errorf("list series meetings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return storage.MeetingRecord{}, fmt.Errorf("scan series meeting: %w", err)
		}
		if seriesKey(m.Title) == want {
			return m, nil
		}
	}
	if err := rows.Err(); err != nil {
		return storage.MeetingRecord{}, fmt.Errorf("list series meetings: %w", err)
	}
	return storage.MeetingRecord{}, storage.ErrNotFound
}

// seriesKey drops digits and punctuation so "Sprint Review #12" and
// "sprint review 13" land in the same series.
func seriesKey(title string) string {
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return ' '
	}, title)
	return titleFolder.String(strings.Join(strings.Fields(letters), " "))
}

func scanMeeting(row rowScanner) (storage.MeetingRecord, error) {
	var m storage.MeetingRecord
	if err := row.Scan(&m.ID, &m.Title, &m.Date, &m.ParticipantCount); err != nil {
		return storage.MeetingRecord{}, err
	}
	return m, nil
}
