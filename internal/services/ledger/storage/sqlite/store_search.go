package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
)

const (
	snippetOpen     = "<mark>"
	snippetClose    = "</mark>"
	snippetEllipsis = "…"
	snippetTokens   = 16
	defaultLimit    = 20
)

// SearchRaidItems runs a full-text match over RAID item descriptions and
// owners. Results are ordered by BM25 relevance, best first.
func (s *Store) SearchRaidItems(ctx context.Context, q storage.RaidSearchQuery) ([]storage.RaidItemHit, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Match) == "" {
		return nil, nil
	}

	query := `
SELECT r.id, r.meeting_id, r.item_type, r.description, r.owner, r.due_date, r.status, r.confidence,
       COALESCE(m.title, ''),
       snippet(raid_items_fts, -1, ?, ?, ?, ?),
       bm25(raid_items_fts)
FROM raid_items_fts
JOIN raid_items r ON r.row_id = raid_items_fts.rowid
LEFT JOIN meetings m ON m.id = r.meeting_id
WHERE raid_items_fts MATCH ?`
	args := []any{snippetOpen, snippetClose, snippetEllipsis, snippetTokens, q.Match}
	if q.ItemType != "" {
		query += " AND r.item_type = ?"
		args = append(args, string(q.ItemType))
	}
	if owner := strings.TrimSpace(q.Owner); owner != "" {
		query += " AND r.owner = ? COLLATE NOCASE"
		args = append(args, owner)
	}
	if status := strings.TrimSpace(q.Status); status != "" {
		query += " AND r.status = ? COLLATE NOCASE"
		args = append(args, status)
	}
	query += " ORDER BY bm25(raid_items_fts), r.id LIMIT ?"
	args = append(args, searchLimit(q.Limit))

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search raid items: %w", err)
	}
	defer rows.Close()

	var hits []storage.RaidItemHit
	for rows.Next() {
		var (
			hit      storage.RaidItemHit
			itemType string
			owner    sql.NullString
			dueDate  sql.NullString
			status   sql.NullString
			rank     float64
		)
		if err := rows.Scan(
			&hit.Item.ID, &hit.Item.MeetingID, &itemType, &hit.Item.Description,
			&owner, &dueDate, &status, &hit.Item.Confidence,
			&hit.MeetingTitle, &hit.Snippet, &rank,
		); err != nil {
			return nil, fmt.Errorf("scan raid hit: %w", err)
		}
		hit.Item.ItemType = raid.ItemType(itemType)
		hit.Item.Owner = owner.String
		hit.Item.DueDate = dueDate.String
		hit.Item.Status = status.String
		hit.Score = relevance(rank)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search raid items: %w", err)
	}
	return hits, nil
}

// SearchTranscripts runs a full-text match over transcript segments.
func (s *Store) SearchTranscripts(ctx context.Context, q storage.TranscriptSearchQuery) ([]storage.TranscriptHit, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Match) == "" {
		return nil, nil
	}

	query := `
SELECT t.id, t.meeting_id, t.speaker, t.text, t.start_time,
       COALESCE(m.title, ''),
       snippet(transcripts_fts, -1, ?, ?, ?, ?),
       bm25(transcripts_fts)
FROM transcripts_fts
JOIN transcripts t ON t.row_id = transcripts_fts.rowid
LEFT JOIN meetings m ON m.id = t.meeting_id
WHERE transcripts_fts MATCH ?`
	args := []any{snippetOpen, snippetClose, snippetEllipsis, snippetTokens, q.Match}
	if speaker := strings.TrimSpace(q.Speaker); speaker != "" {
		query += " AND t.speaker = ? COLLATE NOCASE"
		args = append(args, speaker)
	}
	query += " ORDER BY bm25(transcripts_fts), t.id LIMIT ?"
	args = append(args, searchLimit(q.Limit))

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer rows.Close()

	var hits []storage.TranscriptHit
	for rows.Next() {
		var (
			hit       storage.TranscriptHit
			speaker   sql.NullString
			startTime sql.NullFloat64
			rank      float64
		)
		if err := rows.Scan(
			&hit.Transcript.ID, &hit.Transcript.MeetingID, &speaker, &hit.Transcript.Text, &startTime,
			&hit.MeetingTitle, &hit.Snippet, &rank,
		); err != nil {
			return nil, fmt.Errorf("scan transcript hit: %w", err)
		}
		hit.Transcript.Speaker = speaker.String
		hit.Transcript.StartTime = fromNullFloat(startTime)
		hit.Score = relevance(rank)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	return hits, nil
}

// relevance flips BM25 (more negative is better) into a non-negative score
// where larger is better.
func relevance(rank float64) float64 {
	if rank >= 0 {
		return 0
	}
	return -rank
}

func searchLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
