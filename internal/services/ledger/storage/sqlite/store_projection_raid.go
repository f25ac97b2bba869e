package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/raid"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
)

const raidColumns = "id, meeting_id, item_type, description, owner, due_date, status, confidence"

// PutRaidItem upserts a RAID item row. Replaying the same extraction event
// leaves a single row.
func (s *Store) PutRaidItem(ctx context.Context, item storage.RaidItemRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("raid item id is required")
	}
	if !item.ItemType.Valid() {
		return fmt.Errorf("raid item type %q is invalid", item.ItemType)
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO raid_items (`+raidColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    meeting_id = excluded.meeting_id,
    item_type = excluded.item_type,
    description = excluded.description,
    owner = excluded.owner,
    due_date = excluded.due_date,
    status = excluded.status,
    confidence = excluded.confidence`,
		item.ID,
		item.MeetingID,
		string(item.ItemType),
		item.Description,
		toNullString(item.Owner),
		toNullString(item.DueDate),
		toNullString(item.Status),
		item.Confidence,
	); err != nil {
		return fmt.Errorf("put raid item: %w", err)
	}
	return nil
}

// GetRaidItem returns a RAID item by id.
func (s *Store) GetRaidItem(ctx context.Context, id string) (storage.RaidItemRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RaidItemRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+raidColumns+" FROM raid_items WHERE id = ?", id)
	item, err := scanRaidItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RaidItemRecord{}, storage.ErrNotFound
		}
		return storage.RaidItemRecord{}, fmt.Errorf("get raid item: %w", err)
	}
	return item, nil
}

// UpdateRaidItemStatus sets an item's status and reports whether it existed.
func (s *Store) UpdateRaidItemStatus(ctx context.Context, id, status string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.sqlDB.ExecContext(ctx, "UPDATE raid_items SET status = ? WHERE id = ?", toNullString(status), id)
	if err != nil {
		return false, fmt.Errorf("update raid item status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update raid item status: %w", err)
	}
	return affected > 0, nil
}

// ListRaidItems returns items matching filter ordered by meeting then id.
// Owner matches case-insensitively.
func (s *Store) ListRaidItems(ctx context.Context, f storage.RaidItemFilter) ([]storage.RaidItemRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var (
		clauses []string
		args    []any
	)
	if f.ItemType != "" {
		clauses = append(clauses, "item_type = ?")
		args = append(args, string(f.ItemType))
	}
	if owner := strings.TrimSpace(f.Owner); owner != "" {
		clauses = append(clauses, "owner = ? COLLATE NOCASE")
		args = append(args, owner)
	}
	if meetingID := strings.TrimSpace(f.MeetingID); meetingID != "" {
		clauses = append(clauses, "meeting_id = ?")
		args = append(args, meetingID)
	}
	query := "SELECT " + raidColumns + " FROM raid_items"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY meeting_id, id"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list raid items: %w", err)
	}
	defer rows.Close()

	var items []storage.RaidItemRecord
	for rows.Next() {
		item, err := scanRaidItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raid item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list raid items: %w", err)
	}
	return items, nil
}

func scanRaidItem(row rowScanner) (storage.RaidItemRecord, error) {
	var (
		item     storage.RaidItemRecord
		itemType string
		owner    sql.NullString
		dueDate  sql.NullString
		status   sql.NullString
	)
	if err := row.Scan(&item.ID, &item.MeetingID, &itemType, &item.Description, &owner, &dueDate, &status, &item.Confidence); err != nil {
		return storage.RaidItemRecord{}, err
	}
	item.ItemType = raid.ItemType(itemType)
	item.Owner = owner.String
	item.DueDate = dueDate.String
	item.Status = status.String
	return item, nil
}
