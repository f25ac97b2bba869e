package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PutRejection records that rejectedID is not a duplicate of itemID. It
// reports false when the pair was already recorded in this direction.
func (s *Store) PutRejection(ctx context.Context, itemID, rejectedID string, at time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	itemID = strings.TrimSpace(itemID)
	rejectedID = strings.TrimSpace(rejectedID)
	if itemID == "" || rejectedID == "" {
		return false, fmt.Errorf("both item ids are required")
	}
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO duplicate_rejections (item_id, rejected_duplicate_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT(item_id, rejected_duplicate_id) DO NOTHING`,
		itemID, rejectedID, toMillis(at),
	)
	if err != nil {
		return false, fmt.Errorf("put rejection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put rejection: %w", err)
	}
	return affected > 0, nil
}

// ListRejectedIDs returns the ids recorded as rejected for itemID.
func (s *Store) ListRejectedIDs(ctx context.Context, itemID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryRejections(ctx, `
SELECT rejected_duplicate_id FROM duplicate_rejections WHERE item_id = ?`,
		itemID,
	)
}

// ListRejectionPeers returns every id paired with itemID by a rejection in
// either direction.
func (s *Store) ListRejectionPeers(ctx context.Context, itemID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryRejections(ctx, `
SELECT rejected_duplicate_id FROM duplicate_rejections WHERE item_id = ?
UNION
SELECT item_id FROM duplicate_rejections WHERE rejected_duplicate_id = ?`,
		itemID, itemID,
	)
}

func (s *Store) queryRejections(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}
	return ids, nil
}
