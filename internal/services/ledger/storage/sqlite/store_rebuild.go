package sqlite

import (
	"context"
	"fmt"
)

// ResetProjections deletes every meeting and RAID item row in one
// transaction. The FTS delete triggers keep the indexes in step.
func (s *Store) ResetProjections(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"raid_items", "meetings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RebuildSearchIndexes regenerates every FTS index from its content table.
func (s *Store) RebuildSearchIndexes(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for _, index := range []string{"meetings_fts", "raid_items_fts", "transcripts_fts"} {
		if _, err := s.sqlDB.ExecContext(ctx, "INSERT INTO "+index+"("+index+") VALUES ('rebuild')"); err != nil {
			return fmt.Errorf("rebuild %s: %w", index, err)
		}
	}
	return nil
}
