package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/meeting.ledger/internal/platform/errors"
	"github.com/louisbranch/meeting.ledger/internal/platform/otel"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage"
	"github.com/louisbranch/meeting.ledger/internal/services/ledger/storage/filter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("eventlog")

const eventColumns = "seq, event_id, event_type, timestamp, aggregate_id, aggregate_type, version, payload_json, metadata_json"

// AppendEvent atomically appends an event. The write transaction starts
// IMMEDIATE, so the version read and the insert are serialized against every
// other writer of the journal.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event, expected event.ExpectedVersion) (event.Record, error) {
	if err := s.ready(ctx); err != nil {
		return event.Record{}, err
	}
	ctx, span := tracer.Start(ctx, "eventlog.append", trace.WithAttributes(
		attribute.String("event.type", string(evt.Type)),
		attribute.String("event.aggregate_id", evt.AggregateID),
	))
	defer span.End()

	rec, err := s.appendEvent(ctx, evt, expected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return event.Record{}, err
	}
	span.SetAttributes(attribute.Int64("event.seq", int64(rec.Seq)))
	return rec, nil
}

func (s *Store) appendEvent(ctx context.Context, evt event.Event, expected event.ExpectedVersion) (event.Record, error) {

	evt = event.Normalize(evt)
	if err := event.Validate(evt); err != nil {
		return event.Record{}, err
	}
	if expected.Checked() && !evt.HasAggregate() {
		return event.Record{}, event.ErrAggregateRequired
	}
	metadataJSON, err := encodeMetadata(evt.Metadata)
	if err != nil {
		return event.Record{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM events WHERE event_id = ?", evt.ID).Scan(&existing)
	if err == nil {
		return event.Record{}, fmt.Errorf("append event %s: %w", evt.ID, event.ErrDuplicateEventID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return event.Record{}, fmt.Errorf("check event id: %w", err)
	}

	var version sql.NullInt64
	if evt.HasAggregate() {
		current, err := latestVersion(ctx, tx, evt.AggregateID)
		if err != nil {
			return event.Record{}, err
		}
		if expected.Checked() && current != int64(expected) {
			return event.Record{}, &event.ConcurrencyError{
				AggregateID: evt.AggregateID,
				Expected:    int64(expected),
				Actual:      current,
			}
		}
		version = sql.NullInt64{Int64: current + 1, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO events (event_id, event_type, timestamp, aggregate_id, aggregate_type, version, payload_json, metadata_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID,
		string(evt.Type),
		toMillis(evt.Timestamp),
		toNullString(evt.AggregateID),
		toNullString(evt.AggregateType),
		version,
		string(evt.PayloadJSON),
		metadataJSON,
	)
	if err != nil {
		if isConstraintError(err) {
			if strings.Contains(err.Error(), "events.event_id") {
				return event.Record{}, fmt.Errorf("append event %s: %w", evt.ID, event.ErrDuplicateEventID)
			}
			return event.Record{}, &event.ConcurrencyError{
				AggregateID: evt.AggregateID,
				Expected:    version.Int64 - 1,
				Actual:      version.Int64,
			}
		}
		return event.Record{}, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return event.Record{}, fmt.Errorf("read event seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Record{}, fmt.Errorf("commit: %w", err)
	}

	return event.Record{Event: evt, Seq: uint64(seq), Version: version.Int64}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latestVersion(ctx context.Context, q queryRower, aggregateID string) (int64, error) {
	var current int64
	if err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?",
		aggregateID,
	).Scan(&current); err != nil {
		return 0, fmt.Errorf("read aggregate version: %w", err)
	}
	return current, nil
}

// LatestVersion returns the aggregate's current version, 0 when it has no events.
func (s *Store) LatestVersion(ctx context.Context, aggregateID string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	return latestVersion(ctx, s.sqlDB, strings.TrimSpace(aggregateID))
}

// GetEvent returns a stored event by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (event.Record, error) {
	if err := s.ready(ctx); err != nil {
		return event.Record{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE event_id = ?", eventID)
	rec, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Record{}, storage.ErrNotFound
		}
		return event.Record{}, fmt.Errorf("get event: %w", err)
	}
	return rec, nil
}

// ListAggregateEvents returns an aggregate's events after afterVersion,
// ascending by version.
func (s *Store) ListAggregateEvents(ctx context.Context, aggregateID string, afterVersion int64) ([]event.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryEvents(ctx, "list aggregate events",
		"SELECT "+eventColumns+" FROM events WHERE aggregate_id = ? AND version > ? ORDER BY version",
		strings.TrimSpace(aggregateID), afterVersion,
	)
}

// ListEventsByType returns a page of events of one type, newest first.
func (s *Store) ListEventsByType(ctx context.Context, eventType event.Type, limit, offset int) ([]event.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryEvents(ctx, "list events by type",
		"SELECT "+eventColumns+" FROM events WHERE event_type = ? ORDER BY timestamp DESC, seq DESC LIMIT ? OFFSET ?",
		string(eventType), sqlLimit(limit), max(offset, 0),
	)
}

// ListEvents returns events after afterSeq, optionally from since onward, in
// append order. A zero limit returns every match.
func (s *Store) ListEvents(ctx context.Context, since *time.Time, afterSeq uint64, limit int) ([]event.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query := "SELECT " + eventColumns + " FROM events WHERE seq > ?"
	args := []any{int64(afterSeq)}
	if since != nil {
		query += " AND timestamp >= ?"
		args = append(args, toMillis(*since))
	}
	query += " ORDER BY seq LIMIT ?"
	args = append(args, sqlLimit(limit))
	return s.queryEvents(ctx, "list events", query, args...)
}

// ListEventsFiltered returns events matching an AIP-160 filter, newest first.
func (s *Store) ListEventsFiltered(ctx context.Context, filterStr string, limit, offset int) ([]event.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	cond, err := filter.ParseEventFilter(filterStr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid event filter", err)
	}
	query := "SELECT " + eventColumns + " FROM events"
	args := cond.Params
	if !cond.Empty() {
		query += " WHERE " + cond.Clause
	}
	query += " ORDER BY seq DESC LIMIT ? OFFSET ?"
	args = append(args, sqlLimit(limit), max(offset, 0))
	return s.queryEvents(ctx, "list filtered events", query, args...)
}

// ListEventsReferencing returns events addressed to id or carrying id as a
// top-level payload value, in append order.
func (s *Store) ListEventsReferencing(ctx context.Context, id string) ([]event.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	return s.queryEvents(ctx, "list referencing events", `
SELECT `+eventColumns+` FROM events
WHERE aggregate_id = ?
   OR EXISTS (SELECT 1 FROM json_each(events.payload_json) AS p WHERE p.type = 'text' AND p.value = ?)
ORDER BY seq`,
		id, id,
	)
}

// CountEvents counts stored events, restricted to eventType when non-empty.
func (s *Store) CountEvents(ctx context.Context, eventType event.Type) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM events"
	var args []any
	if eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, string(eventType))
	}
	var count int64
	if err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (s *Store) queryEvents(ctx context.Context, op, query string, args ...any) ([]event.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var records []event.Record
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Record, error) {
	var (
		seq           int64
		eventID       string
		eventType     string
		timestamp     int64
		aggregateID   sql.NullString
		aggregateType sql.NullString
		version       sql.NullInt64
		payloadJSON   string
		metadataJSON  string
	)
	if err := row.Scan(&seq, &eventID, &eventType, &timestamp, &aggregateID, &aggregateType, &version, &payloadJSON, &metadataJSON); err != nil {
		return event.Record{}, err
	}
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return event.Record{}, err
	}
	return event.Record{
		Event: event.Event{
			ID:            eventID,
			Type:          event.Type(eventType),
			Timestamp:     fromMillis(timestamp),
			AggregateID:   aggregateID.String,
			AggregateType: aggregateType.String,
			PayloadJSON:   []byte(payloadJSON),
			Metadata:      metadata,
		},
		Seq:     uint64(seq),
		Version: version.Int64,
	}, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode event metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" || raw == "{}" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("decode event metadata: %w", err)
	}
	return metadata, nil
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
