// Package postgres stores the enrollment event log in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/roster/internal/persistence"
)

//go:embed migrations/*.up.sql
var migrationFS embed.FS

// EventLog provides Postgres-backed persistence for consumed enrollment events.
type EventLog struct {
	pool *pgxpool.Pool
}

// NewEventLog constructs an EventLog.
func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{pool: pool}
}

// Migrate applies the embedded schema migrations in lexical order. Every
// migration is idempotent so this is safe to run on each start.
func (l *EventLog) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		contents, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := l.pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// Append stores an entry. Redelivered events with a known event_id are ignored.
func (l *EventLog) Append(ctx context.Context, entry persistence.EventLogEntry) error {
	const stmt = `INSERT INTO enrollment_event_log (event_id, event_type, activity, participant_id, schema_id, schema_subject, topic, partition, record_offset, payload, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (event_id) DO NOTHING`

	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := l.pool.Exec(ctx, stmt,
		entry.EventID,
		entry.EventType,
		entry.Activity,
		entry.ParticipantID,
		entry.SchemaID,
		entry.SchemaSubject,
		entry.Topic,
		entry.Partition,
		entry.Offset,
		[]byte(entry.Payload),
		occurredAt,
	)
	return err
}

// ListByActivity returns events for an activity newest first, using keyset pagination.
func (l *EventLog) ListByActivity(ctx context.Context, activity string, cursor *persistence.Cursor, limit int) ([]persistence.EventLogEntry, *persistence.Cursor, error) {
	if limit <= 0 {
		limit = 20
	}
	args := []any{activity, limit}
	query := `SELECT event_id, event_type, activity, participant_id, schema_id, schema_subject, topic, partition, record_offset, payload, occurred_at, received_at
        FROM enrollment_event_log WHERE activity=$1`

	if cursor != nil {
		query += ` AND (occurred_at, event_id) < ($3, $4)`
		args = append(args, cursor.OccurredAt, cursor.EventID)
	}
	query += ` ORDER BY occurred_at DESC, event_id DESC LIMIT $2`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.EventLogEntry, error) {
		var e persistence.EventLogEntry
		var payload []byte
		err := row.Scan(&e.EventID, &e.EventType, &e.Activity, &e.ParticipantID, &e.SchemaID, &e.SchemaSubject,
			&e.Topic, &e.Partition, &e.Offset, &payload, &e.OccurredAt, &e.ReceivedAt)
		e.Payload = payload
		return e, err
	})
	if err != nil {
		return nil, nil, err
	}

	var next *persistence.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &persistence.Cursor{OccurredAt: last.OccurredAt, EventID: last.EventID}
	}
	return results, next, nil
}
