package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/playtime/internal/domain"
)

// Re-appending a record with a known session_id is a no-op.
const insertSessionRecord = `
INSERT INTO session_log (session_id, entity_id, display_name, activity_id, activity_name, session_start, session_end, duration_minutes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id) DO NOTHING`

var _ domain.SessionSink = (*SessionLog)(nil)

type SessionLog struct {
	pool *pgxpool.Pool
}

func NewSessionLog(pool *pgxpool.Pool) *SessionLog {
	return &SessionLog{pool: pool}
}

func (l *SessionLog) Append(ctx context.Context, records []domain.SessionRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertSessionRecord,
			r.SessionID, int64(r.EntityID), r.DisplayName, int64(r.ActivityID), r.ActivityName,
			r.Start.UTC(), r.End.UTC(), r.DurationMinutes)
	}

	if err := l.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append session records: %w", err)
	}
	return nil
}

const selectSessionsByEntity = `
SELECT session_id, entity_id, display_name, activity_id, activity_name, session_start, session_end, duration_minutes
FROM session_log
WHERE entity_id = $1
ORDER BY session_start`

// ListByEntity returns the logged sessions of one entity ordered by start.
func (l *SessionLog) ListByEntity(ctx context.Context, entity domain.EntityID) ([]domain.SessionRecord, error) {
	rows, err := l.pool.Query(ctx, selectSessionsByEntity, int64(entity))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SessionRecord, error) {
		var r domain.SessionRecord
		var entityID, activityID int64
		err := row.Scan(&r.SessionID, &entityID, &r.DisplayName, &activityID, &r.ActivityName, &r.Start, &r.End, &r.DurationMinutes)
		r.EntityID = domain.EntityID(entityID)
		r.ActivityID = domain.ActivityID(activityID)
		r.Start = r.Start.UTC()
		r.End = r.End.UTC()
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return records, nil
}
