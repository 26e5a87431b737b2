package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/playtime/internal/domain"
)

var sessionCacheColumns = []string{"entity_id", "is_tracking", "activity_id", "activity_name", "session_start", "session_id"}

var _ domain.SessionStore = (*SessionStore)(nil)

// SessionStore keeps one row per entity in session_cache.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Load(ctx context.Context) (map[domain.EntityID]domain.SessionState, error) {
	rows, err := s.pool.Query(ctx, `SELECT entity_id, is_tracking, activity_id, activity_name, session_start, session_id FROM session_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to load session cache: %w", err)
	}
	defer rows.Close()

	states := make(map[domain.EntityID]domain.SessionState)
	for rows.Next() {
		var (
			entityID, activityID int64
			start                *time.Time
			st                   domain.SessionState
		)
		if err := rows.Scan(&entityID, &st.IsTracking, &activityID, &st.ActivityName, &start, &st.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session cache: %w", err)
		}
		if start != nil {
			utc := start.UTC()
			st.SessionStart = &utc
		}
		st.ActivityID = domain.ActivityID(activityID)
		states[domain.EntityID(entityID)] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session cache: %w", err)
	}
	return states, nil
}

// Save replaces the table contents in one transaction.
func (s *SessionStore) Save(ctx context.Context, states map[domain.EntityID]domain.SessionState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM session_cache`); err != nil {
		return fmt.Errorf("failed to clear session cache: %w", err)
	}

	rows := make([][]any, 0, len(states))
	for id, st := range states {
		var start *time.Time
		if st.SessionStart != nil {
			utc := st.SessionStart.UTC()
			start = &utc
		}
		rows = append(rows, []any{int64(id), st.IsTracking, int64(st.ActivityID), st.ActivityName, start, st.SessionID})
	}

	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"session_cache"}, sessionCacheColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to write session cache: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session cache: %w", err)
	}
	return nil
}
