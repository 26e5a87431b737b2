package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/playtime/internal/domain"
)

func record(id string, entity domain.EntityID, start time.Time, minutes int) domain.SessionRecord {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return domain.SessionRecord{
		SessionID:       id,
		EntityID:        entity,
		DisplayName:     "Alice",
		ActivityID:      383310974,
		ActivityName:    "Adopt Me!",
		Start:           start,
		End:             end,
		DurationMinutes: domain.DurationMinutes(start, end),
	}
}

func TestSessionLog_AppendAndList(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	log := NewSessionLog(pool)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, []domain.SessionRecord{
		record("b", 1, base.Add(time.Hour), 15),
		record("a", 1, base, 30),
	}))
	require.NoError(t, log.Append(ctx, []domain.SessionRecord{record("c", 2, base, 5)}))

	got, err := log.ListByEntity(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SessionID)
	assert.Equal(t, "b", got[1].SessionID)
	assert.Equal(t, 30.0, got[0].DurationMinutes)
	assert.True(t, base.Equal(got[0].Start))
	assert.Equal(t, domain.ActivityID(383310974), got[0].ActivityID)
}

func TestSessionLog_AppendIsIdempotentPerSessionID(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	log := NewSessionLog(pool)
	rec := record("dup", 1, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), 10)

	require.NoError(t, log.Append(ctx, []domain.SessionRecord{rec}))
	require.NoError(t, log.Append(ctx, []domain.SessionRecord{rec}))

	got, err := log.ListByEntity(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSessionLog_AppendEmpty(t *testing.T) {
	pool := setupTestDB(t)

	assert.NoError(t, NewSessionLog(pool).Append(context.Background(), nil))
}
