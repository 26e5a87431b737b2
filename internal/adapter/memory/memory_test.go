package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/playtime/internal/domain"
)

func TestSessionStore_LoadEmpty(t *testing.T) {
	store := NewSessionStore()

	states, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestSessionStore_SaveReplacesAndCopies(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	in := map[domain.EntityID]domain.SessionState{
		1: {IsTracking: true, ActivityID: 42, ActivityName: "Adopt Me!", SessionStart: &start, SessionID: "sid"},
		2: {},
	}
	require.NoError(t, store.Save(ctx, in))

	in[3] = domain.SessionState{}
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2, "later mutation of the saved map must not leak into the store")
	assert.Equal(t, "Adopt Me!", got[1].ActivityName)

	got[1] = domain.SessionState{}
	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, again[1].IsTracking, "mutating a loaded map must not leak into the store")

	require.NoError(t, store.Save(ctx, map[domain.EntityID]domain.SessionState{2: {}}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSessionLog_AppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	log := NewSessionLog()

	require.NoError(t, log.Append(ctx, []domain.SessionRecord{{SessionID: "a"}}))
	require.NoError(t, log.Append(ctx, []domain.SessionRecord{{SessionID: "b"}, {SessionID: "c"}}))

	records := log.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0].SessionID)
	assert.Equal(t, "c", records[2].SessionID)
}

func TestTickLock_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	lock := NewTickLock()

	release, ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	release()

	release, ok, err = lock.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}
