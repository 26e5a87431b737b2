package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRecord_Row(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	rec := SessionRecord{
		SessionID:       "S1",
		EntityID:        1001,
		DisplayName:     "Alice",
		ActivityID:      42,
		ActivityName:    "Foo",
		Start:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		End:             time.Date(2025, 6, 1, 12, 10, 30, 0, time.UTC),
		DurationMinutes: 10.5,
	}

	row := rec.Row(kolkata)

	require.Len(t, row, len(RecordColumns))
	assert.Equal(t, []any{
		"S1",
		"Alice",
		"1001",
		"Foo",
		"42",
		"2025-06-01 12:00:00+00:00",
		"2025-06-01 17:30:00",
		"2025-06-01 12:10:30+00:00",
		"2025-06-01 17:40:30",
		10.5,
	}, row)
}

func TestSessionRecord_RowNilLocation(t *testing.T) {
	rec := SessionRecord{Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	row := rec.Row(nil)

	assert.Equal(t, "2025-01-01 00:00:00", row[6])
}

func TestDurationMinutes(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 10.0, DurationMinutes(start, start.Add(10*time.Minute)), 1e-9)
	assert.InDelta(t, 0.02, DurationMinutes(start, start.Add(1*time.Second)), 1e-9)
	assert.InDelta(t, 1.33, DurationMinutes(start, start.Add(80*time.Second)), 1e-9)
	assert.InDelta(t, 0.0, DurationMinutes(start, start), 1e-9)
}

func TestSessionState_Open(t *testing.T) {
	now := time.Now()

	assert.False(t, SessionState{}.Open())
	assert.False(t, SessionState{IsTracking: true}.Open())
	assert.True(t, SessionState{IsTracking: true, SessionStart: &now}.Open())
}

func TestParsePresencePolicy(t *testing.T) {
	p, err := ParsePresencePolicy("game-or-studio")
	require.NoError(t, err)
	assert.Equal(t, PresencePolicyGameOrStudio, p)

	_, err = ParsePresencePolicy("website")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestPresencePolicy_Active(t *testing.T) {
	tests := []struct {
		policy PresencePolicy
		active []PresenceType
	}{
		{PresencePolicyGame, []PresenceType{PresenceInGame}},
		{PresencePolicyGameOrStudio, []PresenceType{PresenceInGame, PresenceInStudio}},
		{PresencePolicyOnline, []PresenceType{PresenceOnline, PresenceInGame, PresenceInStudio}},
	}

	all := []PresenceType{PresenceOffline, PresenceOnline, PresenceInGame, PresenceInStudio, PresenceInvisible}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			for _, pt := range all {
				assert.Equal(t, contains(tt.active, pt), tt.policy.Active(pt), "presence %s", pt)
			}
		})
	}
}

func contains(types []PresenceType, t PresenceType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func TestParseSwitchPolicy(t *testing.T) {
	p, err := ParseSwitchPolicy("id-or-name")
	require.NoError(t, err)
	assert.Equal(t, SwitchByIDOrName, p)

	_, err = ParseSwitchPolicy("name")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestTickReport_String(t *testing.T) {
	r := TickReport{Checked: 5, Started: 2, Completed: 3, Failed: 1}

	assert.Equal(t, "SUCCESS: Checked 5 friends. 5 new events logged.", r.String())
}
