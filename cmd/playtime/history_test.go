package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/playtime/internal/domain"
)

func TestPrintRecords(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	records := []domain.SessionRecord{{
		SessionID:       "4b0c7a1e",
		EntityID:        5120230728,
		DisplayName:     "jsadujgha",
		ActivityID:      383310974,
		ActivityName:    "Adopt Me!",
		Start:           start,
		End:             start.Add(90 * time.Minute),
		DurationMinutes: 90,
	}}

	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, records, time.UTC))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "session_id"))
	assert.Contains(t, lines[1], "Adopt Me!")
	assert.Contains(t, lines[1], "jsadujgha")
}

func TestHistoryCmd_RejectsBadID(t *testing.T) {
	cmd := historyCmd()
	cmd.SetArgs([]string{"not-a-number"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()

	assert.ErrorContains(t, err, "invalid user id")
}
