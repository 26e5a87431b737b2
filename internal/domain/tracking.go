package domain

import (
	"math"
	"strconv"
	"time"
)

// EntityID is a Roblox user ID.
type EntityID int64

func (id EntityID) String() string { return strconv.FormatInt(int64(id), 10) }

// ActivityID identifies a game (universe, root place or place). Zero means no identifiable activity.
type ActivityID int64

func (id ActivityID) String() string { return strconv.FormatInt(int64(id), 10) }

// TrackedEntity is a configured user whose presence is polled every tick.
type TrackedEntity struct {
	ID          EntityID
	DisplayName string
}

// PresenceSnapshot is the normalized presence of one entity at one tick.
type PresenceSnapshot struct {
	IsTracking   bool
	ActivityID   ActivityID
	ActivityName string
}

// SessionState is the cached per-entity state carried between ticks.
// The zero value is the state of an entity that has never been seen.
type SessionState struct {
	IsTracking   bool       `json:"is_tracking"`
	ActivityID   ActivityID `json:"activity_id"`
	ActivityName string     `json:"activity_name"`
	SessionStart *time.Time `json:"session_start"`
	SessionID    string     `json:"session_id,omitempty"`
}

// Open reports whether the state holds an open session.
func (s SessionState) Open() bool {
	return s.IsTracking && s.SessionStart != nil
}

// SessionRecord is one completed session. It is appended once and never mutated.
type SessionRecord struct {
	SessionID       string     `json:"session_id"`
	EntityID        EntityID   `json:"entity_id"`
	DisplayName     string     `json:"display_name"`
	ActivityID      ActivityID `json:"activity_id"`
	ActivityName    string     `json:"activity_name"`
	Start           time.Time  `json:"session_start"`
	End             time.Time  `json:"session_end"`
	DurationMinutes float64    `json:"duration_minutes"`
}

// DurationMinutes returns end-start in minutes rounded to two decimals.
func DurationMinutes(start, end time.Time) float64 {
	return math.Round(end.Sub(start).Minutes()*100) / 100
}

const (
	utcLayout   = "2006-01-02 15:04:05+00:00"
	localLayout = time.DateTime
)

// RecordColumns is the fixed column contract of every session log sink.
var RecordColumns = []string{
	"session_id",
	"display_name",
	"entity_id",
	"activity_name",
	"activity_id",
	"start_utc",
	"start_local",
	"end_utc",
	"end_local",
	"duration_minutes",
}

// Row renders the record in RecordColumns order. Local columns use loc.
func (r SessionRecord) Row(loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	return []any{
		r.SessionID,
		r.DisplayName,
		r.EntityID.String(),
		r.ActivityName,
		r.ActivityID.String(),
		r.Start.UTC().Format(utcLayout),
		r.Start.In(loc).Format(localLayout),
		r.End.UTC().Format(utcLayout),
		r.End.In(loc).Format(localLayout),
		r.DurationMinutes,
	}
}
