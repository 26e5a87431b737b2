package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/playtime/internal/domain"
)

// TransitionKind names the row of the transition table that matched.
type TransitionKind string

const (
	KindStart    TransitionKind = "start"
	KindEnd      TransitionKind = "end"
	KindSwitch   TransitionKind = "switch"
	KindContinue TransitionKind = "continue"
	KindIdle     TransitionKind = "idle"
	// KindReopen is the CONTINUE row applied to a cached session with no start.
	KindReopen TransitionKind = "reopen"
)

// Outcome is the result of one transition.
type Outcome struct {
	Next    domain.SessionState
	Emitted []domain.SessionRecord
	Kind    TransitionKind
	// Anomaly is non-nil when prev was corrupt. It wraps domain.ErrMissingSessionStart.
	Anomaly error
}

// Opened reports whether the transition opened a new session.
func (o Outcome) Opened() bool {
	return o.Kind == KindStart || o.Kind == KindSwitch || o.Kind == KindReopen
}

var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/pscheid92/playtime/session"))

// SessionID derives the session identifier from the entity and the session start.
// Equal inputs always yield the same ID; distinct entities never collide.
func SessionID(entity domain.EntityID, start time.Time) string {
	name := fmt.Sprintf("%d|%s", entity, start.UTC().Format(time.RFC3339Nano))
	return uuid.NewSHA1(sessionNamespace, []byte(name)).String()
}

// Engine applies the session transition table. It is stateless and safe for concurrent use.
type Engine struct {
	switchPolicy domain.SwitchPolicy
}

func NewEngine(switchPolicy domain.SwitchPolicy) *Engine {
	if switchPolicy == "" {
		switchPolicy = domain.SwitchByID
	}
	return &Engine{switchPolicy: switchPolicy}
}

// Transition computes the next state of entity given its cached state and the current snapshot.
// Rows are evaluated in order START, END, SWITCH, CONTINUE, IDLE; the first match wins.
func (e *Engine) Transition(entity domain.TrackedEntity, prev domain.SessionState, cur domain.PresenceSnapshot, now time.Time) Outcome {
	var anomaly error
	if prev.IsTracking && prev.SessionStart == nil {
		anomaly = fmt.Errorf("entity %d activity %d: %w", entity.ID, prev.ActivityID, domain.ErrMissingSessionStart)
	}

	switch {
	case !prev.IsTracking && cur.IsTracking:
		return Outcome{Next: open(entity, cur, now), Kind: KindStart}

	case prev.IsTracking && !cur.IsTracking:
		return Outcome{
			Next:    idle(cur),
			Emitted: closeSession(entity, prev, now),
			Kind:    KindEnd,
			Anomaly: anomaly,
		}

	case prev.IsTracking && cur.IsTracking && e.switched(prev, cur):
		return Outcome{
			Next:    open(entity, cur, now),
			Emitted: closeSession(entity, prev, now),
			Kind:    KindSwitch,
			Anomaly: anomaly,
		}

	case prev.IsTracking && cur.IsTracking:
		if anomaly != nil {
			// Nothing to inherit; reopen so the state is consistent again.
			return Outcome{Next: open(entity, cur, now), Kind: KindReopen, Anomaly: anomaly}
		}
		next := prev
		next.ActivityName = cur.ActivityName
		if next.SessionID == "" {
			next.SessionID = SessionID(entity.ID, *prev.SessionStart)
		}
		return Outcome{Next: next, Kind: KindContinue}

	default:
		return Outcome{Next: idle(cur), Kind: KindIdle}
	}
}

func (e *Engine) switched(prev domain.SessionState, cur domain.PresenceSnapshot) bool {
	byID := prev.ActivityID != cur.ActivityID
	if e.switchPolicy == domain.SwitchByIDOrName {
		return byID || prev.ActivityName != cur.ActivityName
	}
	return byID
}

func open(entity domain.TrackedEntity, cur domain.PresenceSnapshot, now time.Time) domain.SessionState {
	start := now
	return domain.SessionState{
		IsTracking:   true,
		ActivityID:   cur.ActivityID,
		ActivityName: cur.ActivityName,
		SessionStart: &start,
		SessionID:    SessionID(entity.ID, start),
	}
}

func idle(cur domain.PresenceSnapshot) domain.SessionState {
	return domain.SessionState{
		ActivityID:   cur.ActivityID,
		ActivityName: cur.ActivityName,
	}
}

// closeSession returns the record closing prev at now, or nothing when prev has no start.
func closeSession(entity domain.TrackedEntity, prev domain.SessionState, now time.Time) []domain.SessionRecord {
	if prev.SessionStart == nil {
		return nil
	}
	start := *prev.SessionStart
	id := prev.SessionID
	if id == "" {
		id = SessionID(entity.ID, start)
	}
	return []domain.SessionRecord{{
		SessionID:       id,
		EntityID:        entity.ID,
		DisplayName:     entity.DisplayName,
		ActivityID:      prev.ActivityID,
		ActivityName:    prev.ActivityName,
		Start:           start,
		End:             now,
		DurationMinutes: domain.DurationMinutes(start, now),
	}}
}
