package domain

import "context"

// SessionStore holds the cached SessionState of every entity.
// A tick performs one Load and one Save; Save replaces the whole map.
type SessionStore interface {
	Load(ctx context.Context) (map[EntityID]SessionState, error)
	Save(ctx context.Context, states map[EntityID]SessionState) error
}

// SessionSink is the append-only session log.
type SessionSink interface {
	Append(ctx context.Context, records []SessionRecord) error
}

// TickLock guarantees a single active tick. release must be called when ok is true.
type TickLock interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}
