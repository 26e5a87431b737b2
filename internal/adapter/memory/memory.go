// Package memory provides in-process implementations of the session store, the session sink,
// and the tick lock. They back single-instance deployments and tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/pscheid92/playtime/internal/domain"
)

var (
	_ domain.SessionStore = (*SessionStore)(nil)
	_ domain.SessionSink  = (*SessionLog)(nil)
	_ domain.TickLock     = (*TickLock)(nil)
)

type SessionStore struct {
	mu     sync.RWMutex
	states map[domain.EntityID]domain.SessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{states: make(map[domain.EntityID]domain.SessionState)}
}

// Load returns a copy of the cached states.
func (s *SessionStore) Load(_ context.Context) (map[domain.EntityID]domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.states), nil
}

func (s *SessionStore) Save(_ context.Context, states map[domain.EntityID]domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = maps.Clone(states)
	if s.states == nil {
		s.states = make(map[domain.EntityID]domain.SessionState)
	}
	return nil
}

// SessionLog keeps appended records in order.
type SessionLog struct {
	mu      sync.Mutex
	records []domain.SessionRecord
}

func NewSessionLog() *SessionLog {
	return &SessionLog{}
}

func (l *SessionLog) Append(_ context.Context, records []domain.SessionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, records...)
	return nil
}

// Records returns a snapshot of everything appended so far.
func (l *SessionLog) Records() []domain.SessionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records)
}

// TickLock is a non-blocking process-local mutex.
type TickLock struct {
	mu sync.Mutex
}

func NewTickLock() *TickLock {
	return &TickLock{}
}

func (l *TickLock) TryAcquire(_ context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
