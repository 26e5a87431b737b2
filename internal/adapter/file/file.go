// Package file persists the session cache as a JSON document and the session log as JSON lines.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pscheid92/playtime/internal/domain"
	"github.com/pscheid92/playtime/internal/platform/atomicfile"
)

const (
	stateFileMode = 0o644
	logFileMode   = 0o644
)

var (
	_ domain.SessionStore = (*SessionStore)(nil)
	_ domain.SessionSink  = (*SessionLog)(nil)
)

// SessionStore keeps the cache in a single JSON object keyed by entity ID.
// Writes replace the file atomically.
type SessionStore struct {
	path string
	mu   sync.Mutex
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load returns an empty map when the file does not exist yet.
func (s *SessionStore) Load(_ context.Context) (map[domain.EntityID]domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[domain.EntityID]domain.SessionState), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	states := make(map[domain.EntityID]domain.SessionState)
	if len(data) == 0 {
		return states, nil
	}
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", s.path, err)
	}
	return states, nil
}

func (s *SessionStore) Save(_ context.Context, states map[domain.EntityID]domain.SessionState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("encode states: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicfile.WriteFile(s.path, data, stateFileMode); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// SessionLog appends one JSON object per completed session.
type SessionLog struct {
	path string
	mu   sync.Mutex
}

func NewSessionLog(path string) *SessionLog {
	return &SessionLog{path: path}
}

func (l *SessionLog) Append(_ context.Context, records []domain.SessionRecord) error {
	if len(records) == 0 {
		return nil
	}

	var buf []byte
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.SessionID, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("append session log: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync session log: %w", err)
	}
	return f.Close()
}
