package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/playtime/internal/domain"
)

var _ domain.SessionStore = (*SessionStore)(nil)

// SessionStore keeps the cache in one hash: field = entity ID, value = JSON SessionState.
type SessionStore struct {
	rdb goredis.Cmdable
	key string
}

func NewSessionStore(rdb goredis.Cmdable, keyPrefix string) *SessionStore {
	return &SessionStore{rdb: rdb, key: keyPrefix + ":sessions"}
}

func (s *SessionStore) Load(ctx context.Context) (map[domain.EntityID]domain.SessionState, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session cache: %w", err)
	}

	states := make(map[domain.EntityID]domain.SessionState, len(fields))
	for field, value := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id %q in %s: %w", field, s.key, err)
		}
		var st domain.SessionState
		if err := json.Unmarshal([]byte(value), &st); err != nil {
			return nil, fmt.Errorf("invalid session state for entity %s: %w", field, err)
		}
		states[domain.EntityID(id)] = st
	}
	return states, nil
}

// Save replaces the hash in one MULTI/EXEC so readers never see a partial cache.
func (s *SessionStore) Save(ctx context.Context, states map[domain.EntityID]domain.SessionState) error {
	values := make([]any, 0, len(states)*2)
	for id, st := range states {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to encode state for entity %d: %w", id, err)
		}
		values = append(values, id.String(), string(data))
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session cache: %w", err)
	}
	return nil
}
