package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/playtime/internal/domain"
)

const releaseTimeout = 5 * time.Second

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = goredis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var _ domain.TickLock = (*TickLock)(nil)

// TickLock is a SET NX lease shared by every instance pointing at the same Redis.
// The TTL bounds how long a crashed holder blocks other instances.
type TickLock struct {
	rdb goredis.Cmdable
	key string
	ttl time.Duration
}

func NewTickLock(rdb goredis.Cmdable, keyPrefix string, ttl time.Duration) *TickLock {
	return &TickLock{rdb: rdb, key: keyPrefix + ":tick:lock", ttl: ttl}
}

func (l *TickLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire tick lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{l.key}, token).Err(); err != nil {
			slog.WarnContext(releaseCtx, "Failed to release tick lock, it expires on its own", "key", l.key, "error", err)
		}
	}
	return release, true, nil
}
