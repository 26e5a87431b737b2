package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/playtime/internal/domain"
)

var _ domain.NameResolver = (*NameCache)(nil)

// NameCache puts an in-process cache and an optional Redis cache in front of a NameResolver.
// Game names change rarely, so most ticks resolve every universe without calling the games API.
// Only resolved names are cached; a failed lookup is retried on the next tick.
type NameCache struct {
	rdb      goredis.Cmdable
	upstream domain.NameResolver
	prefix   string
	ttl      time.Duration
	mem      *memoryCache
}

// NewNameCache wraps upstream. rdb may be nil, in which case only the in-process layer is used.
func NewNameCache(rdb goredis.Cmdable, upstream domain.NameResolver, keyPrefix string, ttl time.Duration) *NameCache {
	return &NameCache{
		rdb:      rdb,
		upstream: upstream,
		prefix:   keyPrefix,
		ttl:      ttl,
		mem:      newMemoryCache(ttl),
	}
}

func (c *NameCache) ResolveNames(ctx context.Context, ids []domain.ActivityID) (map[domain.ActivityID]string, error) {
	if evicted := c.mem.evictExpired(); evicted > 0 {
		slog.DebugContext(ctx, "Evicted expired game names", "count", evicted, "remaining", c.mem.size())
	}

	names := make(map[domain.ActivityID]string, len(ids))

	// Layer 1: in-process cache
	var missing []domain.ActivityID
	for _, id := range ids {
		if name, ok := c.mem.get(id); ok {
			names[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names, nil
	}

	// Layer 2: Redis
	missing = c.readShared(ctx, missing, names)
	if len(missing) == 0 {
		return names, nil
	}

	// Layer 3: games API
	resolved, err := c.upstream.ResolveNames(ctx, missing)
	for _, id := range missing {
		if name, ok := resolved[id]; ok {
			names[id] = name
			c.mem.set(id, name)
		}
	}
	c.writeShared(ctx, resolved)

	if err != nil {
		return names, fmt.Errorf("resolve uncached game names: %w", err)
	}
	return names, nil
}

// readShared fills names from Redis and returns the ids still unresolved. Redis errors degrade to misses.
func (c *NameCache) readShared(ctx context.Context, ids []domain.ActivityID, names map[domain.ActivityID]string) []domain.ActivityID {
	if c.rdb == nil {
		return ids
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.WarnContext(ctx, "Redis game name cache MGET failed", "error", err)
		}
		return ids
	}

	var missing []domain.ActivityID
	for i, id := range ids {
		name, ok := values[i].(string)
		if !ok || name == "" {
			missing = append(missing, id)
			continue
		}
		names[id] = name
		c.mem.set(id, name)
	}
	return missing
}

func (c *NameCache) writeShared(ctx context.Context, resolved map[domain.ActivityID]string) {
	if c.rdb == nil || len(resolved) == 0 {
		return
	}

	_, err := c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, id := range slices.Sorted(maps.Keys(resolved)) {
			pipe.Set(ctx, c.key(id), resolved[id], c.ttl)
		}
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to populate Redis game name cache", "count", len(resolved), "error", err)
	}
}

func (c *NameCache) key(id domain.ActivityID) string {
	return c.prefix + ":game_name:" + id.String()
}

// memoryCache is an in-process name cache with TTL-based expiry.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[domain.ActivityID]memoryCacheEntry
	ttl     time.Duration
}

type memoryCacheEntry struct {
	name      string
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{
		entries: make(map[domain.ActivityID]memoryCacheEntry),
		ttl:     ttl,
	}
}

func (c *memoryCache) get(id domain.ActivityID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.name, true
}

func (c *memoryCache) set(id domain.ActivityID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = memoryCacheEntry{name: name, expiresAt: time.Now().Add(c.ttl)}
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}
