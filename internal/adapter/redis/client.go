// Package redis implements the session store and the cross-instance tick lock on Redis.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/playtime/internal/adapter/metrics"
)

// NewClient connects to Redis, installs the metrics and circuit breaker hooks, and verifies
// the connection with a PING. Metrics may be nil.
func NewClient(ctx context.Context, redisURL string, redisMetrics *metrics.RedisMetrics, breakers *metrics.BreakerMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if redisMetrics != nil {
		rdb.AddHook(NewMetricsHook(redisMetrics))
	}
	rdb.AddHook(NewCircuitBreakerHook(breakers))

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
