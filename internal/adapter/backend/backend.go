// Package backend opens the cache store, session sink and tick lock selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/pscheid92/playtime/internal/adapter/file"
	"github.com/pscheid92/playtime/internal/adapter/httpserver"
	"github.com/pscheid92/playtime/internal/adapter/memory"
	"github.com/pscheid92/playtime/internal/adapter/metrics"
	"github.com/pscheid92/playtime/internal/adapter/postgres"
	"github.com/pscheid92/playtime/internal/adapter/redis"
	sheetsadapter "github.com/pscheid92/playtime/internal/adapter/sheets"
	"github.com/pscheid92/playtime/internal/domain"
	"github.com/pscheid92/playtime/internal/platform/config"
	"github.com/pscheid92/playtime/internal/platform/retry"
)

// Metrics are the collectors handed to the backends. Any field may be nil.
type Metrics struct {
	Store    *metrics.StoreMetrics
	Redis    *metrics.RedisMetrics
	Breakers *metrics.BreakerMetrics
}

// Backends holds the opened ports plus the health checks and closers of the connections behind them.
type Backends struct {
	Store        domain.SessionStore
	Sink         domain.SessionSink
	Lock         domain.TickLock
	HealthChecks []httpserver.HealthCheck

	rdb     *goredis.Client
	closers []func()
}

// CachedNames puts the game-name cache in front of upstream. The cache is shared through Redis
// when REDIS_URL is set and process local otherwise. A non-positive ttl disables caching.
func (b *Backends) CachedNames(upstream domain.NameResolver, keyPrefix string, ttl time.Duration) domain.NameResolver {
	if ttl <= 0 {
		return upstream
	}
	if b.rdb == nil {
		return redis.NewNameCache(nil, upstream, keyPrefix, ttl)
	}
	return redis.NewNameCache(b.rdb, upstream, keyPrefix, ttl)
}

// Close releases all connections in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

type opener struct {
	cfg     *config.Config
	metrics Metrics
	b       *Backends

	rdb    *goredis.Client
	pool   *pgxpool.Pool
	sheets *sheets.Service
}

// Open connects every backend the configuration names. The Redis tick lock is used whenever
// REDIS_URL is set, so several instances can share one deployment; otherwise the lock is
// process local. opts are passed to the Sheets client.
func Open(ctx context.Context, cfg *config.Config, m Metrics, opts ...option.ClientOption) (*Backends, error) {
	o := &opener{cfg: cfg, metrics: m, b: &Backends{}}

	if err := o.open(ctx, opts); err != nil {
		o.b.Close()
		return nil, err
	}
	return o.b, nil
}

func (o *opener) open(ctx context.Context, opts []option.ClientOption) error {
	store, err := o.openStore(ctx, opts)
	if err != nil {
		return fmt.Errorf("open %s store: %w", o.cfg.StoreBackend, err)
	}
	o.b.Store = instrumentStore(store, o.cfg.StoreBackend, o.metrics.Store)

	sink, err := o.openSink(ctx, opts)
	if err != nil {
		return fmt.Errorf("open %s sink: %w", o.cfg.SinkBackend, err)
	}
	o.b.Sink = instrumentSink(sink, o.cfg.SinkBackend, o.metrics.Store)

	if o.cfg.RedisURL != "" {
		rdb, err := o.redis(ctx)
		if err != nil {
			return err
		}
		o.b.Lock = redis.NewTickLock(rdb, o.cfg.RedisKeyPrefix, o.cfg.TickLockTTL)
	} else {
		o.b.Lock = memory.NewTickLock()
	}

	slog.Info("Backends ready", "store", o.cfg.StoreBackend, "sink", o.cfg.SinkBackend, "distributed_lock", o.cfg.RedisURL != "")
	return nil
}

func (o *opener) openStore(ctx context.Context, opts []option.ClientOption) (domain.SessionStore, error) {
	switch o.cfg.StoreBackend {
	case config.BackendMemory:
		return memory.NewSessionStore(), nil
	case config.BackendFile:
		return file.NewSessionStore(o.cfg.StateFile), nil
	case config.BackendRedis:
		rdb, err := o.redis(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewSessionStore(rdb, o.cfg.RedisKeyPrefix), nil
	case config.BackendPostgres:
		pool, err := o.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewSessionStore(pool), nil
	case config.BackendSheets:
		svc, err := o.sheetsService(ctx, opts)
		if err != nil {
			return nil, err
		}
		return sheetsadapter.NewSessionStore(svc, o.sheetsConfig()), nil
	default:
		return nil, domain.ErrUnknownBackend
	}
}

func (o *opener) openSink(ctx context.Context, opts []option.ClientOption) (domain.SessionSink, error) {
	switch o.cfg.SinkBackend {
	case config.BackendMemory:
		return memory.NewSessionLog(), nil
	case config.BackendFile:
		return file.NewSessionLog(o.cfg.SessionLogFile), nil
	case config.BackendPostgres:
		pool, err := o.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewSessionLog(pool), nil
	case config.BackendSheets:
		svc, err := o.sheetsService(ctx, opts)
		if err != nil {
			return nil, err
		}
		return sheetsadapter.NewSessionLog(svc, o.sheetsConfig()), nil
	default:
		return nil, domain.ErrUnknownBackend
	}
}

// redis, postgres and sheetsService connect once and share the connection between store, sink and lock.

func (o *opener) redis(ctx context.Context) (*goredis.Client, error) {
	if o.rdb != nil {
		return o.rdb, nil
	}
	if o.cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	rdb, err := redis.NewClient(ctx, o.cfg.RedisURL, o.metrics.Redis, o.metrics.Breakers)
	if err != nil {
		return nil, err
	}
	o.rdb = rdb
	o.b.rdb = rdb
	o.b.closers = append(o.b.closers, func() { _ = rdb.Close() })
	o.b.HealthChecks = append(o.b.HealthChecks, httpserver.HealthCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	return rdb, nil
}

func (o *opener) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if o.pool != nil {
		return o.pool, nil
	}

	pool, err := postgres.Connect(ctx, o.cfg.DatabaseURL, o.metrics.Store)
	if err != nil {
		return nil, err
	}
	o.b.closers = append(o.b.closers, pool.Close)

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	o.pool = pool
	o.b.HealthChecks = append(o.b.HealthChecks, httpserver.HealthCheck{
		Name:  "postgres",
		Check: pool.Ping,
	})
	return pool, nil
}

func (o *opener) sheetsService(ctx context.Context, opts []option.ClientOption) (*sheets.Service, error) {
	if o.sheets != nil {
		return o.sheets, nil
	}

	creds, err := readCredentials(o.cfg.GoogleCredentials)
	if err != nil {
		return nil, err
	}
	svc, err := sheetsadapter.NewService(ctx, creds, opts...)
	if err != nil {
		return nil, err
	}
	o.sheets = svc
	return svc, nil
}

func (o *opener) sheetsConfig() sheetsadapter.Config {
	return sheetsadapter.Config{
		SpreadsheetID: o.cfg.SheetsSpreadsheetID,
		LogSheet:      o.cfg.SheetsLogSheet,
		CacheRange:    o.cfg.SheetsCacheRange,
		Location:      o.cfg.Location(),
		Retry:         RetryPolicy(o.cfg),
	}
}

// readCredentials accepts either the service account JSON itself or a path to it.
func readCredentials(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "{") {
		return []byte(value), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("read GOOGLE_CREDENTIALS file: %w", err)
	}
	return data, nil
}

// RetryPolicy builds the shared outbound retry policy from configuration.
func RetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:      cfg.RetryMaxAttempts,
		InitialBackoff:   cfg.RetryInitialBackoff,
		RateLimitBackoff: cfg.RetryRateLimitBackoff,
	}
}
