package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/playtime/internal/adapter/backend"
	"github.com/pscheid92/playtime/internal/adapter/metrics"
	"github.com/pscheid92/playtime/internal/adapter/roblox"
	"github.com/pscheid92/playtime/internal/app"
	"github.com/pscheid92/playtime/internal/domain"
	"github.com/pscheid92/playtime/internal/platform/config"
	"github.com/pscheid92/playtime/internal/platform/logging"
	"github.com/pscheid92/playtime/internal/platform/version"
)

// services is everything a command needs to run ticks. close releases it in reverse order.
type services struct {
	cfg      *config.Config
	registry *prometheus.Registry
	tracker  *app.Tracker
	backends *backend.Backends
	clock    clockwork.Clock

	logCloser io.Closer
}

func (r *services) close() {
	if r.backends != nil {
		r.backends.Close()
	}
	_ = r.logCloser.Close()
}

func setup(ctx context.Context) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	rt := &services{
		cfg:       cfg,
		registry:  metrics.NewRegistry(),
		clock:     clockwork.NewRealClock(),
		logCloser: logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile),
	}
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"version", version.Version,
		"entities", len(cfg.Entities()),
		"store", cfg.StoreBackend,
		"sink", cfg.SinkBackend,
	)

	breakers := metrics.NewBreakerMetrics(rt.registry)
	rt.backends, err = backend.Open(ctx, cfg, backend.Metrics{
		Store:    metrics.NewStoreMetrics(rt.registry),
		Redis:    metrics.NewRedisMetrics(rt.registry),
		Breakers: breakers,
	})
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to open backends: %w", err)
	}

	client := roblox.NewClient(roblox.Config{
		PresenceURL:       cfg.PresenceURL,
		GamesURL:          cfg.GamesURL,
		Timeout:           cfg.RobloxTimeout,
		RequestsPerSecond: cfg.RobloxRPS,
		Retry:             backend.RetryPolicy(cfg),
	}, metrics.NewUpstreamMetrics(rt.registry), breakers)

	// Both policies were validated by config.Load.
	presencePolicy, _ := domain.ParsePresencePolicy(cfg.PresencePolicy)
	switchPolicy, _ := domain.ParseSwitchPolicy(cfg.SwitchPolicy)

	rt.tracker = app.NewTracker(app.TrackerConfig{
		Entities:       cfg.Entities(),
		PresencePolicy: presencePolicy,
		SwitchPolicy:   switchPolicy,
		Concurrency:    cfg.Concurrency,
		Timeout:        cfg.TickTimeout,
	}, client, rt.backends.CachedNames(client, cfg.RedisKeyPrefix, cfg.NameCacheTTL), rt.backends.Store, rt.backends.Sink, rt.backends.Lock, rt.clock, metrics.NewTickMetrics(rt.registry))

	return rt, nil
}
