package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/playtime/internal/adapter/metrics"
	"github.com/pscheid92/playtime/internal/domain"
	"github.com/pscheid92/playtime/internal/platform/correlation"
	"github.com/pscheid92/playtime/internal/session"
)

const (
	defaultConcurrency = 8
	defaultTickTimeout = 60 * time.Second

	stageFetch   = "fetch"
	stageMissing = "missing"
	stageResolve = "resolve"
	stageSink    = "sink"
	stageSave    = "save"
)

type TrackerConfig struct {
	Entities       []domain.TrackedEntity
	PresencePolicy domain.PresencePolicy
	SwitchPolicy   domain.SwitchPolicy
	Concurrency    int
	Timeout        time.Duration
}

// Tracker runs ticks: one cache read, one presence fetch, one name lookup, per-entity
// transitions in parallel, sink appends, and one cache write.
type Tracker struct {
	entities    []domain.TrackedEntity
	policy      domain.PresencePolicy
	engine      *session.Engine
	concurrency int
	timeout     time.Duration

	presence domain.PresenceSource
	names    domain.NameResolver
	store    domain.SessionStore
	sink     domain.SessionSink
	lock     domain.TickLock
	clock    clockwork.Clock
	metrics  *metrics.TickMetrics

	tickGroup singleflight.Group
}

func NewTracker(cfg TrackerConfig, presence domain.PresenceSource, names domain.NameResolver, store domain.SessionStore, sink domain.SessionSink, lock domain.TickLock, clock clockwork.Clock, m *metrics.TickMetrics) *Tracker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTickTimeout
	}
	if cfg.PresencePolicy == "" {
		cfg.PresencePolicy = domain.PresencePolicyOnline
	}

	return &Tracker{
		entities:    cfg.Entities,
		policy:      cfg.PresencePolicy,
		engine:      session.NewEngine(cfg.SwitchPolicy),
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		presence:    presence,
		names:       names,
		store:       store,
		sink:        sink,
		lock:        lock,
		clock:       clock,
		metrics:     m,
	}
}

// RunTick runs one tick. Concurrent callers in this process share a single tick and its result;
// a tick held by another process yields domain.ErrTickInProgress.
func (t *Tracker) RunTick(ctx context.Context) (domain.TickReport, error) {
	v, err, _ := t.tickGroup.Do("tick", func() (any, error) {
		// Detached so one caller going away does not abort the tick for the others.
		tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()
		return t.runLocked(tickCtx)
	})
	report, _ := v.(domain.TickReport)
	return report, err
}

func (t *Tracker) runLocked(ctx context.Context) (domain.TickReport, error) {
	release, ok, err := t.lock.TryAcquire(ctx)
	if err != nil {
		t.metrics.TicksTotal.WithLabelValues("lock_error").Inc()
		return domain.TickReport{}, fmt.Errorf("acquire tick lock: %w", err)
	}
	if !ok {
		t.metrics.TicksTotal.WithLabelValues("skipped").Inc()
		return domain.TickReport{}, domain.ErrTickInProgress
	}
	defer release()

	ctx = correlation.WithTickID(ctx, correlation.NewTickID())
	start := t.clock.Now()

	report, err := t.tick(ctx)

	t.metrics.TickDuration.Observe(t.clock.Since(start).Seconds())
	if err != nil {
		t.metrics.TicksTotal.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "Tick failed", "error", err)
		return report, err
	}

	t.metrics.TicksTotal.WithLabelValues("success").Inc()
	t.metrics.LastSuccess.Set(float64(t.clock.Now().Unix()))
	slog.InfoContext(ctx, "Tick completed",
		"checked", report.Checked,
		"started", report.Started,
		"completed", report.Completed,
		"failed", report.Failed,
		"anomalies", report.Anomalies,
	)
	return report, nil
}

// entityResult is the outcome for one entity. skipped entities keep their cached state.
type entityResult struct {
	outcome session.Outcome
	skipped bool
}

func (t *Tracker) tick(ctx context.Context) (domain.TickReport, error) {
	var report domain.TickReport
	now := t.clock.Now().UTC()

	states, err := t.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load session cache: %w", err)
	}

	ids := make([]domain.EntityID, len(t.entities))
	for i, e := range t.entities {
		ids[i] = e.ID
	}

	raws, err := t.presence.FetchPresence(ctx, ids)
	if err != nil {
		report.Failed = len(t.entities)
		t.metrics.EntityFailures.WithLabelValues(stageFetch).Add(float64(len(t.entities)))
		return report, fmt.Errorf("fetch presence: %w", err)
	}

	byID := make(map[domain.EntityID]domain.RawPresence, len(raws))
	for _, raw := range raws {
		byID[raw.UserID] = raw
	}

	names := t.resolveNames(ctx, raws)

	results := make([]entityResult, len(t.entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, entity := range t.entities {
		raw, found := byID[entity.ID]
		prev := states[entity.ID]
		g.Go(func() error {
			results[i] = t.processEntity(gctx, entity, prev, raw, found, names, now)
			return nil
		})
	}
	_ = g.Wait()

	next := make(map[domain.EntityID]domain.SessionState, len(states)+len(t.entities))
	maps.Copy(next, states)
	for i, entity := range t.entities {
		res := results[i]
		if res.skipped {
			report.Failed++
			continue
		}
		report.Checked++
		if res.outcome.Opened() {
			report.Started++
		}
		report.Completed += len(res.outcome.Emitted)
		if res.outcome.Anomaly != nil {
			report.Anomalies++
		}
		next[entity.ID] = res.outcome.Next
	}

	if err := t.store.Save(ctx, next); err != nil {
		t.metrics.EntityFailures.WithLabelValues(stageSave).Inc()
		slog.ErrorContext(ctx, "Failed to save session cache", "error", err, "states", next)
	}

	return report, nil
}

func (t *Tracker) resolveNames(ctx context.Context, raws []domain.RawPresence) map[domain.ActivityID]string {
	universeIDs := session.UniverseIDs(raws, t.policy)
	if len(universeIDs) == 0 {
		return nil
	}

	names, err := t.names.ResolveNames(ctx, universeIDs)
	if err != nil {
		t.metrics.EntityFailures.WithLabelValues(stageResolve).Inc()
		slog.WarnContext(ctx, "Game names unresolved, falling back to location text", "universe_ids", len(universeIDs), "resolved", len(names), "error", err)
	}
	return names
}

func (t *Tracker) processEntity(ctx context.Context, entity domain.TrackedEntity, prev domain.SessionState, raw domain.RawPresence, found bool, names map[domain.ActivityID]string, now time.Time) entityResult {
	log := slog.With("entity_id", entity.ID, "display_name", entity.DisplayName)

	if !found {
		t.metrics.EntityFailures.WithLabelValues(stageMissing).Inc()
		log.WarnContext(ctx, "Presence missing from response, keeping cached state")
		return entityResult{skipped: true}
	}

	snap := session.Normalize(raw, names, t.policy)
	out := t.engine.Transition(entity, prev, snap, now)

	log.DebugContext(ctx, "Presence compared", "cached", prev.ActivityName, "current", snap.ActivityName, "presence_type", raw.PresenceType.String(), "transition", out.Kind)

	if out.Anomaly != nil {
		t.metrics.CacheAnomalies.Inc()
		log.ErrorContext(ctx, "Cached state was tracking without a session start, session dropped", "error", out.Anomaly)
	}
	if out.Opened() {
		t.metrics.SessionsStarted.Inc()
		log.InfoContext(ctx, "Session started", "session_id", out.Next.SessionID, "activity_id", out.Next.ActivityID, "activity_name", out.Next.ActivityName)
	}

	if len(out.Emitted) > 0 {
		for _, rec := range out.Emitted {
			t.metrics.SessionsCompleted.Inc()
			t.metrics.SessionMinutes.Observe(rec.DurationMinutes)
			log.InfoContext(ctx, "Session completed", "session_id", rec.SessionID, "activity_name", rec.ActivityName, "duration_minutes", rec.DurationMinutes)
		}
		if err := t.sink.Append(ctx, out.Emitted); err != nil {
			// The cache still advances so the session is not closed again later with a wrong end time.
			t.metrics.EntityFailures.WithLabelValues(stageSink).Inc()
			log.ErrorContext(ctx, "Failed to append session records", "error", err, "records", out.Emitted)
		}
	}

	return entityResult{outcome: out}
}

// IsTickInProgress reports whether err means another tick holds the lock.
func IsTickInProgress(err error) bool {
	return errors.Is(err, domain.ErrTickInProgress)
}
