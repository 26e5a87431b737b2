package backend

import (
	"context"
	"time"

	"github.com/pscheid92/playtime/internal/adapter/metrics"
	"github.com/pscheid92/playtime/internal/domain"
)

// instrumentedStore records count and latency of every cache read and write.
type instrumentedStore struct {
	inner   domain.SessionStore
	backend string
	metrics *metrics.StoreMetrics
}

func (s *instrumentedStore) Load(ctx context.Context) (map[domain.EntityID]domain.SessionState, error) {
	start := time.Now()
	states, err := s.inner.Load(ctx)
	observe(s.metrics, s.backend, "load", start, err)
	return states, err
}

func (s *instrumentedStore) Save(ctx context.Context, states map[domain.EntityID]domain.SessionState) error {
	start := time.Now()
	err := s.inner.Save(ctx, states)
	observe(s.metrics, s.backend, "save", start, err)
	return err
}

type instrumentedSink struct {
	inner   domain.SessionSink
	backend string
	metrics *metrics.StoreMetrics
}

func (s *instrumentedSink) Append(ctx context.Context, records []domain.SessionRecord) error {
	start := time.Now()
	err := s.inner.Append(ctx, records)
	observe(s.metrics, s.backend, "append", start, err)
	return err
}

func observe(m *metrics.StoreMetrics, backend, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OpsTotal.WithLabelValues(backend, op, status).Inc()
	m.OpDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// instrumentStore wraps s unless m is nil.
func instrumentStore(s domain.SessionStore, backend string, m *metrics.StoreMetrics) domain.SessionStore {
	if m == nil {
		return s
	}
	return &instrumentedStore{inner: s, backend: backend, metrics: m}
}

func instrumentSink(s domain.SessionSink, backend string, m *metrics.StoreMetrics) domain.SessionSink {
	if m == nil {
		return s
	}
	return &instrumentedSink{inner: s, backend: backend, metrics: m}
}
