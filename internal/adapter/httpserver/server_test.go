package httpserver

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/playtime/internal/adapter/metrics"
	"github.com/pscheid92/playtime/internal/domain"
	"github.com/pscheid92/playtime/internal/platform/config"
)

type mockTracker struct {
	report domain.TickReport
	err    error
	calls  atomic.Int32
}

func (m *mockTracker) RunTick(_ context.Context) (domain.TickReport, error) {
	m.calls.Add(1)
	return m.report, m.err
}

type testServerOption func(*testServerOptions)

type testServerOptions struct {
	healthChecks []HealthCheck
	registry     *prometheus.Registry
}

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.healthChecks = checks }
}

func withRegistry(reg *prometheus.Registry) testServerOption {
	return func(o *testServerOptions) { o.registry = reg }
}

func newTestServer(t *testing.T, tracker tickRunner, opts ...testServerOption) *Server {
	t.Helper()

	var o testServerOptions
	for _, opt := range opts {
		opt(&o)
	}

	var httpMetrics *metrics.HTTPMetrics
	if o.registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(o.registry)
	}

	cfg := &config.Config{Port: "0"}
	return NewServer(cfg, tracker, o.registry, httpMetrics, o.healthChecks)
}
