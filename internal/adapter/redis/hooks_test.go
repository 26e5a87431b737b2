package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/playtime/internal/adapter/metrics"
)

func failing(context.Context, goredis.Cmder) error { return errors.New("connection refused") }
func succeeding(context.Context, goredis.Cmder) error { return nil }

func TestCircuitBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	ctx := context.Background()

	for range 10 {
		require.NoError(t, hook.ProcessHook(succeeding)(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_RedisNilIsNotAFailure(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	ctx := context.Background()
	missing := func(context.Context, goredis.Cmder) error { return goredis.Nil }

	for range 10 {
		err := hook.ProcessHook(missing)(ctx, goredis.NewStringCmd(ctx, "get", "key"))
		assert.ErrorIs(t, err, goredis.Nil)
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	breakers := metrics.NewBreakerMetrics(prometheus.NewRegistry())
	hook := NewCircuitBreakerHook(breakers)
	ctx := context.Background()

	for range 5 {
		err := hook.ProcessHook(failing)(ctx, goredis.NewStringCmd(ctx, "get", "key"))
		require.Error(t, err)
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	called := false
	err := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})(ctx, goredis.NewStatusCmd(ctx, "set", "key", "value"))

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, called, "Redis must not be called while the breaker is open")
	assert.Equal(t, 2.0, testutil.ToFloat64(breakers.State.WithLabelValues(breakerComponent)))

	pipeErr := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })(ctx, nil)
	assert.ErrorIs(t, pipeErr, circuitbreaker.ErrOpen)
}

func TestCircuitBreakerHook_RecoversAfterDelay(t *testing.T) {
	hook := newCircuitBreakerHook(nil, 50*time.Millisecond)
	ctx := context.Background()

	for range 5 {
		_ = hook.ProcessHook(failing)(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, hook.ProcessHook(succeeding)(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestMetricsHook_CountsOperations(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := NewMetricsHook(m)
	ctx := context.Background()

	_ = hook.ProcessHook(succeeding)(ctx, goredis.NewStringCmd(ctx, "hgetall", "k"))
	_ = hook.ProcessHook(failing)(ctx, goredis.NewStringCmd(ctx, "hgetall", "k"))
	_ = hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	_ = hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })(ctx, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("hgetall", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("hgetall", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("pipeline", "success")))
}
