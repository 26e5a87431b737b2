package metrics

import "github.com/prometheus/client_golang/prometheus"

// TickMetrics holds Prometheus metrics for the tracking tick.
type TickMetrics struct {
	TicksTotal        *prometheus.CounterVec
	TickDuration      prometheus.Histogram
	LastSuccess       prometheus.Gauge
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionMinutes    prometheus.Histogram
	EntityFailures    *prometheus.CounterVec
	CacheAnomalies    prometheus.Counter
}

// NewTickMetrics creates and registers tick metrics on the given registry.
func NewTickMetrics(reg prometheus.Registerer) *TickMetrics {
	m := &TickMetrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of tracking ticks, by result.",
		}, []string{"result"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of tracking ticks in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_tick_timestamp_seconds",
			Help:      "Unix time of the last tick that completed.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of sessions opened.",
		}),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "completed_total",
			Help:      "Total number of sessions closed and logged.",
		}),
		SessionMinutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "duration_minutes",
			Help:      "Duration of completed sessions in minutes.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 480},
		}),
		EntityFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_failures_total",
			Help:      "Total number of per-entity failures, by stage.",
		}, []string{"stage"}),
		CacheAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_anomalies_total",
			Help:      "Total number of cached states that were tracking without a session start.",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.LastSuccess,
		m.SessionsStarted,
		m.SessionsCompleted,
		m.SessionMinutes,
		m.EntityFailures,
		m.CacheAnomalies,
	)
	return m
}
