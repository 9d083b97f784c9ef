// Package metrics exposes Prometheus instruments for the leaderboard
// refresh job and rank lookups, registered on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "enfora"

// Refresh run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

type Metrics struct {
	Registry *prometheus.Registry

	RefreshRuns        *prometheus.CounterVec
	RefreshDuration    prometheus.Histogram
	RankedUsers        prometheus.Gauge
	FailedBatches      prometheus.Counter
	ProfileFallbacks   prometheus.Counter
	RankLookups        *prometheus.CounterVec
	AnalyticsRecompute prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "refresh_runs_total",
			Help:      "Leaderboard refresh runs by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of leaderboard refresh runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		RankedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "ranked_users",
			Help:      "Users ranked by the last successful refresh.",
		}),
		FailedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "failed_batches_total",
			Help:      "Rank entry batches that failed to write.",
		}),
		ProfileFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "profile_fallbacks_total",
			Help:      "Profile lookups replaced by the placeholder profile.",
		}),
		RankLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "rank_lookups_total",
			Help:      "User rank lookups by the tier that answered them.",
		}, []string{"source"}),
		AnalyticsRecompute: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "recomputes_total",
			Help:      "Analytics snapshots recomputed from tasks.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RefreshRuns,
		m.RefreshDuration,
		m.RankedUsers,
		m.FailedBatches,
		m.ProfileFallbacks,
		m.RankLookups,
		m.AnalyticsRecompute,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

var Module = fx.Provide(New)
