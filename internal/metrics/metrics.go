// Package metrics registers the Prometheus counters and histograms the
// engine exposes, grounded in sigmaseven-cerberus's metrics/metrics.go
// promauto-based registration pattern: package-level vectors built once
// at import time, labeled by provider/target-type rather than
// per-target (which would blow up cardinality).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconforge",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache lookups that returned a fresh entry, by provider.",
	}, []string{"provider"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconforge",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache lookups that found no fresh entry, by provider.",
	}, []string{"provider"})

	RateLimitWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reconforge",
		Subsystem: "ratelimit",
		Name:      "wait_seconds",
		Help:      "Time spent waiting on a provider's token bucket before a fetch.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	ProviderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconforge",
		Subsystem: "provider",
		Name:      "outcomes_total",
		Help:      "Terminal outcome of each provider unit, by provider and outcome kind.",
	}, []string{"provider", "outcome"})

	ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reconforge",
		Subsystem: "provider",
		Name:      "duration_seconds",
		Help:      "Wall-clock time for a provider unit to resolve, including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reconforge",
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Wall-clock time to enrich a single target across all applicable providers.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ObserveRateLimitWait records how long a provider fetch waited on its
// token bucket before proceeding.
func ObserveRateLimitWait(provider string, waited time.Duration) {
	RateLimitWait.WithLabelValues(provider).Observe(waited.Seconds())
}

// ObserveProviderOutcome increments the outcome counter and records the
// unit's total duration in one call, since every provider unit
// resolves to exactly one terminal outcome.
func ObserveProviderOutcome(provider, outcome string, duration time.Duration) {
	ProviderOutcomes.WithLabelValues(provider, outcome).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
