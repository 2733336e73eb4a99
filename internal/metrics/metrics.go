// Package metrics exposes per-run tracker counters to Prometheus.
package metrics

import (
	"time"

	"go-hiring-tracker/internal/diff"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracker"

var labels = []string{"portal", "category"}

// Metrics holds the tracker's collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	JobsCurrent     *prometheus.GaugeVec
	JobsNew         *prometheus.CounterVec
	JobsRemoved     *prometheus.CounterVec
	FetchAttempts   *prometheus.HistogramVec
	DegradedRuns    *prometheus.CounterVec
	CommitFailures  *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	LastSuccessTime *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		JobsCurrent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_current",
			Help:      "Listings seen in the latest run",
		}, labels),
		JobsNew: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_new_total",
			Help:      "Listings reported as new",
		}, labels),
		JobsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_removed_total",
			Help:      "Listings reported as removed",
		}, labels),
		FetchAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempts",
			Help:      "Fetch attempts needed per run",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}, labels),
		DegradedRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_runs_total",
			Help:      "Runs whose best batch missed the completeness threshold",
		}, labels),
		CommitFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_failures_total",
			Help:      "Runs whose snapshot commit failed",
		}, labels),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one portal run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		}, labels),
		LastSuccessTime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last recorded run",
		}, labels),
	}
}

// Observe records one finished run.
func (m *Metrics) Observe(res diff.Result, took time.Duration) {
	if m == nil {
		return
	}
	l := prometheus.Labels{"portal": res.Portal, "category": res.Category}

	m.JobsCurrent.With(l).Set(float64(len(res.Current)))
	// a first run has no baseline, and an unrecorded run is diffed again next time
	if !res.ColdStart && res.Recorded {
		m.JobsNew.With(l).Add(float64(len(res.New)))
		m.JobsRemoved.With(l).Add(float64(len(res.Removed)))
	}
	m.FetchAttempts.With(l).Observe(float64(res.Attempts))
	m.RunDuration.With(l).Observe(took.Seconds())
	if res.Degraded {
		m.DegradedRuns.With(l).Inc()
	}
	if res.CommitError != "" {
		m.CommitFailures.With(l).Inc()
	}
	if res.Recorded {
		m.LastSuccessTime.With(l).SetToCurrentTime()
	}
}
