package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_runs_total",
			Help: "Number of finished runs by outcome.",
		}, []string{"outcome"})

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flotilla_run_seconds",
			Help:    "Wall clock duration of the execute phase of finished runs.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		})

	largeRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flotilla_large_jobs_running",
			Help: "Number of large jobs currently executing.",
		})

	backlogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flotilla_backlog_jobs",
			Help: "Number of jobs waiting in the backlog.",
		})
)
