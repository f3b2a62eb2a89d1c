package livesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_polls_total",
			Help: "Total number of poll cycles per list",
		},
		[]string{"list", "status"},
	)

	pollsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_polls_skipped_total",
			Help: "Poll ticks skipped because a previous poll was still in flight",
		},
		[]string{"list"},
	)

	pollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livesync_poll_duration_seconds",
			Help:    "Duration of poll fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"list"},
	)

	feedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_feed_events_total",
			Help: "Change-feed events received per list",
		},
		[]string{"list", "kind"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livesync_sessions_active",
			Help: "Number of running sync sessions",
		},
	)
)
