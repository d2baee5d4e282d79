package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_scanner_ticks_total",
		Help: "Total number of scanner ticks by outcome.",
	}, []string{"outcome"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recovery_scanner_tick_duration_seconds",
		Help:    "Duration of a full scanner tick.",
		Buckets: prometheus.DefBuckets,
	})

	remindersRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_reminders_recorded_total",
		Help: "Total number of reminder messages recorded, by delivery status.",
	}, []string{"status"})

	usersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_users_skipped_total",
		Help: "Users skipped during a tick, by reason.",
	}, []string{"reason"})
)
