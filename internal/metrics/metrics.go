// Package metrics holds the Prometheus instrumentation shared by the sync
// and manager packages: counts and durations broken down by feed and
// group, in the same namespace/subsystem/promauto shape the persistence
// layer already uses for its own query metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GroupSyncTotal counts group sync attempts, labeled by feed, group,
	// and outcome ("success" or "failure").
	GroupSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anchore_engine",
			Subsystem: "feed_sync",
			Name:      "group_sync_total",
			Help:      "Total number of feed group sync attempts.",
		},
		[]string{"feed", "group", "status"},
	)

	// GroupSyncDuration records the wall-clock time spent syncing one
	// group, labeled by feed and group.
	GroupSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "anchore_engine",
			Subsystem: "feed_sync",
			Name:      "group_sync_duration_seconds",
			Help:      "Duration of a feed group sync, from FeedGroupSyncStarted to its result.",
		},
		[]string{"feed", "group"},
	)

	// UpdatedRecordsTotal counts records merged per group sync.
	UpdatedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anchore_engine",
			Subsystem: "feed_sync",
			Name:      "updated_records_total",
			Help:      "Total number of records merged across all group syncs.",
		},
		[]string{"feed", "group"},
	)

	// ManagerRunDuration records how long one Manager.Run call took across
	// all feeds.
	ManagerRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "anchore_engine",
			Subsystem: "feed_manager",
			Name:      "run_duration_seconds",
			Help:      "Duration of one Manager.Run invocation across all configured feeds.",
		},
	)
)
