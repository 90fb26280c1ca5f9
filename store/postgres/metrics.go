package postgres

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anchore_engine",
			Subsystem: "store_postgres",
			Name:      "query_total",
			Help:      "Total number of queries issued by the postgres store, by query name.",
		},
		[]string{"query"},
	)
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "anchore_engine",
			Subsystem: "store_postgres",
			Name:      "query_duration_seconds",
			Help:      "Duration of queries issued by the postgres store, by query name.",
		},
		[]string{"query"},
	)
)

// observe records one query's duration and increments its counter. Callers
// defer observe(name, time.Now()).
func observe(name string, start time.Time) {
	queryTotal.WithLabelValues(name).Inc()
	queryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
