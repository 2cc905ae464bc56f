package bulk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rowsTotal counts affected rows of successful commits.
	rowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlbulk_rows_total",
			Help: "Total number of rows affected by committed bulk operations",
		},
		[]string{"operation"},
	)

	// commitDuration observes wall time of every commit, failed ones included.
	commitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlbulk_commit_duration_seconds",
			Help:    "Duration of bulk operation commits",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "strategy"},
	)

	// commitErrors counts failed commits by error kind.
	commitErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlbulk_commit_errors_total",
			Help: "Total number of failed bulk operation commits",
		},
		[]string{"operation", "kind"},
	)
)

func observe(op *Operation, rows int64, elapsed time.Duration, err error) {
	operation := op.kind.String()
	commitDuration.WithLabelValues(operation, op.strategy.String()).Observe(elapsed.Seconds())
	if err != nil {
		commitErrors.WithLabelValues(operation, kindLabel(err)).Inc()
		return
	}
	rowsTotal.WithLabelValues(operation).Add(float64(rows))
}
