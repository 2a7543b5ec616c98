// Package metrics exposes the Prometheus collectors of the tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts range count cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_cache_lookups_total",
		Help: "Total number of range count cache lookups",
	}, []string{"result"})

	// StoreQueries counts record store queries by operation and status.
	StoreQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_store_queries_total",
		Help: "Total number of record store queries",
	}, []string{"operation", "status"})

	// StoreQueryDuration measures record store query latency.
	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_store_query_duration_seconds",
		Help:    "Record store query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// SeriesBuckets counts time series buckets computed by unit.
	SeriesBuckets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_series_buckets_total",
		Help: "Total number of time series buckets computed",
	}, []string{"unit"})

	// ViewsRecorded counts persisted site views.
	ViewsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_views_recorded_total",
		Help: "Total number of site views recorded",
	})

	// JobRuns counts background job runs by job and status.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_job_runs_total",
		Help: "Total number of background job runs",
	}, []string{"job", "status"})
)

// Prometheus records cruncher activity on the package collectors.
type Prometheus struct{}

func (Prometheus) CacheHit()   { CacheLookups.WithLabelValues("hit").Inc() }
func (Prometheus) CacheMiss()  { CacheLookups.WithLabelValues("miss").Inc() }
func (Prometheus) CacheError() { CacheLookups.WithLabelValues("error").Inc() }

func (Prometheus) StoreQuery(op string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreQueries.WithLabelValues(op, status).Inc()
	StoreQueryDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (Prometheus) Buckets(unit string, n int) {
	SeriesBuckets.WithLabelValues(unit).Add(float64(n))
}

// JobRun records the outcome of one background job run.
func JobRun(job string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	JobRuns.WithLabelValues(job, status).Inc()
}
