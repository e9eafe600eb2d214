// Package metrics defines the Prometheus collectors for wrangle.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// S3 request metrics.
var (
	// S3RequestsTotal counts S3 requests by operation and status.
	S3RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrangle_s3_requests_total",
			Help: "S3 requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// S3RequestDuration observes S3 request latency in seconds.
	S3RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wrangle_s3_request_duration_seconds",
			Help:    "S3 request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Data movement metrics.
var (
	// ObjectsWrittenTotal counts objects uploaded by the dataset writer.
	ObjectsWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wrangle_objects_written_total",
			Help: "Objects written",
		},
	)

	// ObjectsDeletedTotal counts keys DeleteObjects reported as deleted.
	ObjectsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wrangle_objects_deleted_total",
			Help: "Objects deleted",
		},
	)

	// BytesWrittenTotal counts encoded bytes uploaded.
	BytesWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wrangle_bytes_written_total",
			Help: "Total bytes uploaded",
		},
	)

	// BytesReadTotal counts object bytes downloaded.
	BytesReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wrangle_bytes_read_total",
			Help: "Total bytes downloaded",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		S3RequestsTotal,
		S3RequestDuration,
		ObjectsWrittenTotal,
		ObjectsDeletedTotal,
		BytesWrittenTotal,
		BytesReadTotal,
	}
}

// Register registers all collectors with the default registry. It is safe to
// call multiple times; subsequent calls are no-ops.
//
// Collectors update whether or not they are registered, so library users
// that never call Register pay nothing beyond the counter increments.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(collectors()...)
	})
}

// ObserveRequest records one S3 request outcome.
func ObserveRequest(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	S3RequestsTotal.WithLabelValues(operation, status).Inc()
	S3RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Push sends the current values of all collectors to a Prometheus
// Pushgateway under the given job name. An empty url is a no-op.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	pusher := push.New(url, job)
	for _, c := range collectors() {
		pusher = pusher.Collector(c)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
