// Package metrics holds the Prometheus collectors shared by the api, presigner and reclaimer binaries.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "commboard"

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// Attachment pipeline
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachments",
			Name:      "uploads_total",
			Help:      "Files that went through the upload pipeline, by category and outcome",
		},
		[]string{"category", "status"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachments",
			Name:      "upload_bytes_total",
			Help:      "Bytes transferred to the object store for committed files",
		},
		[]string{"category"},
	)

	ExternalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachments",
			Name:      "external_calls_total",
			Help:      "Calls to the issuing service and the object store",
		},
		[]string{"operation", "status"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "attachments",
			Name:      "external_call_duration_seconds",
			Help:      "Latency of calls to the issuing service and the object store",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 60},
		},
		[]string{"operation"},
	)

	// Reclaimer
	ReclaimRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaim",
			Name:      "runs_total",
			Help:      "Completed reclaim passes",
		},
	)

	ReclaimedObjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaim",
			Name:      "objects_total",
			Help:      "Tombstoned objects processed by the reclaimer, by outcome",
		},
		[]string{"status"},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpload records the outcome of one file in an upload.
func RecordUpload(category, status string, bytes int64) {
	UploadsTotal.WithLabelValues(category, status).Inc()
	if status == "success" {
		UploadBytesTotal.WithLabelValues(category).Add(float64(bytes))
	}
}

// RecordExternalCall records a presign, download-ticket or transfer call.
func RecordExternalCall(operation string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ExternalCallsTotal.WithLabelValues(operation, status).Inc()
	ExternalCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordReclaim records one reclaim pass.
func RecordReclaim(purged, failed int) {
	ReclaimRunsTotal.Inc()
	ReclaimedObjectsTotal.WithLabelValues("purged").Add(float64(purged))
	ReclaimedObjectsTotal.WithLabelValues("failed").Add(float64(failed))
}
