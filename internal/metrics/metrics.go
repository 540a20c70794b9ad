// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	DraftStoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_store_operations_total",
			Help: "Draft store operations by backend, operation and result",
		},
		[]string{"backend", "op", "result"},
	)

	DraftStoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draft_store_operation_duration_seconds",
			Help:    "Duration of draft store operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"backend", "op"},
	)

	DraftsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drafts_saved_total",
			Help: "Drafts saved by report type",
		},
		[]string{"report_type"},
	)

	DraftsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drafts_deleted_total",
			Help: "Drafts deleted by report type",
		},
		[]string{"report_type"},
	)

	PhotosIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photos_ingested_total",
			Help: "Photos added to drafts by detected source type",
		},
		[]string{"source"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_submissions_total",
			Help: "Report submissions by report type and result",
		},
		[]string{"report_type", "result"},
	)

	DraftEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_events_total",
			Help: "Draft lifecycle events by report type and event type",
		},
		[]string{"report_type", "event"},
	)

	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "report_submission_duration_seconds",
			Help: "Duration of report submissions including photo uploads",
		},
		[]string{"report_type"},
	)
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
