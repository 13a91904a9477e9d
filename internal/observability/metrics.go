package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	submissionsTotal     *prometheus.CounterVec
	gradingsTotal        *prometheus.CounterVec
	reconciliationsTotal *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	uploadsTotal         *prometheus.CounterVec
	uploadRejectedTotal  *prometheus.CounterVec
	uploadLatencySeconds prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eduflow_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_submissions_total",
			Help: "Assignment submissions processed, labelled by outcome.",
		}, []string{"outcome"})

		gradingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_gradings_total",
			Help: "Grading operations applied, labelled by outcome.",
		}, []string{"outcome"})

		reconciliationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_payment_reconciliations_total",
			Help: "Payment reconciliations, labelled by payment type and outcome.",
		}, []string{"type", "outcome"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_notifications_published_total",
			Help: "Notifications published, labelled by kind.",
		}, []string{"kind"})

		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_uploads_total",
			Help: "Submission file uploads accepted, labelled by detected type.",
		}, []string{"type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_uploads_rejected_total",
			Help: "Submission file uploads rejected, labelled by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduflow_upload_latency_seconds",
			Help:    "Latency distribution for submission file uploads.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			submissionsTotal,
			gradingsTotal,
			reconciliationsTotal,
			notificationsTotal,
			uploadsTotal,
			uploadRejectedTotal,
			uploadLatencySeconds,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SubmissionsTotal exposes the submission outcome counter.
func SubmissionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// GradingsTotal exposes the grading outcome counter.
func GradingsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingsTotal
}

// ReconciliationsTotal exposes the reconciliation outcome counter.
func ReconciliationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return reconciliationsTotal
}

// NotificationsPublishedTotal exposes the notification publish counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// UploadsTotal exposes the accepted upload counter.
func UploadsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsTotal
}

// UploadsRejected exposes the rejected upload counter.
func UploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}
