package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics
var (
	EmailsScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_emails_created_total",
			Help: "Total number of scheduled emails created",
		},
		[]string{"email_type"},
	)

	EmailsCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_emails_cancelled_total",
			Help: "Total number of scheduled emails cancelled by producers",
		},
		[]string{"reason"}, // payment_completed, booking_cancelled
	)
)

// Dispatcher metrics
var (
	DispatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_runs_total",
			Help: "Total number of dispatcher runs by result",
		},
		[]string{"result"}, // completed, locked, error
	)

	DispatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Total number of delivery attempts by outcome",
		},
		[]string{"outcome"}, // sent, retrying, failed, conflict
	)

	DispatchSendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_send_errors_total",
			Help: "Total number of mail send errors by classification",
		},
		[]string{"class"}, // permanent, transient
	)

	DispatchBatchSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_batch_size",
			Help: "Number of records selected by the most recent dispatcher run",
		},
	)

	DispatchRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_run_duration_seconds",
			Help:    "Duration of dispatcher runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_send_duration_seconds",
			Help:    "Duration of individual mail send calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIAuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_auth_failures_total",
			Help: "Total number of API authentication failures by reason",
		},
		[]string{"reason"},
	)
)

// Database metrics
var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"query"},
	)
)
