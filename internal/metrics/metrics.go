// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "agentlinker"

// Registry is the registry served by the /metrics endpoint. It is separate from
// the default registry so tests can construct apps repeatedly.
var Registry = prometheus.NewRegistry()

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	EventsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_events_recorded_total",
		Help:      "Analytics events stored, by event type and ingestion path.",
	}, []string{"event_type", "path"})

	BeaconsDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_beacons_discarded_total",
		Help:      "Public beacons acknowledged but not stored, by reason.",
	}, []string{"reason"})

	ReportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analytics_report_duration_seconds",
		Help:      "Time spent building an analytics report.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	ReportFetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_report_fetch_failures_total",
		Help:      "Report input fetches that failed, by source.",
	}, []string{"source"})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Agent notifications by kind and outcome.",
	}, []string{"kind", "outcome"})

	NotifierBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notifier_breaker_open",
		Help:      "1 while the notification circuit breaker is open.",
	})

	JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Background job executions by job and outcome.",
	}, []string{"job", "outcome"})

	RowsPurged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_rows_affected_total",
		Help:      "Rows deleted or updated by background jobs.",
	}, []string{"job"})
)

func init() {
	Registry.MustRegister(
		HTTPRequests,
		HTTPDuration,
		EventsRecorded,
		BeaconsDiscarded,
		ReportDuration,
		ReportFetchFailures,
		Notifications,
		NotifierBreakerState,
		JobRuns,
		RowsPurged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(route, method string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func ObserveJob(job string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	JobRuns.WithLabelValues(job, outcome).Inc()
}
