// Package metrics exposes the prometheus collectors for the monetization
// core: copy ingest outcomes, payout batch runs, and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	copyEvents *prometheus.CounterVec

	payoutRecords   *prometheus.CounterVec
	transferResults *prometheus.CounterVec

	jobRuns     *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		copyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmarket_copy_events_total",
			Help: "Copy attempts by outcome.",
		}, []string{"outcome"}),
		payoutRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmarket_payout_records_total",
			Help: "Payout records touched by aggregation, by action.",
		}, []string{"action"}),
		transferResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmarket_transfers_total",
			Help: "Disbursement transfer attempts by result.",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmarket_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmarket_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowmarket_scheduler_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmarket_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowmarket_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.copyEvents,
			m.payoutRecords,
			m.transferResults,
			m.jobRuns,
			m.jobErrors,
			m.jobDuration,
			m.httpRequests,
			m.httpDuration,
		)
	}
	return m
}

const (
	CopyOutcomeQualifying = "qualifying"
	CopyOutcomeCapped     = "capped"
	CopyOutcomeDuplicate  = "duplicate"
	CopyOutcomeFree       = "free"
)

func (m *Metrics) IncCopyEvent(outcome string) {
	if m == nil {
		return
	}
	m.copyEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPayoutRecord(action string) {
	if m == nil {
		return
	}
	m.payoutRecords.WithLabelValues(action).Inc()
}

func (m *Metrics) IncTransfer(result string) {
	if m == nil {
		return
	}
	m.transferResults.WithLabelValues(result).Inc()
}

func (m *Metrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
