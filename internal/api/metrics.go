package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	vlEventsAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vl_ledger_events_appended_total",
		Help: "Total audit events appended to the ledger.",
	})

	vlAppendConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vl_ledger_append_conflicts_total",
		Help: "Total append attempts that lost the chain-head race.",
	})

	vlVerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vl_ledger_verify_total",
		Help: "Total chain verification runs by result.",
	}, []string{"result"})

	vlAnchorPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vl_anchor_publishes_total",
		Help: "Total anchor publish attempts by method and outcome.",
	}, []string{"method", "status"})

	vlAnchorCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vl_anchor_cycle_duration_seconds",
		Help:    "Anchoring cycle duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	vlRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vl_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	vlRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vl_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		vlRequestsTotal.WithLabelValues(method, path, status).Inc()
		vlRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAppend records a successful ledger append.
func RecordAppend() {
	vlEventsAppendedTotal.Inc()
}

// RecordAppendConflict records a lost chain-head race.
func RecordAppendConflict() {
	vlAppendConflictsTotal.Inc()
}

// RecordVerify records a verification run result.
func RecordVerify(valid bool) {
	if valid {
		vlVerifyTotal.WithLabelValues("valid").Inc()
	} else {
		vlVerifyTotal.WithLabelValues("broken").Inc()
	}
}

// RecordAnchorPublish records an anchor publish outcome for a backend.
func RecordAnchorPublish(method string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	vlAnchorPublishesTotal.WithLabelValues(method, status).Inc()
}

// ObserveAnchorCycle records an anchoring cycle duration.
func ObserveAnchorCycle(d time.Duration) {
	vlAnchorCycleDuration.Observe(d.Seconds())
}
