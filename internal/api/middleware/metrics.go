// Package middleware provides the Gin middleware used by the capture server:
// Prometheus instrumentation, request body decompression and connection tracking.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagepilot_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagepilot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagepilot_http_request_size_bytes",
			Help:    "Size of HTTP request bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		},
		[]string{"method", "path"},
	)

	httpResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagepilot_http_response_size_bytes",
			Help:    "Size of HTTP response bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		},
		[]string{"method", "path"},
	)

	httpRequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagepilot_http_request_errors_total",
			Help: "HTTP responses with status >= 400, by class",
		},
		[]string{"error_type", "path"},
	)

	activeConnections = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pagepilot_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
		func() float64 { return float64(ActiveConnections()) },
	)

	inFlight          atomic.Int64
	metricsRegistered atomic.Bool
	metricsEnabled    atomic.Bool
)

// ActiveConnections returns the number of requests currently being served.
func ActiveConnections() int64 {
	return inFlight.Load()
}

// ConnectionTrackerMiddleware counts each request while it is being served. The
// count backs the active-connections gauge and the health report.
func ConnectionTrackerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		inFlight.Add(1)
		defer inFlight.Add(-1)
		c.Next()
	}
}

// SetMetricsEnabled toggles Prometheus metrics collection.
func SetMetricsEnabled(enabled bool) {
	metricsEnabled.Store(enabled)
}

// IsMetricsEnabled reports whether metrics are enabled.
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// RegisterMetrics registers the HTTP collectors once.
func RegisterMetrics() {
	if !metricsRegistered.CompareAndSwap(false, true) {
		return
	}
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpRequestSizeBytes,
		httpResponseSizeBytes,
		httpRequestErrors,
		activeConnections,
	)
}

// PrometheusMiddleware records request count, latency and sizes per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsMetricsEnabled() {
			c.Next()
			return
		}
		RegisterMetrics()

		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		method := c.Request.Method
		start := time.Now()

		c.Next()

		// FullPath is only known after routing.
		path := normalizePath(c.FullPath(), c.Request.URL.Path)
		if c.Request.ContentLength > 0 {
			httpRequestSizeBytes.WithLabelValues(method, path).Observe(float64(c.Request.ContentLength))
		}

		status := c.Writer.Status()
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		httpRequestDurationSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			httpResponseSizeBytes.WithLabelValues(method, path).Observe(float64(size))
		}

		if status >= http.StatusBadRequest {
			errorType := "client_error"
			if status >= http.StatusInternalServerError {
				errorType = "server_error"
			}
			httpRequestErrors.WithLabelValues(errorType, path).Inc()
		}
	}
}

// normalizePath keeps label cardinality bounded: matched routes use their
// template (":id" stays literal) and unmatched paths collapse to one label.
func normalizePath(routeTemplate, rawPath string) string {
	if routeTemplate != "" {
		return routeTemplate
	}
	switch {
	case rawPath == "/" || rawPath == "/metrics":
		return rawPath
	case strings.HasPrefix(rawPath, "/api/"):
		return "/api/unmatched"
	default:
		return "unmatched"
	}
}

// MetricsHandler serves the Prometheus exposition format.
func MetricsHandler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		if !IsMetricsEnabled() {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		RegisterMetrics()
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
