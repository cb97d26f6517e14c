package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login attempts by provider
	LoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_login_total",
			Help: "Total number of login attempts by provider",
		},
		[]string{"provider"},
	)

	// Reconciler outcomes
	LoginOutcomeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_login_outcome_total",
			Help: "Total number of sign-in reconciliation outcomes",
		},
		[]string{"outcome"}, // "allow", "allow_degraded", "account_not_linked", "user_not_found"
	)

	// Degraded allows by reason. Alert on this: every increment is a
	// sign-in that bypassed part of the identity policy.
	DegradedLoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_login_degraded_total",
			Help: "Total number of sign-ins allowed despite a reconciliation failure",
		},
		[]string{"reason"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_auth_errors_total",
			Help: "Total number of authentication and authorization errors",
		},
		[]string{"type"}, // "missing_token", "invalid_token", "forbidden", etc.
	)

	// Grant operation counter
	GrantOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_grant_operations_total",
			Help: "Total number of access grant operations",
		},
		[]string{"operation"}, // "replace_for_user", "replace_for_customer", "remove_user"
	)

	// Upstream request counter
	UpstreamRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_upstream_requests_total",
			Help: "Total number of requests to upstream services",
		},
		[]string{"upstream", "status"}, // upstream is "idp" or "rental_api"
	)

	// Background job runs
	JobRunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_job_runs_total",
			Help: "Total number of background job runs",
		},
		[]string{"job", "result"}, // result is "success" or "error"
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Active sessions (issued minus signed out, resets on restart)
	ActiveSessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_active_sessions",
			Help: "Number of currently active portal sessions",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portal_info",
			Help: "Information about the portal service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(LoginOutcomeCounter)
	prometheus.MustRegister(DegradedLoginCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(GrantOperationCounter)
	prometheus.MustRegister(UpstreamRequestCounter)
	prometheus.MustRegister(JobRunCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(ActiveSessionsGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordLogin records a login attempt for a provider
func RecordLogin(provider string) {
	LoginCounter.With(prometheus.Labels{"provider": provider}).Inc()
}

// RecordLoginOutcome records a reconciliation outcome
func RecordLoginOutcome(outcome string) {
	LoginOutcomeCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordDegradedLogin records a sign-in that was allowed despite a failure
func RecordDegradedLogin(reason string) {
	DegradedLoginCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordGrantOperation records an access grant operation
func RecordGrantOperation(operation string) {
	GrantOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordUpstreamRequest records a request to an upstream service
func RecordUpstreamRequest(upstream, status string) {
	UpstreamRequestCounter.With(prometheus.Labels{"upstream": upstream, "status": status}).Inc()
}

// RecordJobRun records a background job run
func RecordJobRun(job, result string) {
	JobRunCounter.With(prometheus.Labels{"job": job, "result": result}).Inc()
}

// IncreaseActiveSessions increments the active sessions gauge
func IncreaseActiveSessions() {
	ActiveSessionsGauge.Inc()
}

// DecreaseActiveSessions decrements the active sessions gauge
func DecreaseActiveSessions() {
	ActiveSessionsGauge.Dec()
}
