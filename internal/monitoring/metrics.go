package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// unrepo backend metrics
	BackendLatency  *prometheus.HistogramVec
	BackendRequests *prometheus.CounterVec
	BackendErrors   *prometheus.CounterVec

	// Key lifecycle metrics
	KeysGenerated       *prometheus.CounterVec
	KeyGenerateFailed   *prometheus.CounterVec
	KeysDeleted         *prometheus.CounterVec
	DeletesNotConfirmed prometheus.Counter
	KeysCopied          prometheus.Counter

	// Session metrics
	SessionLogins     *prometheus.CounterVec
	ActiveControllers prometheus.Gauge

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheWrites *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBQueryDuration     *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// unrepo backend metrics
		BackendLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unrepo_backend_latency_seconds",
				Help:    "unrepo backend response latency in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		BackendRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unrepo_backend_requests_total",
				Help: "Total number of requests to the unrepo backend",
			},
			[]string{"operation", "status"},
		),
		BackendErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unrepo_backend_errors_total",
				Help: "Total number of failed unrepo backend calls",
			},
			[]string{"operation", "error_type"},
		),

		// Key lifecycle metrics
		KeysGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_keys_generated_total",
				Help: "API keys generated through the portal",
			},
			[]string{"type", "outcome"},
		),
		KeyGenerateFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_key_generate_failures_total",
				Help: "Failed API key generations",
			},
			[]string{"type"},
		),
		KeysDeleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_keys_deleted_total",
				Help: "API key deletions by result",
			},
			[]string{"status"},
		),
		DeletesNotConfirmed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_key_deletes_declined_total",
				Help: "Delete requests stopped at the confirmation step",
			},
		),
		KeysCopied: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_keys_copied_total",
				Help: "API keys copied to the clipboard",
			},
		),

		// Session metrics
		SessionLogins: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_session_logins_total",
				Help: "GitHub sign-in attempts by result",
			},
			[]string{"result"},
		),
		ActiveControllers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_dashboard_controllers_active",
				Help: "Dashboard controllers currently held for signed-in sessions",
			},
		),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
		CacheWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_writes_total",
				Help: "Total number of cache writes",
			},
			[]string{"cache_type", "status"},
		),

		// Database metrics
		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_type"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 0.5=half-open)",
			},
			[]string{"breaker"},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinHandler returns a Gin-compatible handler for Prometheus metrics
func GinHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordBackendCall records the latency and outcome of an unrepo backend call
func RecordBackendCall(operation string, statusCode int, duration time.Duration) {
	status := "transport_error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m := Get()
	m.BackendLatency.WithLabelValues(operation).Observe(duration.Seconds())
	m.BackendRequests.WithLabelValues(operation, status).Inc()
}

// RecordBackendError records a failed backend call by error class
func RecordBackendError(operation, errorType string) {
	Get().BackendErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordKeyGenerated records a successful generation; outcome is "new" or "existing"
func RecordKeyGenerated(keyType, outcome string) {
	Get().KeysGenerated.WithLabelValues(keyType, outcome).Inc()
}

// RecordKeyGenerateFailed records a failed generation
func RecordKeyGenerateFailed(keyType string) {
	Get().KeyGenerateFailed.WithLabelValues(keyType).Inc()
}

// RecordKeyDeleted records a delete attempt that reached the backend
func RecordKeyDeleted(status string) {
	Get().KeysDeleted.WithLabelValues(status).Inc()
}

// RecordDeleteDeclined records a delete stopped at the confirmation step
func RecordDeleteDeclined() {
	Get().DeletesNotConfirmed.Inc()
}

// RecordKeyCopied records a clipboard copy
func RecordKeyCopied() {
	Get().KeysCopied.Inc()
}

// RecordSessionLogin records a GitHub sign-in attempt
func RecordSessionLogin(result string) {
	Get().SessionLogins.WithLabelValues(result).Inc()
}

// SetActiveControllers sets the number of live dashboard controllers
func SetActiveControllers(n int) {
	Get().ActiveControllers.Set(float64(n))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	Get().CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	Get().CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheWrite records a cache write
func RecordCacheWrite(cacheType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Get().CacheWrites.WithLabelValues(cacheType, status).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(queryType string, duration time.Duration) {
	Get().DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

// SetDBConnections sets database connection metrics
func SetDBConnections(active, idle int) {
	Get().DBConnectionsActive.Set(float64(active))
	Get().DBConnectionsIdle.Set(float64(idle))
}

// SetCircuitBreakerState sets the circuit breaker state
// state: 0=closed, 1=open, 0.5=half-open
func SetCircuitBreakerState(name string, state float64) {
	Get().CircuitBreakerState.WithLabelValues(name).Set(state)
}
