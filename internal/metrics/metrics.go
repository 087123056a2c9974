package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navframe_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navframe_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navframe_conversions_total",
			Help: "Total coordinate conversions performed, by kind.",
		},
		[]string{"kind"},
	)

	conversionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navframe_conversion_errors_total",
			Help: "Total failed coordinate conversions, by kind.",
		},
		[]string{"kind"},
	)

	batchPoints = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "navframe_batch_points",
			Help:    "Points per batch conversion request.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	batchWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "navframe_batch_workers_active",
			Help: "Number of workers in the batch conversion pool.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(conversionsTotal)
	prometheus.MustRegister(conversionErrorsTotal)
	prometheus.MustRegister(batchPoints)
	prometheus.MustRegister(batchWorkersActive)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveConversion records one successful conversion of the given kind.
func ObserveConversion(kind string) {
	conversionsTotal.WithLabelValues(kind).Inc()
}

// ObserveConversionError records one failed conversion of the given kind.
func ObserveConversionError(kind string) {
	conversionErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveBatchSize records the number of points in a batch request.
func ObserveBatchSize(n int) {
	batchPoints.Observe(float64(n))
}

// SetBatchWorkers records the batch pool's worker count.
func SetBatchWorkers(n int) {
	batchWorkersActive.Set(float64(n))
}

// knownRoutes is the closed set of path labels we export. Anything else
// collapses to "other" so scanners and bots cannot inflate cardinality.
var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/convert/llh":   true,
	"/api/v1/convert/ecef":  true,
	"/api/v1/convert/ned":   true,
	"/api/v1/convert/azel":  true,
	"/api/v1/convert/batch": true,
	"/api/v1/ellipsoids":    true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
