// Package metrics exposes Prometheus instrumentation for the simulation
// engine and its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grip_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grip_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	advancesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grip_engine_advances_total",
			Help: "Total number of engine advance steps.",
		},
	)

	advanceDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grip_engine_advance_duration_seconds",
			Help:    "Engine advance step duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)

	handshakesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grip_handshakes_total",
			Help: "Total number of handshakes opened across all runs.",
		},
	)

	coverageNormalizationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grip_coverage_normalizations_total",
			Help: "Times beacon coverage totals exceeded the horizon and were scaled back.",
		},
	)

	timelineRebuildDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grip_timeline_rebuild_duration_seconds",
			Help:    "Timeline keyframe rebuild duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	simTimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grip_sim_time_seconds",
			Help: "Current simulated time in seconds.",
		},
	)

	activeBeacons = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grip_active_beacons",
			Help: "Number of configured beacons.",
		},
	)

	catalogSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grip_catalog_satellites",
			Help: "Number of satellites in the current catalog snapshot.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grip_catalog_age_seconds",
			Help: "Age of the current catalog snapshot in seconds.",
		},
	)

	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grip_stream_clients",
			Help: "Number of connected event stream clients.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grip_stream_messages_total",
			Help: "Total number of event stream messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grip_stream_bytes_total",
			Help: "Total bytes written to event stream clients.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grip_stream_errors_total",
			Help: "Event stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(advancesTotal)
	prometheus.MustRegister(advanceDurationSeconds)
	prometheus.MustRegister(handshakesTotal)
	prometheus.MustRegister(coverageNormalizationsTotal)
	prometheus.MustRegister(timelineRebuildDurationSeconds)
	prometheus.MustRegister(simTimeSeconds)
	prometheus.MustRegister(activeBeacons)
	prometheus.MustRegister(catalogSatellites)
	prometheus.MustRegister(catalogAgeSeconds)
	prometheus.MustRegister(streamClients)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamBytesTotal)
	prometheus.MustRegister(streamErrorsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAdvance records one engine advance step and its duration.
func RecordAdvance(seconds float64) {
	advancesTotal.Inc()
	advanceDurationSeconds.Observe(seconds)
}

// AddHandshakes adds newly opened handshakes to the running total.
func AddHandshakes(n int) {
	if n > 0 {
		handshakesTotal.Add(float64(n))
	}
}

// IncCoverageNormalizations counts one horizon normalization.
func IncCoverageNormalizations() {
	coverageNormalizationsTotal.Inc()
}

// RecordTimelineRebuild records one timeline rebuild and its duration.
func RecordTimelineRebuild(seconds float64) {
	timelineRebuildDurationSeconds.Observe(seconds)
}

// SetSimTime publishes the current simulated time.
func SetSimTime(t float64) {
	simTimeSeconds.Set(t)
}

// SetActiveBeacons publishes the configured beacon count.
func SetActiveBeacons(n int) {
	activeBeacons.Set(float64(n))
}

// SetCatalogSatellites publishes the catalog size.
func SetCatalogSatellites(n int) {
	catalogSatellites.Set(float64(n))
}

// SetCatalogAge publishes the catalog snapshot age.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// IncStreamClients counts a stream client connecting.
func IncStreamClients() {
	streamClients.Inc()
}

// DecStreamClients counts a stream client disconnecting.
func DecStreamClients() {
	streamClients.Dec()
}

// IncStreamMessages counts one event stream message.
func IncStreamMessages() {
	streamMessagesTotal.Inc()
}

// AddStreamBytes adds written bytes to the stream total.
func AddStreamBytes(n int64) {
	if n > 0 {
		streamBytesTotal.Add(float64(n))
	}
}

// IncStreamErrors counts one stream error of the given reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
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

// Unwrap lets http.ResponseController reach the underlying connection for
// flushing and write deadlines on streaming responses.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// knownRoutes is the fixed set of path labels the middleware will emit.
var knownRoutes = map[string]bool{
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/catalog":          true,
	"/api/v1/catalog/metadata": true,
	"/api/v1/catalog/refresh":  true,
	"/api/v1/beacons":          true,
	"/api/v1/state":            true,
	"/api/v1/stats":            true,
	"/api/v1/positions":        true,
	"/api/v1/coverage":         true,
	"/api/v1/timeline":         true,
	"/api/v1/sim/start":        true,
	"/api/v1/sim/resume":       true,
	"/api/v1/sim/pause":        true,
	"/api/v1/sim/seek":         true,
	"/api/v1/sim/rate":         true,
	"/api/v1/sim/reset":        true,
	"/api/v1/sim/stop":         true,
	"/api/v1/stream":           true,
}

// normalizeRoute keeps metric label cardinality bounded: beacon paths
// collapse to one parameterized label, known routes pass through, and
// everything else (bot scans mostly) becomes "other".
func normalizeRoute(path string) string {
	const beacons = "/api/v1/beacons/"
	if strings.HasPrefix(path, beacons) && len(path) > len(beacons) {
		return beacons + "{id}"
	}
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
