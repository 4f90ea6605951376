// Package api serves the HTTP control surface: catalog and beacon
// management, simulation control, state queries and the event stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/auth"
	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/engine"
	"github.com/kabirarshafidz/galactic-grip/internal/health"
	"github.com/kabirarshafidz/galactic-grip/internal/metrics"
	"github.com/kabirarshafidz/galactic-grip/internal/sim"
	"github.com/kabirarshafidz/galactic-grip/internal/stream"
	"github.com/kabirarshafidz/galactic-grip/internal/timeline"
)

// Deps bundles everything the handlers reach.
type Deps struct {
	Logger   *slog.Logger
	Auth     auth.Config
	Store    *catalog.Store
	Registry *sim.Registry
	Runner   *sim.Runner
	Engine   *engine.Engine
	Timeline *timeline.Cache
	Stream   *stream.Handler

	// RefreshCatalog re-resolves the catalog on demand. Nil disables the
	// refresh endpoint.
	RefreshCatalog func(context.Context) (*catalog.Dataset, error)
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	store    *catalog.Store
	registry *sim.Registry
	runner   *sim.Runner
	eng      *engine.Engine
	timeline *timeline.Cache
	refresh  func(context.Context) (*catalog.Dataset, error)
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		logger:   deps.Logger,
		store:    deps.Store,
		registry: deps.Registry,
		runner:   deps.Runner,
		eng:      deps.Engine,
		timeline: deps.Timeline,
		refresh:  deps.RefreshCatalog,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(s.store.Loaded))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/catalog/metadata", s.handleCatalogMetadata)
	mux.HandleFunc("POST /api/v1/catalog/refresh", s.handleCatalogRefresh)

	mux.HandleFunc("GET /api/v1/beacons", s.handleListBeacons)
	mux.HandleFunc("POST /api/v1/beacons", s.handleAddBeacon)
	mux.HandleFunc("GET /api/v1/beacons/{id}", s.handleGetBeacon)
	mux.HandleFunc("PUT /api/v1/beacons/{id}", s.handleUpdateBeacon)
	mux.HandleFunc("DELETE /api/v1/beacons/{id}", s.handleRemoveBeacon)

	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/positions", s.handlePositions)
	mux.HandleFunc("GET /api/v1/coverage", s.handleCoverage)
	mux.HandleFunc("GET /api/v1/timeline", s.handleTimeline)

	mux.HandleFunc("POST /api/v1/sim/start", s.handleSimResume)
	mux.HandleFunc("POST /api/v1/sim/resume", s.handleSimResume)
	mux.HandleFunc("POST /api/v1/sim/pause", s.handleSimPause)
	mux.HandleFunc("POST /api/v1/sim/seek", s.handleSimSeek)
	mux.HandleFunc("POST /api/v1/sim/rate", s.handleSimRate)
	mux.HandleFunc("POST /api/v1/sim/reset", s.handleSimReset)
	mux.HandleFunc("POST /api/v1/sim/stop", s.handleSimStop)

	mux.HandleFunc("GET /api/v1/stream", deps.Stream.HandleFrames)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(deps.Logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying connection for
// flushing and write deadlines on streaming responses.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
