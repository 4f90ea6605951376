// Package stream implements Server-Sent Events (SSE) streaming of simulation
// frames. Clients connect via GET /api/v1/stream and receive the run state
// as it evolves: simulated time, body positions, the coverage relation, and
// the stats table.
//
// First message on every connection is metadata:
//
//	data: {"type":"metadata","source":"...","fetched_at":"...","satellites":66,"horizon_s":86400}\n\n
//
// Frame messages follow whenever the runner publishes a new frame:
//
//	data: {"type":"frame","sim_time_s":120,"rate":60,...}\n\n
//
// Keep-alive comments (:\n\n) go out every KeepaliveInterval when nothing
// else was sent, so idle paused runs do not time out.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/engine"
	"github.com/kabirarshafidz/galactic-grip/internal/httputil"
	"github.com/kabirarshafidz/galactic-grip/internal/metrics"
	"github.com/kabirarshafidz/galactic-grip/internal/sim"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxConcurrentTotal int           // Global stream cap (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	PollInterval       time.Duration // Frame poll cadence (default: 100ms).
	TrustProxy         bool          // Trust proxy headers for client IPs.
}

// Handler manages SSE streaming connections.
type Handler struct {
	runner  *sim.Runner
	store   *catalog.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a streaming handler over the runner's published frames.
func NewHandler(runner *sim.Runner, store *catalog.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP < 1 {
		config.MaxConcurrentPerIP = 10
	}
	if config.MaxConcurrentTotal < 1 {
		config.MaxConcurrentTotal = 1000
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	return &Handler{
		runner:  runner,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrentTotal),
		logger:  logger,
	}
}

// HandleFrames serves the SSE frame stream.
// GET /api/v1/stream
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamClients()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	c := &client{logger: h.logger}
	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamClients()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages_sent", c.messagesSent,
			"bytes_sent", c.bytesSent,
		)
	}()

	// Long-lived connection: clear the server's default write timeout and
	// bump a per-write deadline instead. The controller unwraps the
	// middleware's writer wrappers to reach the real connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.

	// The first flush commits the headers and proves the writer can stream.
	if err := rc.Flush(); err != nil {
		metrics.IncStreamErrors("no_flush")
		h.logger.Warn("streaming not supported", "remote_ip", ip, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	c.w = w
	c.rc = rc

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	rc.Flush()

	if ds := h.store.Get(); ds != nil {
		if err := c.sendJSON(buildMetadataMessage(ds)); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	pollTicker := time.NewTicker(h.config.PollInterval)
	defer pollTicker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	var last *sim.Frame

	for {
		select {
		case <-ctx.Done():
			return

		case <-pollTicker.C:
			frame := h.runner.Frame()
			if frame == nil || frame == last {
				continue
			}
			if err := c.sendJSON(frameMessage{Type: "frame", Frame: frame}); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			last = frame

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func buildMetadataMessage(ds *catalog.Dataset) metadataMessage {
	return metadataMessage{
		Type:       "metadata",
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt.UTC().Format(time.RFC3339),
		Satellites: len(ds.Satellites),
		HorizonS:   engine.HorizonSeconds,
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type       string  `json:"type"`
	Source     string  `json:"source"`
	FetchedAt  string  `json:"fetched_at"`
	Satellites int     `json:"satellites"`
	HorizonS   float64 `json:"horizon_s"`
}

type frameMessage struct {
	Type string `json:"type"`
	*sim.Frame
}
