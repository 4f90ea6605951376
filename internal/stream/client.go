package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/metrics"
)

// writeDeadlineSlack is how long a single SSE write may take before the
// connection is considered dead.
const writeDeadlineSlack = 30 * time.Second

// client manages a single SSE connection's write side.
type client struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendJSON marshals v and sends it as one SSE "data:" message.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	c.bumpDeadline()
	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendKeepalive sends an SSE comment line (":\n\n") to keep the connection
// alive through idle stretches.
func (c *client) sendKeepalive() error {
	c.bumpDeadline()
	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("keepalive flush: %w", err)
	}

	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return nil
}

// bumpDeadline extends the write deadline before each write so long-lived
// connections do not hit the server default.
func (c *client) bumpDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeDeadlineSlack)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}
