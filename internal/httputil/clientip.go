// Package httputil holds small HTTP helpers shared by the API and the
// event stream.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP reports the originating client address for a request. With
// trustProxy set, X-Forwarded-For and X-Real-IP are consulted first; enable
// that only behind a reverse proxy that strips inbound copies of those
// headers. Otherwise the address comes from the socket peer.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := proxyHeaderIP(r.Header); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// proxyHeaderIP extracts the leftmost X-Forwarded-For entry, which is the
// original client in a well-behaved proxy chain, falling back to X-Real-IP.
func proxyHeaderIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(h.Get("X-Real-IP"))
}
