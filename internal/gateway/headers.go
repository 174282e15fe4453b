package gateway

import (
	"net/http"
	"strings"
)

// hopHeaders apply to a single connection and are not forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RewriteFrameHeaders returns a copy of upstream with the framing policy
// replaced: Content-Security-Policy becomes "frame-ancestors <ancestors>" and
// X-Frame-Options becomes SAMEORIGIN, whatever upstream sent. Hop-by-hop
// headers and body framing headers are dropped; everything else is kept.
func RewriteFrameHeaders(upstream http.Header, ancestors string) http.Header {
	h := upstream.Clone()
	if h == nil {
		h = make(http.Header)
	}
	for _, f := range h.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
	h.Del("Content-Length")
	h.Del("Content-Encoding")

	if ancestors == "" {
		ancestors = DefaultFrameAncestors
	}
	h.Del("Content-Security-Policy-Report-Only")
	h.Set("Content-Security-Policy", "frame-ancestors "+ancestors)
	h.Set("X-Frame-Options", "SAMEORIGIN")
	return h
}
