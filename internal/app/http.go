package app

import (
	"net"
	"net/http"
	"time"
)

// newUpstreamTransport returns the transport used for course page retrieval.
// Connection pooling is sized from the fetch concurrency limit; the overall
// request deadline is enforced by the fetch client, not here.
func newUpstreamTransport(cfg FetchConfig) *http.Transport {
	perHost := 64
	if cfg.MaxConcurrent > 0 {
		perHost = cfg.MaxConcurrent
	}
	dialTimeout := 5 * time.Second
	if cfg.Timeout > 0 && cfg.Timeout < dialTimeout {
		dialTimeout = cfg.Timeout
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   perHost,
		MaxConnsPerHost:       cfg.MaxConcurrent,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// The fetch client decodes Content-Encoding itself.
		DisableCompression: true,
	}
}
