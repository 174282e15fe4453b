package app

import (
	"net/http"
	"reflect"
	"testing"
	"time"
)

func TestNewUpstreamTransport_Config(t *testing.T) {
	tr := newUpstreamTransport(FetchConfig{Timeout: 2 * time.Second})
	if tr.MaxIdleConnsPerHost < 16 {
		t.Fatalf("expected a sizeable per-host pool, got %d", tr.MaxIdleConnsPerHost)
	}
	if tr.MaxConnsPerHost != 0 {
		t.Fatalf("expected unlimited connections without a concurrency cap, got %d", tr.MaxConnsPerHost)
	}
	if !tr.DisableCompression {
		t.Fatalf("transport must not negotiate compression itself")
	}
	// Ensure we didn't return the default client's transport
	if reflect.ValueOf(http.DefaultTransport).Pointer() == reflect.ValueOf(tr).Pointer() {
		t.Fatalf("transport should not be default")
	}
}

func TestNewUpstreamTransport_ConcurrencyCap(t *testing.T) {
	tr := newUpstreamTransport(FetchConfig{MaxConcurrent: 4})
	if tr.MaxConnsPerHost != 4 || tr.MaxIdleConnsPerHost != 4 {
		t.Fatalf("expected pool sized to 4, got max=%d idle=%d", tr.MaxConnsPerHost, tr.MaxIdleConnsPerHost)
	}
}
