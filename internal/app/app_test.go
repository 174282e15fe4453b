package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FailsFastWhenPortTaken(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	cfg, err := Resolve(Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = a.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on 127.0.0.1:")
}

func TestServe_LivenessAndShutdown(t *testing.T) {
	cfg, err := Resolve(Config{Host: "127.0.0.1", ShutdownTimeout: 2 * time.Second})
	require.NoError(t, err)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close(context.Background())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/test")
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, "Backend is running!", out["message"])

	// Validation happens before any upstream call, so this needs no network.
	resp, err = http.Post("http://"+ln.Addr().String()+"/api/scrape", "application/json",
		strings.NewReader(`{"courseUrl":"https://example.com/page"}`))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please provide a valid Coursera URL", out["error"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNew_UnknownRuleSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RuleSet = "nope"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
