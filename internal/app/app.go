package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/coursescope/internal/extract"
	"github.com/hyperifyio/coursescope/internal/fetch"
	"github.com/hyperifyio/coursescope/internal/gateway"
	"github.com/hyperifyio/coursescope/internal/server"
	"github.com/hyperifyio/coursescope/internal/telemetry"
	"github.com/hyperifyio/coursescope/internal/validate"
)

// ServiceName identifies this process in traces and metrics.
const ServiceName = "coursescope"

type App struct {
	cfg     Config
	tel     telemetry.Telemetry
	gateway *gateway.Gateway
	server  *server.Server
}

// New wires the fetch client, extractor, gateway and HTTP layer from cfg.
// cfg is expected to have passed Resolve.
func New(ctx context.Context, cfg Config) (*App, error) {
	tel, err := telemetry.Setup(ctx, ServiceName, BuildVersion, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	extractor, err := extract.Lookup(cfg.RuleSet)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	client := fetch.New(fetch.Options{
		UserAgent:        cfg.Fetch.UserAgent,
		Timeout:          cfg.Fetch.Timeout,
		MaxAttempts:      cfg.Fetch.MaxAttempts,
		MaxBodyBytes:     cfg.Fetch.MaxBodyBytes,
		MaxConcurrent:    cfg.Fetch.MaxConcurrent,
		CloudflareBypass: cfg.Fetch.CloudflareBypass,
		Transport:        newUpstreamTransport(cfg.Fetch),
	})

	gw := gateway.New(gateway.Options{
		Policy:              validate.Policy{AllowedDomain: cfg.AllowedDomain, DisplayName: cfg.SiteName()},
		Fetcher:             client,
		Extractor:           extractor,
		FrameAncestors:      cfg.FrameAncestors,
		ProxyAllowAnyDomain: cfg.ProxyAllowAnyDomain,
	})

	srv := server.New(server.Options{
		Service:          gw,
		SiteName:         cfg.SiteName(),
		AllowedOrigins:   cfg.CORSOrigins,
		HideErrorDetails: cfg.HideErrorDetails,
	})

	return &App{cfg: cfg, tel: tel, gateway: gw, server: srv}, nil
}

// Gateway exposes the scrape and relay operations for in-process callers.
func (a *App) Gateway() *gateway.Gateway { return a.gateway }

// Handler is the complete HTTP handler, including middleware.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Close flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	return a.tel.Shutdown(ctx)
}

// Run binds the configured address and serves until ctx is cancelled. A bind
// failure is returned immediately; there is no fallback port.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within the configured timeout.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           h2c.NewHandler(a.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", ln.Addr().String()).
			Str("allowedDomain", a.cfg.AllowedDomain).
			Str("ruleSet", a.cfg.RuleSet).
			Str("version", BuildVersion).
			Msg("server listening")
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	return g.Wait()
}
