package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hyperifyio/coursescope/internal/extract"
	"github.com/hyperifyio/coursescope/internal/gateway"
)

// Service is the behaviour the HTTP layer needs. *gateway.Gateway
// implements it.
type Service interface {
	Scrape(ctx context.Context, rawURL string) (extract.CourseRecord, error)
	Relay(ctx context.Context, rawURL string) (*gateway.Relayed, error)
}

// Options configures the HTTP layer.
type Options struct {
	Service Service
	// SiteName labels the accepted course site in user-facing messages.
	SiteName string
	// AllowedOrigins lists CORS origins. "*" or an empty list allows any.
	AllowedOrigins []string
	// HideErrorDetails omits the underlying error text from 500 responses.
	HideErrorDetails bool
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// Server routes the public endpoints onto a Service.
type Server struct {
	svc         Service
	siteName    string
	origins     []string
	hideDetails bool
	logger      zerolog.Logger
	mux         *http.ServeMux
}

func New(opts Options) *Server {
	s := &Server{
		svc:         opts.Service,
		siteName:    strings.TrimSpace(opts.SiteName),
		origins:     normalizeOrigins(opts.AllowedOrigins),
		hideDetails: opts.HideErrorDetails,
		logger:      log.Logger,
		mux:         http.NewServeMux(),
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}
	if s.siteName == "" {
		s.siteName = "course"
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/scrape", s.handleScrape)
	s.mux.HandleFunc("GET /api/proxy-course", s.handleProxy)
	s.mux.HandleFunc("GET /api/test", s.handleLiveness)
	s.mux.HandleFunc("GET /healthz", s.handleLiveness)
}

// Handler returns the routed mux wrapped in tracing, request logging, panic
// recovery and CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.cors(h)
	h = recoverer(h)
	h = s.accessLog(h)
	return otelhttp.NewHandler(h, "coursescope",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
