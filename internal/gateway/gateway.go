package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyperifyio/coursescope/internal/extract"
	"github.com/hyperifyio/coursescope/internal/fetch"
	"github.com/hyperifyio/coursescope/internal/validate"
)

var tracer = otel.Tracer("coursescope/internal/gateway")

// DefaultFrameAncestors restricts framing to the serving origin.
const DefaultFrameAncestors = "'self'"

// Fetcher retrieves one upstream page. *fetch.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Result, error)
}

// Options wires a Gateway.
type Options struct {
	Policy    validate.Policy
	Fetcher   Fetcher
	Extractor extract.Extractor
	// FrameAncestors is the CSP frame-ancestors source list set on relayed
	// pages.
	FrameAncestors string
	// ProxyAllowAnyDomain skips the domain allow-list on the relay path.
	// URLs must still be absolute http(s).
	ProxyAllowAnyDomain bool
}

// Gateway validates input, retrieves upstream pages and either extracts a
// CourseRecord or relays the page for framing. It keeps no per-request state.
type Gateway struct {
	policy         validate.Policy
	proxyPolicy    validate.Policy
	fetcher        Fetcher
	extractor      extract.Extractor
	frameAncestors string
	metrics        instruments
}

func New(opts Options) *Gateway {
	g := &Gateway{
		policy:         opts.Policy,
		proxyPolicy:    opts.Policy,
		fetcher:        opts.Fetcher,
		extractor:      opts.Extractor,
		frameAncestors: strings.TrimSpace(opts.FrameAncestors),
		metrics:        newInstruments(),
	}
	if opts.ProxyAllowAnyDomain {
		g.proxyPolicy = validate.Policy{}
	}
	if g.extractor == nil {
		g.extractor = extract.SelectorExtractor{Rules: extract.CourseraRules}
	}
	if g.frameAncestors == "" {
		g.frameAncestors = DefaultFrameAncestors
	}
	return g
}

// Scrape validates rawURL, fetches it and extracts a CourseRecord. Either the
// record is complete or an error is returned; never both.
func (g *Gateway) Scrape(ctx context.Context, rawURL string) (rec extract.CourseRecord, err error) {
	ctx, span := tracer.Start(ctx, "gateway.Scrape")
	defer span.End()
	defer func() { g.metrics.record(ctx, "scrape", err) }()
	logger := zerolog.Ctx(ctx)

	u, err := g.policy.Validate(rawURL)
	if err != nil {
		return extract.CourseRecord{}, fail(span, err)
	}
	span.SetAttributes(attribute.String("url", u.String()))

	start := time.Now()
	res, err := g.fetcher.Get(ctx, u.String())
	g.metrics.observeFetch(ctx, "scrape", start)
	if err != nil {
		logger.Warn().Err(err).Str("url", u.String()).Str("kind", KindOf(err).String()).Msg("upstream fetch failed")
		return extract.CourseRecord{}, fail(span, err)
	}
	logger.Debug().Str("url", res.URL).Int("bytes", len(res.Body)).Msg("fetched course page")

	rec = g.extractor.Extract(extract.ToUTF8(res.Body, res.ContentType), rawURL)
	span.SetAttributes(
		attribute.String("rule_set", g.extractor.RuleSetName()),
		attribute.Bool("title_found", rec.Title != extract.TitleNotFound),
		attribute.Int("syllabus_items", len(rec.Syllabus)),
	)
	logger.Debug().Str("title", rec.Title).Int("syllabusItems", len(rec.Syllabus)).Msg("extracted course record")
	return rec, nil
}

// Relayed is an upstream page ready to be re-served inside a frame.
type Relayed struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Relay validates rawURL and fetches it, returning the body untouched and the
// upstream headers with the framing policy overridden. It never extracts.
func (g *Gateway) Relay(ctx context.Context, rawURL string) (out *Relayed, err error) {
	ctx, span := tracer.Start(ctx, "gateway.Relay")
	defer span.End()
	defer func() { g.metrics.record(ctx, "relay", err) }()

	u, err := g.proxyPolicy.Validate(rawURL)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("url", u.String()))

	start := time.Now()
	res, err := g.fetcher.Get(ctx, u.String())
	g.metrics.observeFetch(ctx, "relay", start)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("url", u.String()).Str("kind", KindOf(err).String()).Msg("proxy fetch failed")
		return nil, fail(span, err)
	}
	return &Relayed{
		StatusCode: http.StatusOK,
		Header:     RewriteFrameHeaders(res.Header, g.frameAncestors),
		Body:       res.Body,
	}, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.kind", KindOf(err).String()))
	span.SetStatus(codes.Error, err.Error())
	return err
}
