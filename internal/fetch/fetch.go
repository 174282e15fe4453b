package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("coursescope/internal/fetch")

// DefaultUserAgent is a realistic browser identity. Course sites tend to
// answer bare Go clients with 403 or a stripped page.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	defaultRedirectHops = 10
	defaultRetryBackoff = 200 * time.Millisecond
)

var (
	// ErrUnreachable covers DNS, connect, TLS and read failures.
	ErrUnreachable = errors.New("upstream unreachable")
	// ErrTimeout is returned when the per-request deadline elapses.
	ErrTimeout = errors.New("upstream timed out")
	// ErrBodyTooLarge is returned when the response exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("upstream body too large")

	errUnsupportedScheme = errors.New("unsupported URL scheme")
)

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Result is a fully read upstream response. Body is already decoded from any
// Content-Encoding, so Header no longer carries Content-Encoding or
// Content-Length.
type Result struct {
	URL         string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// Options configures a Client. Zero values select the defaults above.
type Options struct {
	UserAgent string
	// Timeout bounds each attempt, including reading the body.
	Timeout time.Duration
	// MaxAttempts includes the initial attempt. Zero or one disables retry.
	MaxAttempts  int
	RetryBackoff time.Duration
	MaxBodyBytes int64
	// RedirectMaxHops caps redirect following.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests per client. Zero means unlimited.
	MaxConcurrent int
	// CloudflareBypass wraps the transport with browser-like TLS settings.
	CloudflareBypass bool
	// Transport overrides the base round tripper.
	Transport http.RoundTripper
}

// Client performs single-page upstream retrievals. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	opts    Options
	http    *resty.Client
	limiter chan struct{}
}

// New builds a Client. The returned client shares one connection pool across
// all callers.
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RedirectMaxHops <= 0 {
		opts.RedirectMaxHops = defaultRedirectHops
	}

	var rt http.RoundTripper = opts.Transport
	if rt == nil {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}
	if opts.CloudflareBypass {
		rt = cloudflarebp.AddCloudFlareByPass(rt)
	}
	rt = otelhttp.NewTransport(rt)

	client := resty.New()
	client.SetTransport(rt)
	client.SetLogger(restyLogger{log.With().Str("component", "resty").Logger()})
	client.SetHeaders(map[string]string{
		"User-Agent":      opts.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Accept-Encoding": "gzip, br",
	})
	client.SetRedirectPolicy(redirectPolicy(opts.RedirectMaxHops))

	c := &Client{opts: opts, http: client}
	if opts.MaxConcurrent > 0 {
		c.limiter = make(chan struct{}, opts.MaxConcurrent)
	}
	return c
}

// Get retrieves rawURL. Non-2xx responses are errors. Transient failures are
// retried only when MaxAttempts > 1.
func (c *Client) Get(ctx context.Context, rawURL string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "fetch.Get")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawURL))

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		res, err := c.tryOnce(ctx, rawURL)
		if err == nil {
			span.SetAttributes(
				attribute.Int("status", res.StatusCode),
				attribute.Int("bytes", len(res.Body)),
				attribute.Int("attempts", attempt),
			)
			return res, nil
		}
		lastErr = err
		if attempt == c.opts.MaxAttempts || !isTransient(err) || ctx.Err() != nil {
			break
		}
		log.Debug().Err(err).Str("url", rawURL).Int("attempt", attempt).Msg("retrying upstream fetch")
		if err := sleepCtx(ctx, time.Duration(attempt)*c.opts.RetryBackoff); err != nil {
			lastErr = fmt.Errorf("%w after %w", classify(err), lastErr)
			break
		}
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "upstream fetch failed")
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) tryOnce(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if !isHTTPScheme(u) {
		return nil, fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)
	}

	if err := c.acquire(ctx); err != nil {
		return nil, classify(err)
	}
	defer c.release()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return nil, classify(err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(raw, 64<<10))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode()}
	}

	encoded, err := readLimited(raw, c.opts.MaxBodyBytes)
	if err != nil {
		return nil, classify(err)
	}
	header := resp.Header().Clone()
	body, err := decodeBody(header.Get("Content-Encoding"), encoded, c.opts.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	header.Del("Content-Encoding")
	header.Del("Content-Length")

	finalURL := rawURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}
	return &Result{
		URL:         finalURL,
		StatusCode:  resp.StatusCode(),
		ContentType: header.Get("Content-Type"),
		Header:      header,
		Body:        body,
	}, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, ErrBodyTooLarge
	}
	return b, nil
}

// classify maps transport errors onto ErrTimeout or ErrUnreachable while
// keeping the original error text for diagnostics.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBodyTooLarge) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnreachable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnreachable) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func redirectPolicy(max int) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	})
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func (c *Client) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	if c.limiter == nil {
		return
	}
	<-c.limiter
}

// restyLogger routes resty's own diagnostics into zerolog.
type restyLogger struct{ l zerolog.Logger }

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error().Msgf(format, v...) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warn().Msgf(format, v...) }
func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug().Msgf(format, v...) }
