package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/coursescope/internal/extract"
	"github.com/hyperifyio/coursescope/internal/fetch"
	"github.com/hyperifyio/coursescope/internal/validate"
)

var coursera = validate.Policy{AllowedDomain: "coursera.org", DisplayName: "Coursera"}

const scenarioPage = `<html><body>
<h1>Machine Learning</h1>
<div data-e2e="course-description">Learn ML.</div>
<ul>
<li data-e2e="course-syllabus-item">Week 1</li>
<li data-e2e="course-syllabus-item">Week 2</li>
</ul>
</body></html>`

type fakeFetcher struct {
	calls  atomic.Int32
	result *fetch.Result
	err    error
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (*fetch.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.URL = url
	return &res, nil
}

func htmlResult(body string) *fetch.Result {
	return &fetch.Result{
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Header:      http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:        []byte(body),
	}
}

func TestScrape_ExtractsRecord(t *testing.T) {
	f := &fakeFetcher{result: htmlResult(scenarioPage)}
	g := New(Options{Policy: coursera, Fetcher: f})

	got, err := g.Scrape(context.Background(), "https://www.coursera.org/learn/ml")
	require.NoError(t, err)
	want := extract.CourseRecord{
		Title:       "Machine Learning",
		Description: "Learn ML.",
		Syllabus:    []string{"Week 1", "Week 2"},
		SourceURL:   "https://www.coursera.org/learn/ml",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestScrape_SentinelsOnEmptyPage(t *testing.T) {
	f := &fakeFetcher{result: htmlResult(`<html><body><p>nothing</p></body></html>`)}
	g := New(Options{Policy: coursera, Fetcher: f})

	got, err := g.Scrape(context.Background(), "https://www.coursera.org/learn/x")
	require.NoError(t, err)
	assert.Equal(t, extract.TitleNotFound, got.Title)
	assert.Equal(t, extract.DescriptionNotFound, got.Description)
	assert.Equal(t, []string{extract.SyllabusNotFound}, got.Syllabus)
}

func TestScrape_InputErrorsNeverFetch(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind Kind
	}{
		{"empty", "", KindMissingInput},
		{"blank", "   ", KindMissingInput},
		{"relative", "/learn/ml", KindInvalidURL},
		{"scheme", "ftp://www.coursera.org/learn/ml", KindInvalidURL},
		{"domain", "https://www.udemy.com/course/x", KindDisallowedDomain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeFetcher{result: htmlResult(scenarioPage)}
			g := New(Options{Policy: coursera, Fetcher: f})
			_, err := g.Scrape(context.Background(), tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.True(t, KindOf(err).IsInputError())
			assert.Zero(t, f.calls.Load(), "no upstream request expected")
		})
	}
}

func TestScrape_UpstreamErrorsPassThrough(t *testing.T) {
	statusErr := &fetch.StatusError{URL: "https://www.coursera.org/learn/gone", StatusCode: 404}
	f := &fakeFetcher{err: statusErr}
	g := New(Options{Policy: coursera, Fetcher: f})

	got, err := g.Scrape(context.Background(), "https://www.coursera.org/learn/gone")
	require.Error(t, err)
	assert.Equal(t, KindUpstreamHTTP, KindOf(err))
	assert.Equal(t, "upstream returned status 404", err.Error())
	assert.Equal(t, extract.CourseRecord{}, got)
}

func TestScrape_UsesConfiguredExtractor(t *testing.T) {
	page := `<html><head><meta name="description" content="About it."></head><body><h1>Generic</h1><main><h2>Intro</h2></main></body></html>`
	f := &fakeFetcher{result: htmlResult(page)}
	g := New(Options{
		Policy:    validate.Policy{},
		Fetcher:   f,
		Extractor: extract.ReadabilityExtractor{Rules: extract.GenericRules},
	})

	got, err := g.Scrape(context.Background(), "https://example.com/course")
	require.NoError(t, err)
	assert.Equal(t, "Generic", got.Title)
	assert.Equal(t, "About it.", got.Description)
	assert.Equal(t, []string{"Intro"}, got.Syllabus)
}

func TestScrape_DecodesDeclaredCharset(t *testing.T) {
	res := htmlResult("<h1>Caf\xe9</h1>")
	res.ContentType = "text/html; charset=ISO-8859-1"
	g := New(Options{Policy: coursera, Fetcher: &fakeFetcher{result: res}})

	got, err := g.Scrape(context.Background(), "https://www.coursera.org/learn/cafe")
	require.NoError(t, err)
	assert.Equal(t, "Café", got.Title)
}

func TestScrape_KeepsUndeclaredUTF8(t *testing.T) {
	page := "<html><head><!-- " + strings.Repeat("x", 1100) + " --></head><body>" +
		"<h1>Café Course</h1><div data-e2e=\"course-description\">Résumé writing</div></body></html>"
	res := htmlResult(page)
	res.ContentType = "text/html"
	g := New(Options{Policy: coursera, Fetcher: &fakeFetcher{result: res}})

	got, err := g.Scrape(context.Background(), "https://www.coursera.org/learn/cafe")
	require.NoError(t, err)
	assert.Equal(t, "Café Course", got.Title)
	assert.Equal(t, "Résumé writing", got.Description)
}

func TestScrape_EchoesSourceURLAsReceived(t *testing.T) {
	f := &fakeFetcher{result: htmlResult(scenarioPage)}
	g := New(Options{Policy: coursera, Fetcher: f})

	raw := "  https://www.coursera.org/learn/ml?utm_source=x \n"
	got, err := g.Scrape(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got.SourceURL)
}

func TestScrape_AgainstLiveServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(scenarioPage))
	}))
	defer srv.Close()

	// The test server host is 127.0.0.1, so allow it explicitly.
	g := New(Options{
		Policy:  validate.Policy{AllowedDomain: "127.0.0.1"},
		Fetcher: fetch.New(fetch.Options{Timeout: 2 * time.Second}),
	})
	got, err := g.Scrape(context.Background(), srv.URL+"/learn/ml")
	require.NoError(t, err)
	assert.Equal(t, "Machine Learning", got.Title)
	assert.Equal(t, []string{"Week 1", "Week 2"}, got.Syllabus)
	assert.Equal(t, srv.URL+"/learn/ml", got.SourceURL)
}

func TestRelay_RewritesFramingHeaders(t *testing.T) {
	res := htmlResult("<html><body>raw &amp; untouched</body></html>")
	res.Header.Set("X-Frame-Options", "DENY")
	res.Header.Set("Content-Security-Policy", "frame-ancestors 'none'; script-src 'self'")
	res.Header.Set("Cache-Control", "max-age=60")
	res.Header.Set("Connection", "close")
	f := &fakeFetcher{result: res}
	g := New(Options{Policy: coursera, Fetcher: f})

	out, err := g.Relay(context.Background(), "https://www.coursera.org/learn/ml")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, "SAMEORIGIN", out.Header.Get("X-Frame-Options"))
	assert.Equal(t, "frame-ancestors 'self'", out.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "max-age=60", out.Header.Get("Cache-Control"))
	assert.Equal(t, "text/html; charset=utf-8", out.Header.Get("Content-Type"))
	assert.Empty(t, out.Header.Get("Connection"))
	assert.Equal(t, res.Body, out.Body)

	// The fetched header map must not be mutated.
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
}

func TestRelay_CustomFrameAncestors(t *testing.T) {
	g := New(Options{
		Policy:         coursera,
		Fetcher:        &fakeFetcher{result: htmlResult("<p>x</p>")},
		FrameAncestors: "'self' https://app.example.com",
	})
	out, err := g.Relay(context.Background(), "https://www.coursera.org/learn/ml")
	require.NoError(t, err)
	assert.Equal(t, "frame-ancestors 'self' https://app.example.com", out.Header.Get("Content-Security-Policy"))
}

func TestRelay_AllowList(t *testing.T) {
	f := &fakeFetcher{result: htmlResult("<p>x</p>")}
	g := New(Options{Policy: coursera, Fetcher: f})
	_, err := g.Relay(context.Background(), "https://example.com/")
	require.Error(t, err)
	assert.Equal(t, KindDisallowedDomain, KindOf(err))
	assert.Zero(t, f.calls.Load())

	open := New(Options{Policy: coursera, Fetcher: f, ProxyAllowAnyDomain: true})
	_, err = open.Relay(context.Background(), "https://example.com/")
	require.NoError(t, err)
	_, err = open.Relay(context.Background(), "javascript:alert(1)")
	assert.Equal(t, KindInvalidURL, KindOf(err))
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{validate.ErrMissingInput, KindMissingInput},
		{validate.ErrInvalidURL, KindInvalidURL},
		{&validate.DisallowedDomainError{Host: "x.com", Allowed: "coursera.org"}, KindDisallowedDomain},
		{&fetch.StatusError{StatusCode: 503}, KindUpstreamHTTP},
		{fetch.ErrTimeout, KindTimeout},
		{context.DeadlineExceeded, KindTimeout},
		{fetch.ErrUnreachable, KindUpstreamUnreachable},
		{errors.New("boom"), KindUpstreamUnreachable},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
