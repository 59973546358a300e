// Package fetch acquires page HTML for analysis. The fast path is a plain
// HTTP GET; pages detected as client-rendered shells escalate to a headless
// browser when one is configured.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/galuli/snippet/safeurl"
)

// Result is the outcome of a page acquisition.
type Result struct {
	HTML       []byte
	StatusCode int
	ETag       string
	LastMod    string
	// Rendered is true when the HTML came from the browser path.
	Rendered bool
}

// Fetcher acquires page HTML, escalating to a Renderer for shell pages.
type Fetcher struct {
	client   *http.Client
	ua       string
	renderer *Renderer
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header on outbound requests.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithRenderer enables browser escalation for insufficient pages.
func WithRenderer(r *Renderer) Option {
	return func(f *Fetcher) { f.renderer = r }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with a 30s timeout and no renderer.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (compatible; Galuli/3.1.0; +https://galuli.io/bot)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs pageURL and returns its HTML. URLs are validated against
// private address ranges before any connection. When the static body looks
// like a client-rendered shell and a renderer is configured, the browser
// path replaces it.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if err := safeurl.Validate(pageURL); err != nil {
		return nil, err
	}

	res, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if Sufficient(res.HTML) || f.renderer == nil {
		return res, nil
	}

	f.logger.Debug("fetch: static body insufficient, rendering", "url", pageURL)
	html, err := f.renderer.Render(ctx, pageURL)
	if err != nil {
		// Keep the static body rather than failing the whole fetch.
		f.logger.Debug("fetch: render failed, keeping static body", "url", pageURL, "error", err)
		return res, nil
	}
	res.HTML = html
	res.Rendered = true
	return res, nil
}

func (f *Fetcher) get(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: do: %w", err)
	}
	defer resp.Body.Close()

	body, err := safeurl.ReadAll(resp.Body, safeurl.MaxBody)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	f.logger.Debug("fetch: fetched",
		"url", pageURL, "status", resp.StatusCode, "size", len(body))

	return &Result{
		HTML:       body,
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("ETag"),
		LastMod:    resp.Header.Get("Last-Modified"),
	}, nil
}
