package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Renderer runs a headless Chrome for pages that only materialize content
// after script execution. The browser launches lazily on first use and is
// shared across renders.
type Renderer struct {
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty launches a local one.
	RemoteURL string

	// Timeout bounds a single render. Default: 30s.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewRenderer creates a Renderer. Chrome does not start until the first
// Render call.
func NewRenderer() *Renderer {
	return &Renderer{Timeout: 30 * time.Second, Logger: slog.Default()}
}

// Render loads pageURL in a stealth tab, waits for the page to settle, and
// returns the serialized DOM.
func (r *Renderer) Render(ctx context.Context, pageURL string) ([]byte, error) {
	b, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("fetch: create tab: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("fetch: navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("fetch: wait load: %w", err)
	}
	// Give hydration a moment past the load event.
	page.WaitRequestIdle(2*time.Second, nil, nil, nil)()

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("fetch: serialize: %w", err)
	}
	r.logger().Debug("fetch: rendered", "url", pageURL, "size", len(html))
	return []byte(html), nil
}

// Close shuts down the browser if one was launched.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL := r.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("fetch: launch chrome: %w", err)
		}
		wsURL = u
		r.lnch = l
		r.logger().Info("fetch: launched local chrome", "url", wsURL)
	} else {
		r.logger().Info("fetch: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("fetch: connect: %w", err)
	}
	r.browser = b
	return b, nil
}

func (r *Renderer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
