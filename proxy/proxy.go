package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/galuli/snippet/engine"
	"github.com/galuli/snippet/history"
	"github.com/galuli/snippet/inject"
	"github.com/galuli/snippet/safeurl"
	"github.com/galuli/snippet/transport"
)

// pushTimeout bounds the background push that follows a served response.
const pushTimeout = 15 * time.Second

type ctxKey int

const requestMetaKey ctxKey = iota

// requestMeta carries the client-facing request identity through the proxy
// round trip; the outbound request is rewritten to the upstream host.
type requestMeta struct {
	pageURL   *url.URL
	userAgent string
	referrer  string
}

// Proxy is an instrumenting reverse proxy in front of one origin site.
type Proxy struct {
	cfg      *Config
	upstream *url.URL
	rp       *httputil.ReverseProxy
	client   *transport.Client
	store    *history.Store
	logger   *slog.Logger
	router   chi.Router
}

// New builds a Proxy from configuration. The fingerprint store opens here
// when a history path is configured; Close releases it.
func New(cfg *Config, logger *slog.Logger) (*Proxy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("proxy: upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("proxy: upstream must be an absolute URL")
	}

	p := &Proxy{
		cfg:      cfg,
		upstream: upstream,
		client:   transport.NewClient(cfg.Snippet.Engine().APIBase, cfg.Snippet.Key, transport.WithLogger(logger)),
		logger:   logger,
	}
	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("proxy: open history: %w", err)
		}
		p.store = store
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			meta := &requestMeta{
				pageURL:   clientURL(r.In),
				userAgent: r.In.Header.Get("User-Agent"),
				referrer:  r.In.Header.Get("Referer"),
			}
			r.SetURL(upstream)
			r.SetXForwarded()
			// Let the transport negotiate encoding so the body arrives
			// decompressed and ready to rewrite.
			r.Out.Header.Del("Accept-Encoding")
			r.Out = r.Out.WithContext(context.WithValue(r.Out.Context(), requestMetaKey, meta))
		},
		ModifyResponse: p.instrument,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("proxy: upstream error", "url", r.URL.String(), "error", err)
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	r.Handle("/*", p.rp)
	p.router = r

	return p, nil
}

// Handler returns the HTTP handler.
func (p *Proxy) Handler() http.Handler { return p.router }

// Close releases the fingerprint store.
func (p *Proxy) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// ListenAndServe runs the proxy until ctx is canceled, then shuts down
// gracefully.
func (p *Proxy) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              p.cfg.Listen,
		Handler:           p.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("proxy: listening", "addr", p.cfg.Listen, "upstream", p.cfg.Upstream)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// instrument rewrites successful HTML responses through a full engine
// pass. Non-HTML responses, errors, and already-instrumented documents
// pass through untouched. Pushes run after the response is on the wire.
func (p *Proxy) instrument(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK || !isHTML(resp.Header.Get("Content-Type")) {
		return nil
	}
	meta, _ := resp.Request.Context().Value(requestMetaKey).(*requestMeta)
	if meta == nil {
		return nil
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, safeurl.MaxBody+1))
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("proxy: read upstream body: %w", err)
	}
	if int64(len(buf)) > safeurl.MaxBody {
		// Too large to instrument; stream the page through untouched,
		// buffered prefix first, rest straight from the origin.
		p.logger.Debug("proxy: body exceeds instrumentation cap, passing through", "url", meta.pageURL)
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(buf), resp.Body), resp.Body}
		return nil
	}
	resp.Body.Close()
	body := buf

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.logger.Debug("proxy: unparseable HTML, passing through", "url", meta.pageURL, "error", err)
		restoreBody(resp, body)
		return nil
	}
	if inject.Instrumented(doc) {
		restoreBody(resp, body)
		return nil
	}

	ecfg := p.cfg.Snippet.Engine()
	wantPush := ecfg.AutoPush
	// The response must not wait on the backend; the push runs detached
	// below.
	ecfg.AutoPush = false

	opts := []engine.Option{
		engine.WithTransport(p.client),
		engine.WithLogger(p.logger),
		engine.WithReferrer(meta.referrer),
	}
	if p.store != nil {
		opts = append(opts, engine.WithHistory(p.store))
	}
	eng, err := engine.New(ecfg, meta.pageURL, meta.userAgent, opts...)
	if err != nil {
		restoreBody(resp, body)
		return nil
	}

	res := eng.Run(resp.Request.Context(), doc)

	html, err := doc.Html()
	if err != nil {
		p.logger.Error("proxy: serialize failed", "url", meta.pageURL, "error", err)
		restoreBody(resp, body)
		return nil
	}
	restoreBody(resp, []byte(html))

	if wantPush && !res.Skipped {
		bg := context.WithoutCancel(resp.Request.Context())
		go func() {
			ctx, cancel := context.WithTimeout(bg, pushTimeout)
			defer cancel()
			if _, err := eng.Push(ctx, res); err != nil {
				p.logger.Debug("proxy: push failed", "url", meta.pageURL, "error", err)
			}
		}()
	}
	return nil
}

func restoreBody(resp *http.Response, body []byte) {
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Header.Del("Content-Encoding")
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// clientURL reconstructs the URL the client requested, before the upstream
// rewrite.
func clientURL(r *http.Request) *url.URL {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		u.Scheme = proto
	}
	return &u
}
