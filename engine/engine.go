// Package engine orchestrates the full instrumentation pass: agent
// classification at construction time, head injection, page analysis, tool
// registration, content fingerprinting, and backend push.
package engine

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/galuli/snippet/agent"
	"github.com/galuli/snippet/analyze"
	"github.com/galuli/snippet/history"
	"github.com/galuli/snippet/inject"
	"github.com/galuli/snippet/transport"
	"github.com/galuli/snippet/webmcp"
)

// Version is reported to the backend as snippet_version.
const Version = "3.1.0"

// Engine performs instrumentation passes for one page load. Construction
// classifies the visitor once; Run may be invoked repeatedly (manual
// re-invocation) and is serialized, so overlapping refreshes cannot produce
// duplicate in-flight pushes.
type Engine struct {
	mu sync.Mutex

	cfg       Config
	pageURL   *url.URL
	domain    string
	userAgent string
	referrer  string

	client     *transport.Client
	logger     *slog.Logger
	host       any
	capability webmcp.Capability
	store      *history.Store

	detected   *agent.Identity
	registered []webmcp.Registered
}

// Result is the outcome of one instrumentation pass.
type Result struct {
	Page        *analyze.Page
	Fingerprint string
	// Skipped is set when the fingerprint history shows unchanged content
	// and the push was elided client-side.
	Skipped bool
	// Push is the backend response, when a push happened and succeeded.
	Push *transport.PushResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHost provides the tool-calling registry of the hosting environment.
// Capability is detected once at construction.
func WithHost(host any) Option {
	return func(e *Engine) { e.host = host }
}

// WithHistory enables client-side dedupe against a fingerprint store.
func WithHistory(s *history.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithTransport overrides the backend client (tests).
func WithTransport(c *transport.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithReferrer sets the referrer reported on classification events.
func WithReferrer(ref string) Option {
	return func(e *Engine) { e.referrer = ref }
}

// New creates an Engine for one page load and classifies the visitor from
// userAgent. A recognized agent fires exactly one classification event
// here, before any analysis pass, since classification reflects the
// requester identity rather than page content. A missing tenant key aborts
// with ErrNoKey after a single warning and no further side effects.
func New(cfg Config, pageURL *url.URL, userAgent string, opts ...Option) (*Engine, error) {
	cfg.applyDefaults()

	e := &Engine{
		cfg:       cfg,
		pageURL:   pageURL,
		domain:    domainOf(pageURL),
		userAgent: userAgent,
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		e.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	if cfg.Key == "" {
		e.logger.Warn("engine: no tenant key provided, snippet disabled")
		return nil, ErrNoKey
	}
	if e.client == nil {
		e.client = transport.NewClient(cfg.APIBase, cfg.Key, transport.WithLogger(e.logger))
	}
	e.capability = webmcp.DetectCapability(e.host)

	if id, ok := agent.Detect(userAgent); ok {
		e.detected = &id
		e.logger.Debug("engine: ai agent detected", "name", id.Name, "category", id.Category)
		e.sendEvent(context.Background(), id)
	}
	return e, nil
}

// Domain is the page's hostname without a www prefix.
func (e *Engine) Domain() string { return e.domain }

// DetectedAgent returns the classification computed at construction, if
// any. Immutable for the engine's lifetime.
func (e *Engine) DetectedAgent() (agent.Identity, bool) {
	if e.detected == nil {
		return agent.Identity{}, false
	}
	return *e.detected, true
}

// Tools returns a copy of the currently registered tool summaries.
func (e *Engine) Tools() []webmcp.Registered {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]webmcp.Registered, len(e.registered))
	copy(out, e.registered)
	return out
}

// Score fetches the domain's current readiness score on demand.
func (e *Engine) Score(ctx context.Context) (*transport.Score, error) {
	return e.client.FetchScore(ctx, e.domain)
}

// LogAgentEvent manually fires a classification event.
func (e *Engine) LogAgentEvent(name string, category agent.Category) {
	e.sendEvent(context.Background(), agent.Identity{Name: name, Category: category})
}

func (e *Engine) sendEvent(ctx context.Context, id agent.Identity) {
	pageURL := ""
	if e.pageURL != nil {
		pageURL = e.pageURL.String()
	}
	e.client.Beacon(ctx, transport.NewEvent(e.domain, pageURL, e.referrer, e.userAgent, id))
}

// Run executes one full instrumentation pass over doc: head injections
// first (extraction may read their side effects, e.g. the canonical link),
// then analysis, tool registration, fingerprinting, and push. Every step is
// non-fatal in isolation; Run always returns a complete, possibly sparse,
// result. Repeated invocation on an unchanged document is idempotent with
// respect to injected elements and fingerprint.
func (e *Engine) Run(ctx context.Context, doc *goquery.Document) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Head injections, decision separated from mutation.
	inject.Apply(doc, inject.PlanDiscovery(doc, e.domain, e.cfg.APIBase, e.pageURL))

	path, title := e.path(), strings.TrimSpace(doc.Find("title").First().Text())
	pageType := analyze.ClassifyPage(path, title)

	if e.cfg.AutoSchema {
		if ins := inject.PlanSchema(doc, pageType, e.domain, e.pageURL); ins != nil {
			inject.Apply(doc, []inject.Insertion{*ins})
			e.logger.Debug("engine: injected JSON-LD schema", "page_type", pageType)
		}
	}

	// Analysis.
	page := analyze.Extract(doc, e.pageURL)
	e.logger.Debug("engine: page analyzed",
		"page_type", page.PageType,
		"forms", len(page.Forms),
		"headings", len(page.Headings),
		"schema_blocks", len(page.SchemaOrg))

	// Tool registration.
	page.WebMCPSupported = e.capability != webmcp.Unsupported
	if page.WebMCPSupported {
		tools := webmcp.BuildTools(page)
		e.registered = webmcp.Register(e.host, tools, e.logger)
	}
	page.WebMCPTools = toolSummaries(e.registered)

	res := &Result{
		Page:        page,
		Fingerprint: analyze.PageFingerprint(page),
	}

	// The history store holds the last fingerprint the backend accepted;
	// it is only consulted here, never written. Recording happens in Push
	// after a 2xx, so a failed push is retried on the next pass.
	if e.store != nil {
		prev, ok, err := e.store.Lookup(ctx, e.domain, path)
		if err != nil {
			e.logger.Debug("engine: history lookup failed", "error", err)
		} else if ok && prev == res.Fingerprint {
			e.logger.Debug("engine: content unchanged, push skipped")
			res.Skipped = true
			return res
		}
	}

	if !e.cfg.AutoPush {
		return res
	}

	push, err := e.Push(ctx, res)
	if err != nil {
		// Push failures never surface to the host page; debug logs
		// are the only window into them.
		e.logger.Debug("engine: push failed", "error", err)
		return res
	}
	res.Push = push
	return res
}

// Push sends a completed pass result to the backend. Run calls it when
// auto-push is on; callers that need the response out of the critical path
// (serving the instrumented page first) disable auto-push and invoke Push
// themselves. A successful push records the fingerprint in the history
// store; a failed one leaves the store untouched, so unchanged-content
// skipping never hides a content version the backend has not accepted.
func (e *Engine) Push(ctx context.Context, res *Result) (*transport.PushResult, error) {
	push, err := e.client.Push(ctx, transport.PushRequest{
		Domain:         e.domain,
		TenantKey:      e.cfg.Key,
		Page:           res.Page,
		ContentHash:    res.Fingerprint,
		SnippetVersion: Version,
	})
	if err != nil {
		return nil, err
	}
	if e.store != nil {
		if err := e.store.Record(ctx, e.domain, e.path(), res.Fingerprint); err != nil {
			e.logger.Debug("engine: history record failed", "error", err)
		}
	}
	if push.Score != nil {
		e.logger.Debug("engine: readiness score", "total", push.Score.Total, "grade", push.Score.Grade)
	}
	return push, nil
}

func toolSummaries(reg []webmcp.Registered) []analyze.Tool {
	out := make([]analyze.Tool, len(reg))
	for i, r := range reg {
		out[i] = analyze.Tool{Name: r.Name, Description: r.Description, Source: r.Source}
	}
	return out
}

func (e *Engine) path() string {
	if e.pageURL == nil {
		return ""
	}
	return e.pageURL.Path
}

func domainOf(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
