// Package transport delivers classification events and page payloads to the
// Galuli backend. Two delivery contracts exist: a fire-and-forget beacon
// whose outcome is never observed, and a request/response push whose parsed
// result reaches the caller.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/galuli/snippet/agent"
	"github.com/galuli/snippet/analyze"
)

const (
	eventPath = "/api/v1/analytics/event"
	pushPath  = "/api/v1/ingest/push"
	scorePath = "/api/v1/score/"

	// acceptHeader signals willingness to receive a compact markdown
	// response, reducing token cost for agent consumers.
	acceptHeader = "application/json, text/markdown;q=0.9"

	maxResponseBody int64 = 1 << 20
)

// Event is a fire-and-forget agent classification record.
type Event struct {
	Domain    string         `json:"domain"`
	PageURL   string         `json:"page_url"`
	AgentName string         `json:"agent_name"`
	AgentType agent.Category `json:"agent_type"`
	UserAgent string         `json:"user_agent"`
	Referrer  string         `json:"referrer,omitempty"`
	TS        string         `json:"ts"`
}

// PushRequest carries a full page extraction to the backend.
type PushRequest struct {
	Domain         string        `json:"domain"`
	TenantKey      string        `json:"tenant_key"`
	Page           *analyze.Page `json:"page"`
	ContentHash    string        `json:"content_hash"`
	SnippetVersion string        `json:"snippet_version"`
}

// Score is the backend's readiness verdict.
type Score struct {
	Total int    `json:"total"`
	Grade string `json:"grade"`
}

// PushResult is the backend's best-effort response to a push. Both fields
// may be absent.
type PushResult struct {
	Score  *Score `json:"score,omitempty"`
	Status string `json:"status,omitempty"` // "accepted" or "skipped"
}

// Client talks to the backend API. The tenant key travels in the
// X-Galuli-Key header on every request.
type Client struct {
	base   string
	key    string
	hc     *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a backend client for the given API base URL and tenant
// key.
func NewClient(base, key string, opts ...Option) *Client {
	c := &Client{
		base:   base,
		key:    key,
		hc:     &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Beacon dispatches a classification event and returns immediately. The
// send happens in the background with its own deadline; it is never
// retried and never blocks the caller. Failures are logged at debug level
// only.
func (c *Client) Beacon(ctx context.Context, ev Event) {
	// Detach from the caller's cancellation so page teardown cannot
	// abort an already-dispatched event.
	bg := context.WithoutCancel(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(bg, 10*time.Second)
		defer cancel()
		if err := c.post(sendCtx, eventPath, ev, nil); err != nil {
			c.logger.Debug("transport: beacon failed", "error", err)
		}
	}()
}

// Push sends the full page payload and parses the backend response. Any
// non-2xx status, network error, or parse failure is returned as an error;
// callers drop it silently outside diagnostic mode.
func (c *Client) Push(ctx context.Context, req PushRequest) (*PushResult, error) {
	var result PushResult
	if err := c.post(ctx, pushPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchScore looks up the current readiness score for a domain.
func (c *Client) FetchScore(ctx context.Context, domain string) (*Score, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+scorePath+domain, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: new request: %w", err)
	}
	c.setHeaders(httpReq)

	var out struct {
		Score *Score `json:"score"`
		Total int    `json:"total"`
		Grade string `json:"grade"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	if out.Score != nil {
		return out.Score, nil
	}
	return &Score{Total: out.Total, Grade: out.Grade}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("transport: new request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Galuli-Key", c.key)
	req.Header.Set("Accept", acceptHeader)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("transport: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return fmt.Errorf("transport: status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("transport: read body: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("transport: decode: %w", err)
	}
	return nil
}

// NewEvent builds a classification event with the current timestamp.
func NewEvent(domain, pageURL, referrer, userAgent string, id agent.Identity) Event {
	return Event{
		Domain:    domain,
		PageURL:   pageURL,
		AgentName: id.Name,
		AgentType: id.Category,
		UserAgent: userAgent,
		Referrer:  referrer,
		TS:        time.Now().UTC().Format(time.RFC3339),
	}
}
