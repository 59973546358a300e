package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/galuli/snippet/safeurl"
	"github.com/galuli/snippet/transport"
)

const originHTML = `<!doctype html>
<html lang="en">
<head><title>Acme Co</title></head>
<body>
<main>
<h1>Welcome to Acme</h1>
<p>Acme builds widgets agents can buy without human help.</p>
<form name="contact-form" action="/contact" method="post">
  <input type="email" name="email" required>
</form>
</main>
</body>
</html>`

type fakeBackend struct {
	srv      *httptest.Server
	events   chan transport.Event
	pushes   chan transport.PushRequest
	pushFail atomic.Bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		events: make(chan transport.Event, 8),
		pushes: make(chan transport.PushRequest, 8),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/api/v1/analytics/event":
			var ev transport.Event
			json.Unmarshal(body, &ev)
			b.events <- ev
			w.WriteHeader(http.StatusAccepted)
		case "/api/v1/ingest/push":
			var req transport.PushRequest
			json.Unmarshal(body, &req)
			b.pushes <- req
			if b.pushFail.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(transport.PushResult{Status: "accepted"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newTestProxy(t *testing.T, backendURL, upstreamURL, historyPath string) *Proxy {
	t.Helper()
	cfg := &Config{
		Upstream:    upstreamURL,
		HistoryPath: historyPath,
		Snippet:     SnippetConfig{Key: "glk_test", API: backendURL},
	}
	cfg.applyDefaults()
	p, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProxyInstrumentsHTML(t *testing.T) {
	backend := newFakeBackend(t)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, originHTML)
		case "/style.css":
			w.Header().Set("Content-Type", "text/css")
			io.WriteString(w, "body{margin:0}")
		default:
			http.NotFound(w, r)
		}
	}))
	defer origin.Close()

	p := newTestProxy(t, backend.srv.URL, origin.URL, "")
	front := httptest.NewServer(p.Handler())
	defer front.Close()

	resp, err := http.Get(front.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("parse served HTML: %v", err)
	}
	if doc.Find(`meta[name="galuli-verified"]`).Length() != 1 {
		t.Error("served HTML not marked instrumented")
	}
	if doc.Find(`link[rel="llms"]`).Length() != 1 {
		t.Error("missing llms discovery link")
	}
	if doc.Find(`script[type="application/ld+json"]`).Length() != 1 {
		t.Error("missing injected schema")
	}
	// The analysis push arrives after the response.
	select {
	case push := <-backend.pushes:
		if push.Page == nil || len(push.Page.Forms) != 1 {
			t.Errorf("push page = %+v", push.Page)
		}
		if push.ContentHash == "" {
			t.Error("push without content hash")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no push received")
	}

	// Non-HTML responses pass through untouched.
	cssResp, err := http.Get(front.URL + "/style.css")
	if err != nil {
		t.Fatalf("get css: %v", err)
	}
	css, _ := io.ReadAll(cssResp.Body)
	cssResp.Body.Close()
	if string(css) != "body{margin:0}" {
		t.Errorf("css body = %q", css)
	}
}

func TestProxyBeaconForAgentUA(t *testing.T) {
	backend := newFakeBackend(t)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, originHTML)
	}))
	defer origin.Close()

	p := newTestProxy(t, backend.srv.URL, origin.URL, "")
	front := httptest.NewServer(p.Handler())
	defer front.Close()

	req, _ := http.NewRequest(http.MethodGet, front.URL+"/pricing", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ClaudeBot/1.0)")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	select {
	case ev := <-backend.events:
		if ev.AgentName != "ClaudeBot" {
			t.Errorf("event agent = %q", ev.AgentName)
		}
		if !strings.HasSuffix(ev.PageURL, "/pricing") {
			t.Errorf("event page_url = %q", ev.PageURL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no classification event")
	}
}

func TestProxyPassThroughInstrumented(t *testing.T) {
	backend := newFakeBackend(t)
	already := `<!doctype html><html><head><title>x</title>` +
		`<meta name="galuli-verified" content="done" data-galuli="1"></head><body><p>hi</p></body></html>`
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, already)
	}))
	defer origin.Close()

	p := newTestProxy(t, backend.srv.URL, origin.URL, "")
	front := httptest.NewServer(p.Handler())
	defer front.Close()

	resp, err := http.Get(front.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != already {
		t.Error("instrumented upstream body was rewritten")
	}

	time.Sleep(100 * time.Millisecond)
	select {
	case push := <-backend.pushes:
		t.Errorf("unexpected push for pass-through: %+v", push)
	default:
	}
}

func TestProxyHistorySkipsRepeatPush(t *testing.T) {
	backend := newFakeBackend(t)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, originHTML)
	}))
	defer origin.Close()

	p := newTestProxy(t, backend.srv.URL, origin.URL, filepath.Join(t.TempDir(), "galuli.db"))
	front := httptest.NewServer(p.Handler())
	defer front.Close()

	get := func() {
		resp, err := http.Get(front.URL + "/")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	get()
	select {
	case <-backend.pushes:
	case <-time.After(5 * time.Second):
		t.Fatal("no push for first request")
	}

	get()
	time.Sleep(200 * time.Millisecond)
	select {
	case push := <-backend.pushes:
		t.Errorf("unexpected push for unchanged content: %+v", push)
	default:
	}
}

func TestProxyFailedPushRetriedNextRequest(t *testing.T) {
	backend := newFakeBackend(t)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, originHTML)
	}))
	defer origin.Close()

	p := newTestProxy(t, backend.srv.URL, origin.URL, filepath.Join(t.TempDir(), "galuli.db"))
	front := httptest.NewServer(p.Handler())
	defer front.Close()

	get := func() {
		t.Helper()
		resp, err := http.Get(front.URL + "/")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	waitPush := func() {
		t.Helper()
		select {
		case <-backend.pushes:
		case <-time.After(5 * time.Second):
			t.Fatal("no push attempt")
		}
	}

	// Backend down: the failed delivery must not mark the content as
	// pushed, so the next request tries again.
	backend.pushFail.Store(true)
	get()
	waitPush()
	get()
	waitPush()

	// Backend back up: delivery lands, after which unchanged content
	// stops pushing.
	backend.pushFail.Store(false)
	get()
	waitPush()
	get()
	time.Sleep(200 * time.Millisecond)
	select {
	case push := <-backend.pushes:
		t.Errorf("unexpected push after successful delivery: %+v", push)
	default:
	}
}

func TestProxyOversizeHTMLPassesThrough(t *testing.T) {
	backend := newFakeBackend(t)
	big := `<!doctype html><html><head><title>big</title></head><body><p>` +
		strings.Repeat("a", int(safeurl.MaxBody)) + `</p></body></html>`
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, big)
	}))
	defer origin.Close()

	p := newTestProxy(t, backend.srv.URL, origin.URL, "")
	front := httptest.NewServer(p.Handler())
	defer front.Close()

	resp, err := http.Get(front.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(body) != len(big) {
		t.Fatalf("body length = %d, want %d", len(body), len(big))
	}
	if strings.Contains(string(body[:512]), "galuli-verified") {
		t.Error("oversize body was instrumented")
	}

	time.Sleep(100 * time.Millisecond)
	select {
	case push := <-backend.pushes:
		t.Errorf("unexpected push for oversize body: %+v", push)
	default:
	}
}

func TestProxyHealthz(t *testing.T) {
	backend := newFakeBackend(t)
	origin := httptest.NewServer(http.NotFoundHandler())
	defer origin.Close()

	p := newTestProxy(t, backend.srv.URL, origin.URL, "")
	front := httptest.NewServer(p.Handler())
	defer front.Close()

	resp, err := http.Get(front.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galuli.yaml")
	content := `
listen: ":9999"
upstream: "https://origin.example"
history_path: "/var/lib/galuli/fp.db"
snippet:
  key: glk_abc
  debug: true
  disable_schema: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Listen != ":9999" || cfg.Upstream != "https://origin.example" {
		t.Errorf("cfg = %+v", cfg)
	}
	ecfg := cfg.Snippet.Engine()
	if !ecfg.Debug || ecfg.AutoSchema || !ecfg.AutoPush {
		t.Errorf("engine cfg = %+v", ecfg)
	}
}

func TestLoadFileMissingKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galuli.yaml")
	os.WriteFile(path, []byte("upstream: \"https://origin.example\"\n"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for missing key")
	}
}
