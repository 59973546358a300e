package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/galuli/snippet/agent"
	"github.com/galuli/snippet/analyze"
)

func TestPushHeadersAndResponse(t *testing.T) {
	var gotReq PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ingest/push" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Galuli-Key") != "tk_123" {
			t.Errorf("missing tenant key header")
		}
		if r.Header.Get("Accept") != "application/json, text/markdown;q=0.9" {
			t.Errorf("accept = %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"score":  map[string]any{"total": 87, "grade": "B+"},
			"status": "accepted",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tk_123")
	res, err := c.Push(context.Background(), PushRequest{
		Domain:         "acme.example",
		TenantKey:      "tk_123",
		Page:           &analyze.Page{Title: "Acme"},
		ContentHash:    "deadbeef",
		SnippetVersion: "3.1.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "accepted" || res.Score == nil || res.Score.Total != 87 || res.Score.Grade != "B+" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotReq.ContentHash != "deadbeef" || gotReq.Page.Title != "Acme" {
		t.Fatalf("unexpected request body: %+v", gotReq)
	}
}

func TestPushNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "k").Push(context.Background(), PushRequest{}); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestPushMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "k").Push(context.Background(), PushRequest{}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBeaconFireAndForget(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/analytics/event" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var ev Event
		json.NewDecoder(r.Body).Decode(&ev)
		received <- ev
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	ev := NewEvent("acme.example", "https://acme.example/", "", "GPTBot/1.0",
		agent.Identity{Name: "GPTBot", Category: agent.CategoryCrawler})

	// Beacon must return before delivery completes.
	ctx, cancel := context.WithCancel(context.Background())
	c.Beacon(ctx, ev)
	cancel() // caller cancellation must not abort the dispatched event

	select {
	case got := <-received:
		if got.AgentName != "GPTBot" || got.AgentType != agent.CategoryCrawler {
			t.Fatalf("unexpected event: %+v", got)
		}
		if got.TS == "" {
			t.Fatal("missing timestamp")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("beacon never delivered")
	}
}

func TestBeaconSwallowsFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "k") // unroutable
	c.Beacon(context.Background(), Event{})
	// Nothing to assert: the call must not panic or block.
}

func TestFetchScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/score/acme.example" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"score": map[string]any{"total": 92, "grade": "A"}})
	}))
	defer srv.Close()

	score, err := NewClient(srv.URL, "k").FetchScore(context.Background(), "acme.example")
	if err != nil {
		t.Fatal(err)
	}
	if score.Total != 92 || score.Grade != "A" {
		t.Fatalf("unexpected score: %+v", score)
	}
}
