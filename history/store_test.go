package history

import (
	"context"
	"path/filepath"
	"testing"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLookupUnknown(t *testing.T) {
	s := open(t)
	_, ok, err := s.Lookup(context.Background(), "acme.example", "/")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unknown page reported as present")
	}
}

func TestRecordAndLookup(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	if err := s.Record(ctx, "acme.example", "/", "abc"); err != nil {
		t.Fatal(err)
	}
	fp, ok, err := s.Lookup(ctx, "acme.example", "/")
	if err != nil || !ok || fp != "abc" {
		t.Fatalf("lookup = %q %v %v", fp, ok, err)
	}

	// Replacement.
	if err := s.Record(ctx, "acme.example", "/", "def"); err != nil {
		t.Fatal(err)
	}
	fp, _, _ = s.Lookup(ctx, "acme.example", "/")
	if fp != "def" {
		t.Fatalf("fingerprint not replaced: %q", fp)
	}
}

func TestPathsTrackSeparately(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	if err := s.Record(ctx, "acme.example", "/pricing", "v1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Lookup(ctx, "acme.example", "/"); ok {
		t.Fatal("recording /pricing must not affect /")
	}
	fp, ok, _ := s.Lookup(ctx, "acme.example", "/pricing")
	if !ok || fp != "v1" {
		t.Fatalf("lookup /pricing = %q %v", fp, ok)
	}

	// Lookup never writes: a repeated miss stays a miss.
	if _, ok, _ := s.Lookup(ctx, "acme.example", "/"); ok {
		t.Fatal("lookup must not record")
	}
}
