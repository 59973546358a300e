package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseScriptURL(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Config
	}{
		{
			name: "key only gets defaults",
			src:  "https://galuli.io/snippet.js?key=glk_abc",
			want: Config{Key: "glk_abc", APIBase: DefaultAPIBase, AutoSchema: true, AutoPush: true},
		},
		{
			name: "all parameters",
			src:  "https://galuli.io/snippet.js?key=glk_abc&api=https://staging.galuli.io&debug=1&schema=0&push=0",
			want: Config{Key: "glk_abc", APIBase: "https://staging.galuli.io", Debug: true},
		},
		{
			name: "debug requires exactly 1",
			src:  "https://galuli.io/snippet.js?key=glk_abc&debug=true",
			want: Config{Key: "glk_abc", APIBase: DefaultAPIBase, AutoSchema: true, AutoPush: true},
		},
		{
			name: "schema and push disabled only by 0",
			src:  "https://galuli.io/snippet.js?key=glk_abc&schema=false&push=no",
			want: Config{Key: "glk_abc", APIBase: DefaultAPIBase, AutoSchema: true, AutoPush: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScriptURL(tt.src)
			if err != nil {
				t.Fatalf("ParseScriptURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseScriptURLNoKey(t *testing.T) {
	_, err := ParseScriptURL("https://galuli.io/snippet.js?debug=1")
	if !errors.Is(err, ErrNoKey) {
		t.Fatalf("err = %v, want ErrNoKey", err)
	}
}

func TestNewWithoutKey(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := New(Config{}, nil, "Mozilla/5.0", WithLogger(logger)); !errors.Is(err, ErrNoKey) {
		t.Fatalf("err = %v, want ErrNoKey", err)
	}
	// The single warning goes through the injected logger.
	if !strings.Contains(buf.String(), "no tenant key") {
		t.Errorf("warning missing from injected logger output: %q", buf.String())
	}
}
