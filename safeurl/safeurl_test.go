package safeurl

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"public https", "https://example.com/page", nil},
		{"public http", "http://example.com", nil},
		{"loopback ip", "http://127.0.0.1/admin", ErrPrivateAddress},
		{"loopback v6", "http://[::1]:8080/", ErrPrivateAddress},
		{"rfc1918 10", "http://10.0.0.5/", ErrPrivateAddress},
		{"rfc1918 172", "http://172.16.1.1/", ErrPrivateAddress},
		{"rfc1918 192", "http://192.168.1.1/router", ErrPrivateAddress},
		{"link local", "http://169.254.169.254/latest/meta-data", ErrPrivateAddress},
		{"file scheme", "file:///etc/passwd", ErrScheme},
		{"gopher scheme", "gopher://example.com", ErrScheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNoHost(t *testing.T) {
	if err := Validate("https:///nohost"); err == nil {
		t.Fatal("expected error for hostless URL")
	}
}

func TestReadAll(t *testing.T) {
	data, err := ReadAll(strings.NewReader("hello"), 10)
	if err != nil || string(data) != "hello" {
		t.Fatalf("ReadAll = %q, %v", data, err)
	}
	if _, err := ReadAll(strings.NewReader("hello world"), 5); err == nil {
		t.Fatal("expected error when body exceeds limit")
	}
}
